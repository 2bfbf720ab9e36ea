package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ironsheep/occupancy-counter/internal/counting"
	"github.com/ironsheep/occupancy-counter/internal/detection"
	"github.com/ironsheep/occupancy-counter/internal/dispatch"
	"github.com/ironsheep/occupancy-counter/internal/doors"
	"github.com/ironsheep/occupancy-counter/internal/rooms"
	"github.com/ironsheep/occupancy-counter/internal/store"
)

// MaxTrackerFailures is the number of consecutive tracker errors after
// which a run gives up.
const MaxTrackerFailures = 10

// defaultFPS is assumed when a source does not report its frame rate.
const defaultFPS = 30.0

// FrameSource delivers the frames of a video in order.
type FrameSource interface {
	// Read returns the next frame, or false at the end of the video.
	Read() (image.Image, bool)
	FPS() float64
}

// Tracker assigns persistent identities to the persons in a frame.
type Tracker interface {
	Track(ctx context.Context, frame image.Image, conf float64) ([]detection.Track, error)
}

// EventSink receives every crossing event.
type EventSink interface {
	HandleEvent(ctx context.Context, ev counting.CrossingEvent) error
}

// RefreshRecorder keeps a history of door detection refreshes.
type RefreshRecorder interface {
	RecordRefresh(ctx context.Context, r store.RefreshRecord) error
}

// Display renders an annotated frame. Show returns true when the viewer
// asked to stop.
type Display interface {
	Show(frame image.Image, v View) (bool, error)
}

// View is everything drawn on top of a frame.
type View struct {
	Frame      int
	Tracks     []detection.Track
	Boundaries []rooms.Boundary
	Rooms      []counting.RoomSummary
	// NoDoors is set when door detection is active but found nothing.
	NoDoors bool
	// Candidates are the latest door candidates, when debugging doors.
	Candidates []doors.Candidate
}

// Options tunes a run.
type Options struct {
	// Conf is the person confidence threshold passed to the tracker.
	Conf float64
	// RefreshEvery re-runs door detection every this many frames. Zero
	// disables refreshing.
	RefreshEvery int
	// AutoDetect marks runs whose boundaries come from door detection.
	AutoDetect   bool
	DebugDoors   bool
	DebugMaxDraw int
}

// Deps are the collaborators of a run. Source, Tracker, Registry and
// Session are required.
type Deps struct {
	Source     FrameSource
	Tracker    Tracker
	Registry   *rooms.Registry
	Session    *counting.Session
	Dispatcher *dispatch.Dispatcher
	// Doors supplies debug candidates and refresh statistics.
	Doors     *doors.Detector
	Sinks     []EventSink
	Refreshes RefreshRecorder
	Display   Display
}

// Report summarizes a finished run.
type Report struct {
	Frames  int
	Source  rooms.Source
	Rooms   []counting.RoomSummary
	Pending []dispatch.Task
}

// Runner drives the per-frame loop: refresh doors, track, count, dispatch,
// record and render.
type Runner struct {
	opts Options
	deps Deps
	fps  float64

	byID map[string]rooms.Boundary
}

// NewRunner checks deps and returns a runner.
func NewRunner(opts Options, deps Deps) (*Runner, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("pipeline: no frame source")
	case deps.Tracker == nil:
		return nil, errors.New("pipeline: no tracker")
	case deps.Registry == nil:
		return nil, errors.New("pipeline: no boundary registry")
	case deps.Session == nil:
		return nil, errors.New("pipeline: no counting session")
	}
	fps := deps.Source.FPS()
	if fps <= 0 {
		fps = defaultFPS
	}
	return &Runner{opts: opts, deps: deps, fps: fps}, nil
}

// Run processes the whole source, or until ctx is done or the display asks
// to stop. Configuration and source errors end the run with an error;
// integration failures are logged.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	frame, ok := r.deps.Source.Read()
	if !ok {
		return nil, errors.New("cannot read first frame from video")
	}
	if err := r.deps.Registry.Load(ctx, frame); err != nil {
		return nil, err
	}
	r.adopt(r.deps.Registry.Boundaries())

	report := &Report{Source: r.deps.Registry.Source()}
	trackerFailures := 0

	for index := 0; ; index++ {
		if ctx.Err() != nil {
			log.Info("Run cancelled")
			break
		}

		r.maybeRefresh(ctx, index, frame)

		tracks, err := r.deps.Tracker.Track(ctx, frame, r.opts.Conf)
		if err != nil {
			trackerFailures++
			log.WithError(err).WithField("frame", index).Warn("Tracking failed")
			if trackerFailures >= MaxTrackerFailures {
				return report, fmt.Errorf("tracker failed %d times in a row: %w", trackerFailures, err)
			}
			tracks = nil
		} else {
			trackerFailures = 0
		}

		events := r.deps.Session.Observe(index, r.videoTime(index), tracks)
		for _, ev := range events {
			r.handleEvent(ctx, ev)
		}
		if r.deps.Dispatcher != nil {
			r.deps.Dispatcher.Poll()
		}

		report.Frames = index + 1
		if r.deps.Display != nil {
			quit, err := r.deps.Display.Show(frame, r.view(index, tracks))
			if err != nil {
				log.WithError(err).WithField("frame", index).Warn("Rendering failed")
			}
			if quit {
				log.Info("Stopped by viewer")
				break
			}
		}

		if frame, ok = r.deps.Source.Read(); !ok {
			break
		}
	}

	report.Rooms = r.deps.Session.Summary()
	if r.deps.Dispatcher != nil {
		report.Pending = r.deps.Dispatcher.Shutdown()
	}
	logSummary(report)
	return report, nil
}

func (r *Runner) videoTime(index int) time.Duration {
	return time.Duration(float64(index) / r.fps * float64(time.Second))
}

// maybeRefresh re-runs door detection on the refresh cadence.
func (r *Runner) maybeRefresh(ctx context.Context, index int, frame image.Image) {
	reg := r.deps.Registry
	if r.opts.RefreshEvery <= 0 || index%r.opts.RefreshEvery != 0 || !reg.Refreshable() {
		return
	}

	adopted, err := reg.Refresh(ctx, frame)
	if err != nil {
		log.WithError(err).WithField("frame", index).Warn("Door refresh failed")
		return
	}
	if adopted {
		r.adopt(reg.Boundaries())
	}
	if r.deps.Refreshes != nil {
		if err := r.deps.Refreshes.RecordRefresh(ctx, r.refreshRecord(index, adopted)); err != nil {
			log.WithError(err).Warn("Recording door refresh failed")
		}
	}
}

func (r *Runner) refreshRecord(index int, adopted bool) store.RefreshRecord {
	reg := r.deps.Registry
	rec := store.RefreshRecord{
		Frame:     index,
		Source:    string(reg.Source()),
		Adopted:   adopted,
		Locked:    reg.Locked(),
		Signature: rooms.Signature(reg.Boundaries()),
		Reasons:   map[string]int{},
	}
	if r.deps.Doors != nil {
		if last := r.deps.Doors.Last(); last != nil {
			rec.Candidates = len(last.Candidates)
			rec.Accepted = len(last.Boundaries)
			for reason, n := range doors.ReasonCounts(last.Candidates) {
				rec.Reasons[string(reason)] = n
			}
		}
	}
	return rec
}

// adopt hands a boundary set to the session.
func (r *Runner) adopt(bs []rooms.Boundary) {
	if r.deps.Session.SetBoundaries(bs) {
		log.WithField("signature", rooms.Signature(bs)).Info("Boundaries changed, track memory cleared")
	}
	r.byID = make(map[string]rooms.Boundary, len(bs))
	for _, b := range bs {
		r.byID[b.ID] = b
	}
}

func (r *Runner) handleEvent(ctx context.Context, ev counting.CrossingEvent) {
	log.WithFields(log.Fields{
		"room_id":   ev.BoundaryID,
		"track_id":  ev.TrackID,
		"kind":      ev.Kind,
		"direction": ev.Direction,
		"frame":     ev.Frame,
		"occupancy": ev.Occupancy,
	}).Info("Crossing")

	if r.deps.Dispatcher != nil {
		r.deps.Dispatcher.OnEvent(ctx, ev, r.byID[ev.BoundaryID])
	}
	for _, sink := range r.deps.Sinks {
		if err := sink.HandleEvent(ctx, ev); err != nil {
			log.WithError(err).WithField("room_id", ev.BoundaryID).Warn("Event sink failed")
		}
	}
}

func (r *Runner) view(index int, tracks []detection.Track) View {
	v := View{
		Frame:      index,
		Tracks:     detection.Identified(tracks),
		Boundaries: r.deps.Session.Boundaries(),
		Rooms:      r.deps.Session.Summary(),
	}
	v.NoDoors = r.opts.AutoDetect && len(v.Boundaries) == 0
	if r.opts.DebugDoors && r.opts.AutoDetect && r.deps.Doors != nil {
		if last := r.deps.Doors.Last(); last != nil {
			n := min(len(last.Candidates), max(0, r.opts.DebugMaxDraw))
			v.Candidates = last.Candidates[:n]
		}
	}
	return v
}

func logSummary(report *Report) {
	log.WithField("frames", report.Frames).Info("Final room summary")
	if len(report.Rooms) == 0 {
		log.Info("  No rooms active (no doors detected)")
	}
	for _, rs := range report.Rooms {
		log.WithFields(log.Fields{
			"room_id":   rs.ID,
			"entered":   rs.Entered,
			"left":      rs.Left,
			"occupancy": rs.Occupancy,
		}).Infof("  %s: entered=%d, left=%d, occupancy=%d", rs.ID, rs.Entered, rs.Left, rs.Occupancy)
	}
	if len(report.Pending) > 0 {
		log.WithField("pending_uploads", len(report.Pending)).Warn("Clip uploads still running")
	}
}
