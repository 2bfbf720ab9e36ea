package counting

import (
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ironsheep/occupancy-counter/internal/detection"
	"github.com/ironsheep/occupancy-counter/internal/geometry"
	"github.com/ironsheep/occupancy-counter/internal/rooms"
)

// Smoothing damps foot point jitter before classification. Zero values
// disable each step.
type Smoothing struct {
	// MaxStepY limits how far the foot point may move vertically per sample.
	MaxStepY float64
	// Alpha is the weight of a new sample in an exponential moving average,
	// used when 0 < Alpha < 1.
	Alpha float64
}

// Config configures a Session.
type Config struct {
	Mode   Mode
	Width  int
	Height int

	Smoothing Smoothing
	// StaleFrames drops a track's memory after this many frames without a
	// sample. Zero keeps tracks for the whole run.
	StaleFrames int
}

// TrackState is what a session remembers about one track identity.
type TrackState struct {
	// Sides maps boundary ID to the last unambiguous side. A missing entry
	// means the side is not yet known.
	Sides map[string]geometry.Side

	Foot      geometry.Point
	LastFrame int
}

type boundaryState struct {
	rooms.Boundary
	classify classifier
}

// Session turns per-frame track samples into crossing events against the
// current boundary set.
type Session struct {
	cfg        Config
	boundaries []boundaryState
	signature  string
	tracks     map[int]*TrackState
	tally      *Tally
}

// NewSession returns a session with no boundaries.
func NewSession(cfg Config) *Session {
	if cfg.Mode == nil {
		cfg.Mode = LineMode{}
	}
	return &Session{
		cfg:    cfg,
		tracks: make(map[int]*TrackState),
		tally:  NewTally(),
	}
}

// Mode returns the session's counting mode.
func (s *Session) Mode() Mode { return s.cfg.Mode }

// Tally returns the session's accumulator.
func (s *Session) Tally() *Tally { return s.tally }

// Boundaries returns a copy of the active boundaries.
func (s *Session) Boundaries() []rooms.Boundary {
	out := make([]rooms.Boundary, len(s.boundaries))
	for i, b := range s.boundaries {
		out[i] = b.Boundary
	}
	return out
}

// TrackCount returns how many track identities are remembered.
func (s *Session) TrackCount() int { return len(s.tracks) }

// SetBoundaries replaces the boundary set. When the signature differs from
// the current one every track's memory is cleared, so the next sample of any
// track only establishes its side. It reports whether memory was cleared.
func (s *Session) SetBoundaries(bs []rooms.Boundary) bool {
	next := make([]boundaryState, len(bs))
	for i, b := range bs {
		next[i] = boundaryState{
			Boundary: b,
			classify: s.cfg.Mode.classifierFor(b, s.cfg.Width, s.cfg.Height),
		}
		s.tally.Ensure(b.ID)
	}
	s.boundaries = next

	sig := rooms.Signature(bs)
	if sig == s.signature {
		return false
	}
	s.signature = sig
	if len(s.tracks) > 0 {
		log.WithField("tracks", len(s.tracks)).Info("Boundary geometry changed, clearing track memory")
	}
	s.tracks = make(map[int]*TrackState)
	return true
}

// Observe processes one frame of tracks and returns the events it produced,
// ordered by track then boundary. Tracks without an identity are ignored.
func (s *Session) Observe(frame int, videoTime time.Duration, tracks []detection.Track) []CrossingEvent {
	var events []CrossingEvent
	for _, tr := range tracks {
		if !tr.HasID {
			continue
		}
		st := s.trackState(tr.ID)
		foot := s.smooth(st, footPoint(tr.Box))
		st.Foot = foot
		st.LastFrame = frame

		for _, b := range s.boundaries {
			curr := b.classify(foot)
			if curr == geometry.Unknown {
				continue
			}
			prev, known := st.Sides[b.ID]
			st.Sides[b.ID] = curr
			if !known || prev == curr {
				continue
			}
			dir, ok := geometry.CrossingDirection(prev, curr)
			if !ok {
				continue
			}

			kind := KindExit
			if dir == b.Direction {
				kind = KindEntry
			}
			s.tally.Record(kind, b.ID)
			ev := CrossingEvent{
				BoundaryID: b.ID,
				Direction:  dir,
				Kind:       kind,
				TrackID:    tr.ID,
				Frame:      frame,
				VideoTime:  videoTime,
				Foot:       foot,
				Occupancy:  s.tally.Occupancy(b.Boundary),
			}
			log.WithFields(log.Fields{
				"room_id":   ev.BoundaryID,
				"track_id":  ev.TrackID,
				"direction": ev.Direction,
				"kind":      ev.Kind,
				"occupancy": ev.Occupancy,
			}).Debug("Crossing")
			events = append(events, ev)
		}
	}

	s.pruneStale(frame)
	return events
}

func (s *Session) trackState(id int) *TrackState {
	st, ok := s.tracks[id]
	if !ok {
		st = &TrackState{Sides: make(map[string]geometry.Side), LastFrame: -1}
		s.tracks[id] = st
	}
	return st
}

// smooth applies the step clamp and moving average against the track's
// previous foot point. The first sample of a track is used as is.
func (s *Session) smooth(st *TrackState, raw geometry.Point) geometry.Point {
	if st.LastFrame < 0 {
		return raw
	}
	p := raw
	if step := s.cfg.Smoothing.MaxStepY; step > 0 {
		dy := math.Max(-step, math.Min(step, raw.Y-st.Foot.Y))
		p.Y = st.Foot.Y + dy
	}
	if a := s.cfg.Smoothing.Alpha; a > 0 && a < 1 {
		p.X = st.Foot.X + a*(p.X-st.Foot.X)
		p.Y = st.Foot.Y + a*(p.Y-st.Foot.Y)
	}
	return p
}

func (s *Session) pruneStale(frame int) {
	if s.cfg.StaleFrames <= 0 {
		return
	}
	for id, st := range s.tracks {
		if frame-st.LastFrame > s.cfg.StaleFrames {
			delete(s.tracks, id)
		}
	}
}

// RoomSummary is the end-of-run state of one boundary.
type RoomSummary struct {
	ID        string             `json:"room_id"`
	Direction geometry.Direction `json:"direction"`
	Entered   int                `json:"entered"`
	Left      int                `json:"left"`
	Occupancy int                `json:"occupancy"`
}

// Summary reports every active boundary in order.
func (s *Session) Summary() []RoomSummary {
	out := make([]RoomSummary, 0, len(s.boundaries))
	for _, b := range s.boundaries {
		st := s.tally.Stats(b.ID)
		out = append(out, RoomSummary{
			ID:        b.ID,
			Direction: b.Direction,
			Entered:   st.Entered,
			Left:      st.Left,
			Occupancy: st.Occupancy(b.InitialOccupancy),
		})
	}
	return out
}

// footPoint is the bottom-center of a person box.
func footPoint(b detection.Box) geometry.Point {
	x, y := b.FootPoint()
	return geometry.Point{X: x, Y: y}
}
