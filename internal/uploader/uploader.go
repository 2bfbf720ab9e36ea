package uploader

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ironsheep/occupancy-counter/internal/httputil"
	"github.com/ironsheep/occupancy-counter/internal/imaging"
	"github.com/ironsheep/occupancy-counter/internal/timeutil"
)

const (
	IngestPath   = "/api/ingest/cv-images"
	FinalizePath = "/api/ingest/cv-images/finalize"
	APIKeyHeader = "x-cv-api-key"
)

// liveRetryDelay is the wait after a live source fails to deliver a frame.
const liveRetryDelay = 100 * time.Millisecond

// Source is a video the uploader samples frames from.
type Source interface {
	// Read returns the next frame, or false when none is available. For a
	// seekable source false means the end of the video.
	Read() (image.Image, bool)
	// Seekable reports whether the source is a file supporting Seek.
	Seekable() bool
	// Position is the timestamp of the next frame.
	Position() time.Duration
	Seek(pos time.Duration) error
	// Length is the total duration, when known.
	Length() (time.Duration, bool)
	Close() error
}

// Item is one uploaded frame.
type Item struct {
	RoomID      string `json:"room_id"`
	VideoID     string `json:"video_id"`
	CapturedAt  string `json:"captured_at"`
	MimeType    string `json:"mime_type"`
	ImageBase64 string `json:"image_base64"`
	CameraID    string `json:"camera_id,omitempty"`
}

// IngestResponse is the ingestion service's answer to a batch or finalize
// call. Summary fields are only present once the service has analyzed
// enough frames.
type IngestResponse struct {
	Accepted              *int          `json:"accepted,omitempty"`
	Analyzed              *int          `json:"analyzed,omitempty"`
	Inserted              *int          `json:"inserted,omitempty"`
	FinalVideoSummary     string        `json:"final_video_summary,omitempty"`
	OverallRiskLevel      string        `json:"overall_risk_level,omitempty"`
	OverallSuspicionScore *float64      `json:"overall_suspicion_score,omitempty"`
	RecommendedAction     string        `json:"recommended_action,omitempty"`
	Errors                []interface{} `json:"errors,omitempty"`
}

// Stats summarizes a finished run.
type Stats struct {
	VideoID    string
	Posts      int
	FramesSent int
	Finalized  bool
	Final      *IngestResponse
}

// Uploader samples a source and posts the frames in batches.
type Uploader struct {
	cfg     Config
	client  httputil.HTTPClient
	clock   timeutil.Clock
	videoID string

	lastPost *time.Time
}

// New validates cfg and returns an uploader. A nil clock uses the real clock.
func New(cfg Config, client httputil.HTTPClient, clock timeutil.Clock) (*Uploader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	videoID := cfg.VideoID
	if videoID == "" {
		videoID = NewVideoID(clock.Now())
	}
	return &Uploader{cfg: cfg, client: client, clock: clock, videoID: videoID}, nil
}

// NewVideoID returns vid_<unix seconds>_<8 hex>.
func NewVideoID(now time.Time) string {
	id := uuid.New()
	return fmt.Sprintf("vid_%d_%x", now.Unix(), id[:4])
}

// VideoID returns the identifier frames are filed under.
func (u *Uploader) VideoID() string {
	return u.videoID
}

// Run samples src until it ends, MaxDuration is reached or ctx is done.
// The remaining batch is posted and the video finalized after any of these;
// those final calls are not cut short by ctx. Run does not close src.
func (u *Uploader) Run(ctx context.Context, src Source) (Stats, error) {
	stats := Stats{VideoID: u.videoID}
	seekable := src.Seekable()

	if u.cfg.StartOffset > 0 {
		if seekable {
			if err := src.Seek(u.cfg.StartOffset); err != nil {
				return stats, fmt.Errorf("seek to start offset: %w", err)
			}
		} else {
			log.WithField("start_offset", u.cfg.StartOffset).Warn("Start offset ignored for non-file source")
		}
	}

	var clipEnd time.Duration
	if seekable && u.cfg.MaxDuration > 0 {
		clipEnd = src.Position() + u.cfg.MaxDuration
	}
	expected := u.expectedPosts(src, clipEnd)

	fields := log.Fields{
		"route":    u.cfg.ingestURL(),
		"room_id":  u.cfg.RoomID,
		"video_id": u.videoID,
		"sample":   u.cfg.SampleInterval,
		"batch":    u.cfg.BatchSize,
		"flush":    u.cfg.FlushInterval,
	}
	if u.cfg.CameraID != "" {
		fields["camera_id"] = u.cfg.CameraID
	}
	if expected > 0 {
		fields["expected_posts"] = expected
	}
	log.WithFields(fields).Info("Clip uploader started")

	// Delivery of what was collected outlives cancellation of the sampling.
	deliverCtx := context.WithoutCancel(ctx)

	var batch []Item
	lastFlush := u.clock.Now()
	flush := func() {
		if len(batch) == 0 {
			return
		}
		stats.Posts++
		var left *time.Duration
		if seekable {
			if length, ok := src.Length(); ok {
				l := max(0, length-src.Position())
				left = &l
			}
		}
		if u.postBatch(deliverCtx, batch, stats.Posts, expected, left) {
			stats.FramesSent += len(batch)
		}
		batch = nil
	}

	for ctx.Err() == nil {
		frame, ok := src.Read()
		if !ok {
			if seekable {
				log.Info("Reached end of video file, flushing")
				break
			}
			if err := timeutil.Sleep(ctx, u.clock, liveRetryDelay); err != nil {
				break
			}
			continue
		}
		if clipEnd > 0 && src.Position() >= clipEnd {
			log.Info("Reached configured clip duration, flushing")
			break
		}

		item, err := u.buildItem(frame)
		if err != nil {
			return stats, err
		}
		batch = append(batch, item)

		now := u.clock.Now()
		if len(batch) >= u.cfg.BatchSize || now.Sub(lastFlush) >= u.cfg.FlushInterval {
			flush()
			lastFlush = now
		}

		if seekable {
			if err := src.Seek(src.Position() + u.cfg.SampleInterval); err != nil {
				log.WithError(err).Warn("Seek to next sample failed, stopping")
				break
			}
		} else if err := timeutil.Sleep(ctx, u.clock, u.cfg.SampleInterval); err != nil {
			break
		}
	}
	flush()

	if stats.FramesSent > 0 {
		final, err := u.finalize(deliverCtx)
		if err != nil {
			log.WithError(err).WithField("video_id", u.videoID).Warn("Finalize failed")
		} else {
			stats.Finalized = true
			stats.Final = final
			logSummary(log.WithField("video_id", u.videoID), final)
		}
	}
	log.WithFields(log.Fields{
		"video_id":    u.videoID,
		"posts":       stats.Posts,
		"frames_sent": stats.FramesSent,
	}).Info("Clip uploader stopped")
	return stats, nil
}

// expectedPosts estimates the number of posts for a file source, 0 when
// unknown.
func (u *Uploader) expectedPosts(src Source, clipEnd time.Duration) int {
	if !src.Seekable() {
		return 0
	}
	length, ok := src.Length()
	if !ok || length <= 0 {
		return 0
	}
	end := length
	if clipEnd > 0 && clipEnd < end {
		end = clipEnd
	}
	effective := max(0, end-src.Position())
	samples := effective.Seconds() / u.cfg.SampleInterval.Seconds()
	return int(math.Ceil(samples / float64(u.cfg.BatchSize)))
}

func (u *Uploader) buildItem(frame image.Image) (Item, error) {
	jpg, err := imaging.EncodeJPEG(frame, u.cfg.JPEGQuality)
	if err != nil {
		return Item{}, fmt.Errorf("encode frame: %w", err)
	}
	return Item{
		RoomID:      u.cfg.RoomID,
		VideoID:     u.videoID,
		CapturedAt:  u.clock.Now().UTC().Format(time.RFC3339Nano),
		MimeType:    "image/jpeg",
		ImageBase64: base64.StdEncoding.EncodeToString(jpg),
		CameraID:    u.cfg.CameraID,
	}, nil
}

func (u *Uploader) retryPolicy() httputil.RetryPolicy {
	return httputil.RetryPolicy{
		MaxAttempts: u.cfg.Retries + 1,
		Backoff:     httputil.LinearBackoff(u.cfg.RetryBackoff),
		Clock:       u.clock,
	}
}

func (u *Uploader) headers() map[string]string {
	return map[string]string{APIKeyHeader: u.cfg.APIKey}
}

// waitForRateLimit keeps posts at least MinPostInterval apart.
func (u *Uploader) waitForRateLimit(ctx context.Context) {
	if u.lastPost == nil {
		return
	}
	if wait := u.cfg.MinPostInterval - u.clock.Since(*u.lastPost); wait > 0 {
		_ = timeutil.Sleep(ctx, u.clock, wait)
	}
}

// postBatch delivers one batch and reports whether the service answered.
// Transport failures are retried; an error status is an answer and is
// logged without retrying.
func (u *Uploader) postBatch(ctx context.Context, batch []Item, n, expected int, left *time.Duration) bool {
	entry := log.WithFields(log.Fields{"post": n, "flush": len(batch)})
	if expected > 0 {
		entry = entry.WithField("expected_posts", expected)
	}

	u.waitForRateLimit(ctx)
	var resp IngestResponse
	var statusErr *httputil.StatusError
	err := httputil.Do(ctx, "ingest batch", u.retryPolicy(), func(ctx context.Context) error {
		reqCtx, cancel := u.requestContext(ctx)
		defer cancel()
		err := httputil.PostJSON(reqCtx, u.client, u.cfg.ingestURL(), u.headers(), map[string]interface{}{"items": batch}, &resp)
		if errors.As(err, &statusErr) {
			return nil
		}
		return err
	})
	now := u.clock.Now()
	u.lastPost = &now

	if err != nil {
		entry.WithError(err).Warn("Batch post failed")
		return false
	}
	if statusErr != nil {
		entry.WithFields(log.Fields{"status": statusErr.StatusCode, "body": statusErr.Body}).Warn("Batch rejected")
		return true
	}

	fields := log.Fields{"status": http.StatusOK}
	if resp.Accepted != nil {
		fields["accepted"] = *resp.Accepted
	}
	if resp.Analyzed != nil {
		fields["analyzed"] = *resp.Analyzed
	}
	if resp.Inserted != nil {
		fields["inserted"] = *resp.Inserted
	}
	if left != nil {
		fields["video_seconds_left"] = fmt.Sprintf("%.1f", left.Seconds())
	}
	entry.WithFields(fields).Info("Batch posted")
	logSummary(entry, &resp)
	return true
}

func (u *Uploader) finalize(ctx context.Context) (*IngestResponse, error) {
	log.WithField("video_id", u.videoID).Info("Finalizing video summary")
	var resp IngestResponse
	err := httputil.Do(ctx, "finalize video", u.retryPolicy(), func(ctx context.Context) error {
		reqCtx, cancel := u.requestContext(ctx)
		defer cancel()
		err := httputil.PostJSON(reqCtx, u.client, u.cfg.finalizeURL(), u.headers(), map[string]string{"video_id": u.videoID}, &resp)
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) {
			return httputil.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (u *Uploader) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if u.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, u.cfg.RequestTimeout)
}

func logSummary(entry *log.Entry, resp *IngestResponse) {
	if resp == nil {
		return
	}
	if resp.FinalVideoSummary != "" {
		entry.WithField("summary", resp.FinalVideoSummary).Info("Video summary")
	}
	if resp.OverallRiskLevel != "" || resp.OverallSuspicionScore != nil {
		f := log.Fields{"risk": resp.OverallRiskLevel}
		if resp.OverallSuspicionScore != nil {
			f["score"] = *resp.OverallSuspicionScore
		}
		entry.WithFields(f).Info("Overall risk")
	}
	if resp.RecommendedAction != "" {
		entry.WithField("action", resp.RecommendedAction).Info("Recommended action")
	}
	if len(resp.Errors) > 0 {
		entry.WithField("errors", resp.Errors).Warn("Ingestion errors")
	}
}
