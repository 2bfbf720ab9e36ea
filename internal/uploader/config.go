package uploader

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config controls sampling, batching and delivery of uploaded frames.
type Config struct {
	BaseURL  string
	APIKey   string
	RoomID   string
	CameraID string
	// VideoID groups the uploaded frames; empty generates one per run.
	VideoID string

	BatchSize       int
	FlushInterval   time.Duration
	SampleInterval  time.Duration
	RequestTimeout  time.Duration
	JPEGQuality     int
	Retries         int
	RetryBackoff    time.Duration
	MinPostInterval time.Duration

	// StartOffset and MaxDuration only apply to seekable sources. A zero
	// MaxDuration uploads to the end of the source.
	StartOffset time.Duration
	MaxDuration time.Duration
}

// DefaultConfig returns the delivery defaults of the ingestion service.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://localhost:3000",
		BatchSize:       5,
		FlushInterval:   5 * time.Second,
		SampleInterval:  time.Second,
		RequestTimeout:  90 * time.Second,
		JPEGQuality:     75,
		Retries:         2,
		RetryBackoff:    1500 * time.Millisecond,
		MinPostInterval: time.Second,
	}
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch {
	case c.APIKey == "":
		return errors.New("missing CV_API_KEY")
	case c.RoomID == "":
		return errors.New("missing ROOM_ID")
	case c.BatchSize < 1:
		return errors.New("BATCH_SIZE must be >= 1")
	case c.FlushInterval <= 0 || c.SampleInterval <= 0:
		return errors.New("FLUSH_SECONDS and FRAME_SAMPLE_SECONDS must be > 0")
	case c.StartOffset < 0:
		return errors.New("START_OFFSET_SECONDS must be >= 0")
	case c.MaxDuration < 0:
		return errors.New("MAX_DURATION_SECONDS must be > 0 when provided")
	case c.JPEGQuality < 1 || c.JPEGQuality > 100:
		return fmt.Errorf("JPEG_QUALITY must be in [1,100], got %d", c.JPEGQuality)
	case c.Retries < 0:
		return errors.New("POST_RETRIES must be >= 0")
	}
	return nil
}

func (c Config) ingestURL() string {
	return strings.TrimRight(c.BaseURL, "/") + IngestPath
}

func (c Config) finalizeURL() string {
	return strings.TrimRight(c.BaseURL, "/") + FinalizePath
}
