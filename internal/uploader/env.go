package uploader

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by FromEnv.
const (
	EnvSource          = "CAMERA_SOURCE"
	EnvBaseURL         = "NEXT_API_BASE_URL"
	EnvAPIKey          = "CV_API_KEY"
	EnvRoomID          = "ROOM_ID"
	EnvCameraID        = "CAMERA_ID"
	EnvVideoID         = "VIDEO_ID"
	EnvBatchSize       = "BATCH_SIZE"
	EnvFlush           = "FLUSH_SECONDS"
	EnvSample          = "FRAME_SAMPLE_SECONDS"
	EnvRequestTimeout  = "REQUEST_TIMEOUT_SECONDS"
	EnvJPEGQuality     = "JPEG_QUALITY"
	EnvRetries         = "POST_RETRIES"
	EnvRetryBackoff    = "RETRY_BACKOFF_SECONDS"
	EnvMinPostInterval = "MIN_POST_INTERVAL_SECONDS"
	EnvStartOffset     = "START_OFFSET_SECONDS"
	EnvMaxDuration     = "MAX_DURATION_SECONDS"
)

// DefaultSource is the first camera.
const DefaultSource = "0"

// FromEnv reads the uploader settings and the video source name from getenv.
// Unset variables keep DefaultConfig values. The result is validated.
func FromEnv(getenv func(string) string) (Config, string, error) {
	cfg := DefaultConfig()
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	source := get(EnvSource)
	if source == "" {
		source = DefaultSource
	}
	if v := get(EnvBaseURL); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	cfg.APIKey = get(EnvAPIKey)
	cfg.RoomID = get(EnvRoomID)
	cfg.CameraID = get(EnvCameraID)
	cfg.VideoID = get(EnvVideoID)

	var errs []error
	intVar := func(dst *int, key string) {
		v := get(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
			return
		}
		*dst = n
	}
	secondsVar := func(dst *time.Duration, key string) {
		v := get(key)
		if v == "" {
			return
		}
		d, err := parseSeconds(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}

	intVar(&cfg.BatchSize, EnvBatchSize)
	secondsVar(&cfg.FlushInterval, EnvFlush)
	secondsVar(&cfg.SampleInterval, EnvSample)
	secondsVar(&cfg.RequestTimeout, EnvRequestTimeout)
	intVar(&cfg.JPEGQuality, EnvJPEGQuality)
	intVar(&cfg.Retries, EnvRetries)
	secondsVar(&cfg.RetryBackoff, EnvRetryBackoff)
	secondsVar(&cfg.MinPostInterval, EnvMinPostInterval)
	secondsVar(&cfg.StartOffset, EnvStartOffset)
	if get(EnvMaxDuration) != "" {
		secondsVar(&cfg.MaxDuration, EnvMaxDuration)
		if cfg.MaxDuration <= 0 {
			errs = append(errs, errors.New("MAX_DURATION_SECONDS must be > 0 when provided"))
		}
	}
	if len(errs) > 0 {
		return cfg, source, errors.Join(errs...)
	}
	return cfg, source, cfg.Validate()
}

// parseSeconds parses a decimal number of seconds, such as "1.5".
func parseSeconds(v string) (time.Duration, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("expected seconds, got %q", v)
	}
	return time.Duration(f * float64(time.Second)), nil
}
