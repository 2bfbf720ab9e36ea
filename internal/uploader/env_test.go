package uploader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, source, err := FromEnv(envOf(map[string]string{
		EnvAPIKey: "secret",
		EnvRoomID: "304",
	}))
	require.NoError(t, err)
	assert.Equal(t, DefaultSource, source)

	want := DefaultConfig()
	want.APIKey = "secret"
	want.RoomID = "304"
	assert.Equal(t, want, cfg)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, source, err := FromEnv(envOf(map[string]string{
		EnvSource:          " clips/hall.mp4 ",
		EnvBaseURL:         "https://ops.example.com/",
		EnvAPIKey:          "secret",
		EnvRoomID:          "304",
		EnvCameraID:        "cam-2",
		EnvVideoID:         "vid_fixed",
		EnvBatchSize:       "8",
		EnvFlush:           "2.5",
		EnvSample:          "0.5",
		EnvRequestTimeout:  "30",
		EnvJPEGQuality:     "60",
		EnvRetries:         "0",
		EnvRetryBackoff:    "0.25",
		EnvMinPostInterval: "0",
		EnvStartOffset:     "12",
		EnvMaxDuration:     "90",
	}))
	require.NoError(t, err)
	assert.Equal(t, "clips/hall.mp4", source)
	assert.Equal(t, "https://ops.example.com", cfg.BaseURL)
	assert.Equal(t, "cam-2", cfg.CameraID)
	assert.Equal(t, "vid_fixed", cfg.VideoID)
	assert.Equal(t, 8, cfg.BatchSize)
	assert.Equal(t, 2500*time.Millisecond, cfg.FlushInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.SampleInterval)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 60, cfg.JPEGQuality)
	assert.Equal(t, 0, cfg.Retries)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryBackoff)
	assert.Equal(t, time.Duration(0), cfg.MinPostInterval)
	assert.Equal(t, 12*time.Second, cfg.StartOffset)
	assert.Equal(t, 90*time.Second, cfg.MaxDuration)
}

func TestFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing key", map[string]string{EnvRoomID: "1"}, "missing CV_API_KEY"},
		{"missing room", map[string]string{EnvAPIKey: "k"}, "missing ROOM_ID"},
		{"bad batch", map[string]string{EnvAPIKey: "k", EnvRoomID: "1", EnvBatchSize: "five"}, "BATCH_SIZE must be an integer"},
		{"bad seconds", map[string]string{EnvAPIKey: "k", EnvRoomID: "1", EnvFlush: "soon"}, "FLUSH_SECONDS"},
		{"zero max duration", map[string]string{EnvAPIKey: "k", EnvRoomID: "1", EnvMaxDuration: "0"}, "MAX_DURATION_SECONDS must be > 0"},
		{"quality", map[string]string{EnvAPIKey: "k", EnvRoomID: "1", EnvJPEGQuality: "101"}, "JPEG_QUALITY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := FromEnv(envOf(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
