package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/occupancy-counter/internal/counting"
	"github.com/ironsheep/occupancy-counter/internal/geometry"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "counter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
video: lobby.mp4
doors:
  auto_detect: true
  max_doors: 2
  refresh_seconds: 0.5
rooms:
  line: 300
api:
  risk_timeout: 3s
`)
	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "lobby.mp4", s.Video)
	assert.True(t, s.Doors.AutoDetect)
	assert.Equal(t, 2, s.Doors.MaxDoors)
	assert.Equal(t, 0.5, s.Doors.RefreshSeconds)
	require.NotNil(t, s.Rooms.Line)
	assert.Equal(t, 300, *s.Rooms.Line)
	assert.Equal(t, 3*time.Second, s.API.RiskTimeout)

	// Untouched keys keep their defaults.
	assert.Equal(t, 0.25, s.Doors.Conf)
	assert.Equal(t, "down", s.Rooms.Direction)
	assert.Equal(t, 3, s.API.MaxUploadTriggers)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	_, err = Load(writeConfig(t, "doors: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestParse_Precedence(t *testing.T) {
	path := writeConfig(t, `
tracker:
  url: http://file-tracker:8000
api:
  room_id: from-file
  base_url: http://file-api
`)
	env := envMap(map[string]string{
		"ROOM_ID":           "from-env",
		"CV_API_KEY":        "k",
		"DOOR_DETECTOR_URL": "http://env-detector",
	})
	args := []string{"--config", path, "--video", "in.mp4", "--room-id", "from-flag", "--line", "0", "--counting-mode=zone"}

	s, _, err := Parse("occupancy-counter", args, env)
	require.NoError(t, err)

	assert.Equal(t, "http://file-tracker:8000", s.Tracker.URL, "file over default")
	assert.Equal(t, "http://file-api", s.API.BaseURL)
	assert.Equal(t, "k", s.API.APIKey, "env over default")
	assert.Equal(t, "http://env-detector", s.Doors.DetectorURL)
	assert.Equal(t, "from-flag", s.API.RoomID, "flag over env and file")
	require.NotNil(t, s.Rooms.Line)
	assert.Equal(t, 0, *s.Rooms.Line)
	assert.Nil(t, s.Rooms.LineX1)
	assert.Equal(t, "zone", s.Counting.Mode)
	require.NoError(t, s.Validate())
}

func TestParse_BadFlag(t *testing.T) {
	_, _, err := Parse("occupancy-counter", []string{"--line", "abc"}, envMap(nil))
	require.Error(t, err)
}

func TestFindConfigPath(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--video", "a.mp4"}, ""},
		{[]string{"--config", "a.yaml"}, "a.yaml"},
		{[]string{"-config=b.yaml", "--show"}, "b.yaml"},
		{[]string{"--", "--config", "c.yaml"}, ""},
		{[]string{"--config"}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FindConfigPath(tt.args), "%v", tt.args)
	}
}

func TestValidate(t *testing.T) {
	s := Default()
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "video is required")

	s.Video = "v.mp4"
	s.Rooms.Direction = "sideways"
	s.Doors.Preprocess = "sharpen"
	s.Counting.Mode = "area"
	s.Counting.SmoothAlpha = 2
	err = s.Validate()
	require.Error(t, err)
	for _, want := range []string{"direction", "preprocess", "counting mode", "smooth alpha"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestConverters(t *testing.T) {
	s := Default()
	s.Rooms.Direction = "up"
	s.Rooms.Margin = 9
	s.Doors.Prompts = " ,  "
	s.Doors.Prompt = "doorway"
	s.Doors.NegativePrompts = ""
	s.Doors.LineOffset = 4
	s.API.RoomID = "r-1"
	s.API.UploadExitStep = 3

	defaults := s.RoomDefaults()
	assert.Equal(t, geometry.DirectionUp, defaults.Direction)
	assert.Equal(t, 9, defaults.Margin)

	dc := s.DoorConfig()
	assert.Equal(t, []string{"doorway"}, dc.Prompts)
	assert.Empty(t, dc.NegativePrompts)
	assert.Equal(t, 4, dc.Gate.LineOffset)
	assert.Equal(t, defaults, dc.Room)
	assert.Equal(t, 0.6, dc.SplitStdMultiple)

	opts := s.RoomOptions(nil)
	assert.Equal(t, defaults, opts.Defaults)
	assert.Nil(t, opts.Manual.Y)

	dispatchCfg := s.DispatchConfig()
	assert.Equal(t, "r-1", dispatchCfg.RunRoomID)
	assert.Equal(t, 3, dispatchCfg.ExitStep)

	cc, err := s.CountingConfig(640, 480)
	require.NoError(t, err)
	assert.Equal(t, counting.LineMode{}, cc.Mode)
	assert.Equal(t, 640, cc.Width)

	s.Counting.Mode = "zone"
	s.Counting.ZoneDepth = 0
	_, err = s.CountingConfig(640, 480)
	require.Error(t, err)
}

func TestRefreshInterval(t *testing.T) {
	s := Default()
	assert.Equal(t, 30, s.RefreshInterval(30))
	assert.Equal(t, 25, s.RefreshInterval(25))

	s.Doors.RefreshSeconds = 0.01
	assert.Equal(t, 2, s.RefreshInterval(30), "seconds are floored at 0.05")

	s.Doors.RefreshSeconds = 0
	s.Doors.RefreshFrames = 12
	assert.Equal(t, 12, s.RefreshInterval(30))

	s.Doors.RefreshFrames = 0
	assert.Zero(t, s.RefreshInterval(30))
}
