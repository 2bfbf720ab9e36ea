package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the complete configuration of a counting run.
type Settings struct {
	Video    string `yaml:"video"`
	Show     bool   `yaml:"show"`
	Save     bool   `yaml:"save"`
	Output   string `yaml:"output"`
	LogLevel string `yaml:"log_level"`

	Tracker  TrackerSettings  `yaml:"tracker"`
	Doors    DoorSettings     `yaml:"doors"`
	Rooms    RoomSettings     `yaml:"rooms"`
	Counting CountingSettings `yaml:"counting"`
	API      APISettings      `yaml:"api"`
	Sinks    SinkSettings     `yaml:"sinks"`
}

// TrackerSettings configures the person tracking service.
type TrackerSettings struct {
	URL   string  `yaml:"url"`
	Model string  `yaml:"model"`
	Conf  float64 `yaml:"conf"`
}

// DoorSettings configures automatic door detection.
type DoorSettings struct {
	AutoDetect           bool          `yaml:"auto_detect"`
	DetectorURL          string        `yaml:"detector_url"`
	Model                string        `yaml:"model"`
	Prompt               string        `yaml:"prompt"`
	Prompts              string        `yaml:"prompts"`          // comma separated
	NegativePrompts      string        `yaml:"negative_prompts"` // comma separated
	Conf                 float64       `yaml:"conf"`
	NegativeConf         float64       `yaml:"negative_conf"`
	NMSIoU               float64       `yaml:"nms_iou"`
	NegativeIoU          float64       `yaml:"negative_iou"`
	MaxHeightRatio       float64       `yaml:"max_height_ratio"`
	MaxDoors             int           `yaml:"max_doors"`
	MinWidth             int           `yaml:"min_width"`
	LineOffset           int           `yaml:"line_offset"`
	GateMaxAngle         float64       `yaml:"gate_max_angle"`
	MinBottomRatio       float64       `yaml:"min_bottom_ratio"`
	RequireEdgeThreshold bool          `yaml:"require_edge_threshold"`
	SplitWideBoxes       bool          `yaml:"split_wide_boxes"`
	SplitRatio           float64       `yaml:"split_ratio"`
	Preprocess           string        `yaml:"preprocess"`
	Gamma                float64       `yaml:"gamma"`
	RefreshFrames        int           `yaml:"refresh_frames"`
	RefreshSeconds       float64       `yaml:"refresh_seconds"`
	LockOnDetect         bool          `yaml:"lock_on_detect"`
	Debug                bool          `yaml:"debug"`
	DebugMaxDraw         int           `yaml:"debug_max_draw"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
}

// RoomSettings configures the counting boundaries when they do not come
// from detection.
type RoomSettings struct {
	ConfigPath       string `yaml:"config"`
	Line             *int   `yaml:"line"`
	LineX1           *int   `yaml:"line_x1"`
	LineX2           *int   `yaml:"line_x2"`
	Direction        string `yaml:"direction"`
	Margin           int    `yaml:"margin"`
	Thickness        int    `yaml:"thickness"`
	InitialOccupancy int    `yaml:"initial_occupancy"`
}

// CountingSettings selects the crossing classifier and track hygiene.
type CountingSettings struct {
	Mode          string  `yaml:"mode"`
	ZoneDepth     float64 `yaml:"zone_depth"`
	ZoneExtend    bool    `yaml:"zone_extend"`
	SmoothAlpha   float64 `yaml:"smooth_alpha"`
	SmoothMaxStep float64 `yaml:"smooth_max_step"`
	StaleFrames   int     `yaml:"stale_frames"`
}

// APISettings configures the risk service and clip uploads.
type APISettings struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	RoomID            string        `yaml:"room_id"`
	CameraID          string        `yaml:"camera_id"`
	RiskTimeout       time.Duration `yaml:"risk_timeout"`
	MaxUploadTriggers int           `yaml:"max_upload_triggers"`
	UploadExitStep    int           `yaml:"upload_exit_step"`
}

// SinkSettings configures where crossing events are recorded.
type SinkSettings struct {
	EventsDB   string `yaml:"events_db"`
	MQTTBroker string `yaml:"mqtt_broker"`
	MQTTTopic  string `yaml:"mqtt_topic"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Output:   "output.mp4",
		LogLevel: "info",
		Tracker: TrackerSettings{
			URL:   "http://localhost:8000",
			Model: "yolov8n.pt",
			Conf:  0.35,
		},
		Doors: DoorSettings{
			DetectorURL:     "http://localhost:8001",
			Model:           "yolov8s-worldv2.pt",
			Prompt:          "door",
			Prompts:         "door,doorway,entrance,open door,glass door,clear door,wooden door,metal door",
			NegativePrompts: "window,glass window,floor to ceiling window,picture window",
			Conf:            0.25,
			NegativeConf:    0.20,
			NMSIoU:          0.45,
			NegativeIoU:     0.40,
			MaxHeightRatio:  0.93,
			MaxDoors:        4,
			MinWidth:        80,
			LineOffset:      6,
			GateMaxAngle:    35,
			MinBottomRatio:  0.55,
			SplitRatio:      1.35,
			Preprocess:      "none",
			Gamma:           1.0,
			RefreshFrames:   30,
			RefreshSeconds:  1.0,
			DebugMaxDraw:    30,
			RequestTimeout:  15 * time.Second,
		},
		Rooms: RoomSettings{
			Direction: "down",
			Margin:    6,
			Thickness: 2,
		},
		Counting: CountingSettings{
			Mode:      "line",
			ZoneDepth: 40,
		},
		API: APISettings{
			BaseURL:           "http://localhost:3000",
			RiskTimeout:       10 * time.Second,
			MaxUploadTriggers: 3,
			UploadExitStep:    2,
		},
		Sinks: SinkSettings{
			MQTTTopic: "occupancy/events",
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path. Keys absent
// from the file keep their defaults.
func Load(path string) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return s, nil
}

// Environment variables read by ApplyEnv.
const (
	EnvAPIBaseURL  = "NEXT_API_BASE_URL"
	EnvAPIKey      = "CV_API_KEY"
	EnvRoomID      = "ROOM_ID"
	EnvCameraID    = "CAMERA_ID"
	EnvTrackerURL  = "TRACKER_URL"
	EnvDetectorURL = "DOOR_DETECTOR_URL"
	EnvLogLevel    = "OCCUPANCY_LOG_LEVEL"
)

// ApplyEnv overrides settings with the non-empty environment variables
// returned by getenv.
func (s *Settings) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&s.API.BaseURL, EnvAPIBaseURL)
	set(&s.API.APIKey, EnvAPIKey)
	set(&s.API.RoomID, EnvRoomID)
	set(&s.API.CameraID, EnvCameraID)
	set(&s.Tracker.URL, EnvTrackerURL)
	set(&s.Doors.DetectorURL, EnvDetectorURL)
	set(&s.LogLevel, EnvLogLevel)
}

// Validate checks the settings a run cannot start without.
func (s *Settings) Validate() error {
	var errs []error
	if s.Video == "" {
		errs = append(errs, errors.New("video is required"))
	}
	switch s.Rooms.Direction {
	case "down", "up":
	default:
		errs = append(errs, fmt.Errorf("direction must be 'down' or 'up', got %q", s.Rooms.Direction))
	}
	switch s.Doors.Preprocess {
	case "none", "clahe":
	default:
		errs = append(errs, fmt.Errorf("door preprocess must be 'none' or 'clahe', got %q", s.Doors.Preprocess))
	}
	switch s.Counting.Mode {
	case "line", "zone":
	default:
		errs = append(errs, fmt.Errorf("counting mode must be 'line' or 'zone', got %q", s.Counting.Mode))
	}
	if s.Rooms.Margin < 0 {
		errs = append(errs, errors.New("line margin must be >= 0"))
	}
	if s.Counting.SmoothAlpha < 0 || s.Counting.SmoothAlpha > 1 {
		errs = append(errs, errors.New("smooth alpha must be in [0,1]"))
	}
	if s.Doors.Gamma <= 0 {
		errs = append(errs, errors.New("door gamma must be > 0"))
	}
	if s.API.MaxUploadTriggers > 0 && s.API.UploadExitStep < 1 {
		errs = append(errs, errors.New("upload exit step must be >= 1"))
	}
	return errors.Join(errs...)
}
