package config

import (
	"flag"
	"strconv"
	"strings"
)

// optionalInt is a flag that distinguishes "not given" from zero.
type optionalInt struct {
	p **int
}

func (o optionalInt) String() string {
	if o.p == nil || *o.p == nil {
		return ""
	}
	return strconv.Itoa(**o.p)
}

func (o optionalInt) Set(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*o.p = &v
	return nil
}

// ConfigFlag is the name of the flag naming a YAML settings file.
const ConfigFlag = "config"

// FindConfigPath returns the value of --config in args without parsing the
// other flags, so the file can be loaded before flags override it.
func FindConfigPath(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			break
		}
		name := strings.TrimLeft(a, "-")
		if name == a {
			continue
		}
		if v, ok := strings.CutPrefix(name, ConfigFlag+"="); ok {
			return v
		}
		if name == ConfigFlag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// RegisterFlags binds every setting to a flag on fs, using the current
// values as defaults. Parsing fs afterwards lets flags win over the file
// and the environment.
func (s *Settings) RegisterFlags(fs *flag.FlagSet) {
	fs.String(ConfigFlag, "", "YAML settings file")
	fs.StringVar(&s.LogLevel, "log-level", s.LogLevel, "Log level: debug, info, warn")

	fs.StringVar(&s.Video, "video", s.Video, "Path to input video file (required)")
	fs.BoolVar(&s.Show, "show", s.Show, "Display annotated video while processing")
	fs.BoolVar(&s.Save, "save", s.Save, "Write the annotated video to --output")
	fs.StringVar(&s.Output, "output", s.Output, "Output path for the annotated video")

	fs.StringVar(&s.Tracker.URL, "tracker-url", s.Tracker.URL, "Person tracking service base URL")
	fs.StringVar(&s.Tracker.Model, "model", s.Tracker.Model, "Person tracking model forwarded to the tracker")
	fs.Float64Var(&s.Tracker.Conf, "conf", s.Tracker.Conf, "Person detection confidence threshold")

	d := &s.Doors
	fs.BoolVar(&d.AutoDetect, "auto-detect-doors", d.AutoDetect, "Detect doors and create one counting line per door (ignored with --rooms-config)")
	fs.StringVar(&d.DetectorURL, "door-detector-url", d.DetectorURL, "Door detection service base URL")
	fs.StringVar(&d.Model, "door-model", d.Model, "Door detection model forwarded to the detector")
	fs.StringVar(&d.Prompt, "door-prompt", d.Prompt, "Fallback prompt when --door-prompts is empty")
	fs.StringVar(&d.Prompts, "door-prompts", d.Prompts, "Comma-separated prompts for door detection")
	fs.StringVar(&d.NegativePrompts, "door-negative-prompts", d.NegativePrompts, "Comma-separated prompts that reject overlapping door candidates")
	fs.Float64Var(&d.Conf, "door-conf", d.Conf, "Confidence threshold for door detection")
	fs.Float64Var(&d.NegativeConf, "door-negative-conf", d.NegativeConf, "Confidence threshold for negative prompt detections")
	fs.Float64Var(&d.NMSIoU, "door-nms-iou", d.NMSIoU, "NMS IoU threshold for merging duplicate door detections")
	fs.Float64Var(&d.NegativeIoU, "door-negative-iou", d.NegativeIoU, "Reject a door candidate overlapping a negative box above this IoU")
	fs.Float64Var(&d.MaxHeightRatio, "door-max-height-ratio", d.MaxHeightRatio, "Reject candidates taller than this fraction of the frame")
	fs.IntVar(&d.MaxDoors, "max-doors", d.MaxDoors, "Maximum number of doors to track")
	fs.IntVar(&d.MinWidth, "door-min-width", d.MinWidth, "Minimum door width in pixels")
	fs.IntVar(&d.LineOffset, "door-line-offset", d.LineOffset, "Pixels above the door bottom for the fallback gate")
	fs.Float64Var(&d.GateMaxAngle, "door-gate-max-angle", d.GateMaxAngle, "Maximum gate angle in degrees before falling back")
	fs.Float64Var(&d.MinBottomRatio, "door-min-bottom-ratio", d.MinBottomRatio, "Fitted gates must lie below this fraction of the door box")
	fs.BoolVar(&d.RequireEdgeThreshold, "door-require-edge-threshold", d.RequireEdgeThreshold, "Accept only doors whose threshold was found by edge fitting")
	fs.BoolVar(&d.SplitWideBoxes, "door-split-wide-boxes", d.SplitWideBoxes, "Split wide detections into two side-by-side doors")
	fs.Float64Var(&d.SplitRatio, "door-split-ratio", d.SplitRatio, "Width/height ratio above which a split is attempted")
	fs.StringVar(&d.Preprocess, "door-preprocess", d.Preprocess, "Door frame preprocessing: none or clahe")
	fs.Float64Var(&d.Gamma, "door-gamma", d.Gamma, "Gamma correction for the door detection frame")
	fs.IntVar(&d.RefreshFrames, "door-refresh-frames", d.RefreshFrames, "Re-run door detection every N frames when --door-refresh-seconds is 0 (0 disables)")
	fs.Float64Var(&d.RefreshSeconds, "door-refresh-seconds", d.RefreshSeconds, "Re-run door detection every N seconds")
	fs.BoolVar(&d.LockOnDetect, "lock-doors-on-detect", d.LockOnDetect, "Freeze doors after the first successful detection")
	fs.BoolVar(&d.Debug, "debug-doors", d.Debug, "Log door detection details and draw candidate boxes")
	fs.IntVar(&d.DebugMaxDraw, "debug-door-max-draw", d.DebugMaxDraw, "Maximum candidate boxes drawn in debug mode")

	r := &s.Rooms
	fs.StringVar(&r.ConfigPath, "rooms-config", r.ConfigPath, "JSON rooms config; overrides auto detection and --line")
	fs.Var(optionalInt{&r.Line}, "line", "Y coordinate of the counting line")
	fs.Var(optionalInt{&r.LineX1}, "line-x1", "Left X of the counting line (default 0)")
	fs.Var(optionalInt{&r.LineX2}, "line-x2", "Right X of the counting line (default frame width)")
	fs.StringVar(&r.Direction, "direction", r.Direction, "Entry direction: down or up")
	fs.IntVar(&r.Margin, "line-margin", r.Margin, "Dead zone around the line in pixels")
	fs.IntVar(&r.Thickness, "line-thickness", r.Thickness, "Thickness of the drawn counting line")
	fs.IntVar(&r.InitialOccupancy, "initial-occupancy", r.InitialOccupancy, "People already in the room at start")

	c := &s.Counting
	fs.StringVar(&c.Mode, "counting-mode", c.Mode, "Crossing classifier: line or zone")
	fs.Float64Var(&c.ZoneDepth, "zone-depth", c.ZoneDepth, "Depth of each zone in pixels")
	fs.BoolVar(&c.ZoneExtend, "zone-extend", c.ZoneExtend, "Build zones from the gate extended to the frame edges")
	fs.Float64Var(&c.SmoothAlpha, "smooth-alpha", c.SmoothAlpha, "Foot point moving average weight (0 disables)")
	fs.Float64Var(&c.SmoothMaxStep, "smooth-max-step", c.SmoothMaxStep, "Maximum vertical foot movement per frame (0 disables)")
	fs.IntVar(&c.StaleFrames, "stale-frames", c.StaleFrames, "Forget tracks unseen for N frames (0 keeps them)")

	a := &s.API
	fs.StringVar(&a.RoomID, "room-id", a.RoomID, "Room identifier for risk checks and uploads")
	fs.StringVar(&a.BaseURL, "api-base-url", a.BaseURL, "Base URL of the risk and ingestion API")
	fs.StringVar(&a.APIKey, "cv-api-key", a.APIKey, "API key for the risk and ingestion API")
	fs.DurationVar(&a.RiskTimeout, "risk-timeout", a.RiskTimeout, "Timeout of each risk check")
	fs.IntVar(&a.MaxUploadTriggers, "max-upload-triggers", a.MaxUploadTriggers, "Maximum clip uploads per run (0 disables)")
	fs.IntVar(&a.UploadExitStep, "upload-exit-step", a.UploadExitStep, "Exits required before the first upload and added after each")

	fs.StringVar(&s.Sinks.EventsDB, "events-db", s.Sinks.EventsDB, "SQLite file recording crossing events")
	fs.StringVar(&s.Sinks.MQTTBroker, "mqtt-broker", s.Sinks.MQTTBroker, "MQTT broker for crossing events (host:port)")
	fs.StringVar(&s.Sinks.MQTTTopic, "mqtt-topic", s.Sinks.MQTTTopic, "MQTT topic prefix for crossing events")
}

// Parse builds settings from defaults, the --config file, getenv and args,
// in increasing precedence.
func Parse(name string, args []string, getenv func(string) string) (Settings, *flag.FlagSet, error) {
	s := Default()
	if path := FindConfigPath(args); path != "" {
		loaded, err := Load(path)
		if err != nil {
			return s, nil, err
		}
		s = loaded
	}
	s.ApplyEnv(getenv)

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	s.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return s, fs, err
	}
	return s, fs, nil
}
