package config

import (
	"math"

	"github.com/ironsheep/occupancy-counter/internal/counting"
	"github.com/ironsheep/occupancy-counter/internal/dispatch"
	"github.com/ironsheep/occupancy-counter/internal/doors"
	"github.com/ironsheep/occupancy-counter/internal/geometry"
	"github.com/ironsheep/occupancy-counter/internal/rooms"
)

// RoomDefaults returns the boundary attributes applied to every room that
// does not set its own.
func (s *Settings) RoomDefaults() rooms.Defaults {
	return rooms.Defaults{
		Direction:        geometry.Direction(s.Rooms.Direction),
		Margin:           s.Rooms.Margin,
		Thickness:        s.Rooms.Thickness,
		InitialOccupancy: s.Rooms.InitialOccupancy,
	}
}

// DoorConfig returns the door detection settings.
func (s *Settings) DoorConfig() doors.Config {
	cfg := doors.DefaultConfig()
	d := s.Doors
	cfg.Prompts = doors.ParsePrompts(d.Prompt, d.Prompts)
	cfg.NegativePrompts = doors.ParseNegativePrompts(d.NegativePrompts)
	cfg.Confidence = d.Conf
	cfg.NegativeConfidence = d.NegativeConf
	cfg.NMSIoU = d.NMSIoU
	cfg.NegativeIoU = d.NegativeIoU
	cfg.MaxHeightRatio = d.MaxHeightRatio
	cfg.MaxDoors = d.MaxDoors
	cfg.MinWidth = d.MinWidth
	cfg.SplitWideBoxes = d.SplitWideBoxes
	cfg.SplitRatio = d.SplitRatio
	cfg.Gate = doors.GateParams{
		LineOffset:     d.LineOffset,
		MaxAngle:       d.GateMaxAngle,
		MinBottomRatio: d.MinBottomRatio,
	}
	cfg.RequireEdgeThreshold = d.RequireEdgeThreshold
	cfg.Preprocess = d.Preprocess
	cfg.Gamma = d.Gamma
	cfg.Room = s.RoomDefaults()
	cfg.Debug = d.Debug
	return cfg
}

// RoomOptions returns the registry options. detector may be nil when auto
// detection is off.
func (s *Settings) RoomOptions(detector rooms.BoundaryDetector) rooms.Options {
	return rooms.Options{
		ConfigPath: s.Rooms.ConfigPath,
		AutoDetect: s.Doors.AutoDetect,
		Detector:   detector,
		Manual: rooms.ManualLine{
			Y:  s.Rooms.Line,
			X1: s.Rooms.LineX1,
			X2: s.Rooms.LineX2,
		},
		Defaults:     s.RoomDefaults(),
		LockOnDetect: s.Doors.LockOnDetect,
	}
}

// CountingConfig returns the session configuration for a width x height
// video.
func (s *Settings) CountingConfig(width, height int) (counting.Config, error) {
	mode, err := counting.ParseMode(s.Counting.Mode, counting.ZoneMode{
		Depth:  s.Counting.ZoneDepth,
		Extend: s.Counting.ZoneExtend,
	})
	if err != nil {
		return counting.Config{}, err
	}
	return counting.Config{
		Mode:   mode,
		Width:  width,
		Height: height,
		Smoothing: counting.Smoothing{
			MaxStepY: s.Counting.SmoothMaxStep,
			Alpha:    s.Counting.SmoothAlpha,
		},
		StaleFrames: s.Counting.StaleFrames,
	}, nil
}

// DispatchConfig returns the dispatcher configuration.
func (s *Settings) DispatchConfig() dispatch.Config {
	cfg := dispatch.DefaultConfig()
	cfg.RunRoomID = s.API.RoomID
	cfg.RiskTimeout = s.API.RiskTimeout
	cfg.ExitStep = s.API.UploadExitStep
	cfg.MaxTriggers = s.API.MaxUploadTriggers
	return cfg
}

// RefreshInterval returns the number of frames between door detection
// refreshes at fps, or 0 when refreshing is disabled. A positive
// RefreshSeconds wins over RefreshFrames.
func (s *Settings) RefreshInterval(fps float64) int {
	if s.Doors.RefreshSeconds > 0 {
		if fps <= 0 {
			fps = 30
		}
		return max(1, int(math.Round(math.Max(0.05, s.Doors.RefreshSeconds)*fps)))
	}
	return max(0, s.Doors.RefreshFrames)
}
