package rooms

import (
	"context"
	"errors"
	"fmt"
	"image"

	log "github.com/sirupsen/logrus"
)

// Source names where a run's boundaries came from.
type Source string

const (
	SourceConfig Source = "rooms-config"
	SourceAuto   Source = "auto-detect"
	SourceManual Source = "manual-line"
)

// BoundaryDetector derives boundaries from a single frame. An empty result is
// a normal outcome, not an error.
type BoundaryDetector interface {
	DetectBoundaries(ctx context.Context, frame image.Image) ([]Boundary, error)
}

// Options selects the boundary source for a run.
type Options struct {
	ConfigPath string
	// AutoDetect enables the detector when no config path is set.
	AutoDetect bool
	Detector   BoundaryDetector
	Manual     ManualLine
	Defaults   Defaults
	// LockOnDetect stops refreshing once detection has produced boundaries.
	LockOnDetect bool
}

// Registry owns the active boundary set.
type Registry struct {
	opts       Options
	source     Source
	boundaries []Boundary
	locked     bool
}

// NewRegistry returns a registry for opts. Call Load before use.
func NewRegistry(opts Options) *Registry {
	return &Registry{opts: opts}
}

// Load resolves the initial boundary set from frame. Only configuration
// problems are returned as errors; detection yielding nothing is not one.
func (r *Registry) Load(ctx context.Context, frame image.Image) error {
	width := frame.Bounds().Dx()

	switch {
	case r.opts.ConfigPath != "":
		bs, err := LoadRoomsConfig(r.opts.ConfigPath, width, r.opts.Defaults)
		if err != nil {
			return err
		}
		r.source = SourceConfig
		r.boundaries = bs

	case r.opts.AutoDetect:
		if r.opts.Detector == nil {
			return errors.New("auto door detection requested without a door detector")
		}
		r.source = SourceAuto
		if _, err := r.Refresh(ctx, frame); err != nil {
			return fmt.Errorf("initial door detection: %w", err)
		}

	default:
		bs, err := r.opts.Manual.Boundaries(width, r.opts.Defaults)
		if err != nil {
			return err
		}
		r.source = SourceManual
		r.boundaries = bs
	}

	log.WithFields(log.Fields{
		"source":     r.source,
		"boundaries": len(r.boundaries),
	}).Info("Boundaries loaded")
	return nil
}

// Source reports which source supplied the boundaries.
func (r *Registry) Source() Source { return r.source }

// Boundaries returns a copy of the active boundary set.
func (r *Registry) Boundaries() []Boundary { return Clone(r.boundaries) }

// Locked reports whether refreshing has stopped for the rest of the run.
func (r *Registry) Locked() bool { return r.locked }

// Refreshable reports whether Refresh would consult the detector.
func (r *Registry) Refreshable() bool {
	return r.source == SourceAuto && r.opts.Detector != nil && !r.locked
}

// Refresh runs the detector on frame and adopts its result when it is not
// empty and has at least as many boundaries as the current set. A shrinking
// or empty result keeps the current set, so a briefly occluded door does not
// disappear. It returns true when the active set was replaced.
func (r *Registry) Refresh(ctx context.Context, frame image.Image) (bool, error) {
	if !r.Refreshable() {
		return false, nil
	}

	next, err := r.opts.Detector.DetectBoundaries(ctx, frame)
	if err != nil {
		return false, err
	}
	if len(next) == 0 || len(next) < len(r.boundaries) {
		log.WithFields(log.Fields{
			"detected": len(next),
			"current":  len(r.boundaries),
		}).Debug("Keeping current boundaries")
		return false, nil
	}

	r.boundaries = Clone(next)
	if r.opts.LockOnDetect {
		r.locked = true
		log.WithField("boundaries", len(r.boundaries)).Info("[door-status] LOCKED: using detected doors for this run")
	}
	return true, nil
}
