package dispatch

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ironsheep/occupancy-counter/internal/counting"
	"github.com/ironsheep/occupancy-counter/internal/rooms"
)

// Config tunes the upload trigger policy.
type Config struct {
	// RunRoomID is the room identifier for boundaries without their own
	// risk room ID.
	RunRoomID string
	// RiskTimeout bounds each risk check.
	RiskTimeout time.Duration
	// ExitStep is both the initial number of exits required between
	// uploads and the amount it grows after each upload.
	ExitStep int
	// MaxTriggers caps the uploads per run. Zero disables uploads.
	MaxTriggers int
}

// DefaultConfig returns a 10s risk timeout, an exit step of 2 and at most 3
// uploads.
func DefaultConfig() Config {
	return Config{RiskTimeout: 10 * time.Second, ExitStep: 2, MaxTriggers: 3}
}

// Dispatcher reacts to crossing events: every entry triggers a risk check,
// and a high-risk verdict may start a clip upload.
//
// An upload starts when the room is high risk, at least ExitThreshold exits
// were counted since the previous upload and fewer than MaxTriggers uploads
// have started. Each upload raises the exit threshold by ExitStep.
type Dispatcher struct {
	cfg  Config
	risk RiskChecker
	sup  *Supervisor

	exitsSinceTrigger int
	exitThreshold     int
	triggers          int
}

// NewDispatcher returns a dispatcher. risk may be nil to disable risk checks
// and with them all uploads.
func NewDispatcher(cfg Config, risk RiskChecker, sup *Supervisor) *Dispatcher {
	if cfg.ExitStep <= 0 {
		cfg.ExitStep = 2
	}
	if cfg.RiskTimeout <= 0 {
		cfg.RiskTimeout = 10 * time.Second
	}
	return &Dispatcher{
		cfg:           cfg,
		risk:          risk,
		sup:           sup,
		exitThreshold: cfg.ExitStep,
	}
}

// ExitThreshold is the number of exits the next upload requires.
func (d *Dispatcher) ExitThreshold() int { return d.exitThreshold }

// Triggers is the number of uploads started so far.
func (d *Dispatcher) Triggers() int { return d.triggers }

// OnEvent handles one crossing event on boundary b. Risk failures are
// logged and otherwise ignored.
func (d *Dispatcher) OnEvent(ctx context.Context, ev counting.CrossingEvent, b rooms.Boundary) {
	if ev.Kind == counting.KindExit {
		d.exitsSinceTrigger++
		return
	}
	if d.risk == nil {
		return
	}

	roomID := b.ResolveRiskRoomID(d.cfg.RunRoomID)
	entry := log.WithFields(log.Fields{
		"room_id":     roomID,
		"boundary_id": ev.BoundaryID,
		"track_id":    ev.TrackID,
	})

	checkCtx, cancel := context.WithTimeout(ctx, d.cfg.RiskTimeout)
	res, err := d.risk.CheckRoom(checkCtx, roomID)
	cancel()
	if err != nil {
		entry.WithError(err).Warn("Room risk check failed")
		return
	}
	entry.WithFields(log.Fields{
		"found":          res.Found,
		"risk_score":     res.RiskScore,
		"risk_threshold": res.RiskThreshold,
		"is_high_risk":   res.IsHighRisk,
	}).Info("Room risk result")

	if !res.IsHighRisk {
		return
	}
	if d.triggers >= d.cfg.MaxTriggers {
		entry.WithField("max_triggers", d.cfg.MaxTriggers).Debug("Upload cap reached")
		return
	}
	if d.exitsSinceTrigger < d.exitThreshold {
		entry.WithFields(log.Fields{
			"exits":     d.exitsSinceTrigger,
			"threshold": d.exitThreshold,
		}).Debug("Not enough exits since last upload")
		return
	}
	if d.sup == nil {
		entry.Warn("High risk room but no uploader configured")
		return
	}

	task := d.sup.Start(ctx, UploadRequest{
		RoomID:       roomID,
		BoundaryID:   ev.BoundaryID,
		TrackID:      ev.TrackID,
		Frame:        ev.Frame,
		ClipDuration: ev.VideoTime,
	})
	d.exitsSinceTrigger = 0
	d.exitThreshold += d.cfg.ExitStep
	d.triggers++
	entry.WithFields(log.Fields{
		"task_id":        task.ID,
		"clip_duration":  ev.VideoTime,
		"trigger":        d.triggers,
		"next_threshold": d.exitThreshold,
	}).Info("Clip upload started")
}

// Poll logs and returns upload completions without blocking. Call it at
// least once per frame.
func (d *Dispatcher) Poll() []Completion {
	if d.sup == nil {
		return nil
	}
	done := d.sup.Poll()
	for _, c := range done {
		entry := log.WithFields(log.Fields{
			"task_id":  c.ID,
			"room_id":  c.Request.RoomID,
			"duration": c.Finished.Sub(c.Started),
		})
		if c.Err != nil {
			entry.WithError(c.Err).Warn("Clip upload failed")
		} else {
			entry.Info("Clip upload finished")
		}
	}
	return done
}

// Shutdown reports completions one last time and logs tasks still running.
// Running tasks are left alone.
func (d *Dispatcher) Shutdown() []Task {
	d.Poll()
	if d.sup == nil {
		return nil
	}
	pending := d.sup.Pending()
	for _, t := range pending {
		log.WithFields(log.Fields{
			"task_id": t.ID,
			"room_id": t.Request.RoomID,
		}).Warn("Clip upload still running at shutdown")
	}
	return pending
}
