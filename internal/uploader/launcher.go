package uploader

import (
	"context"
	"errors"
	"fmt"

	"github.com/ironsheep/occupancy-counter/internal/dispatch"
	"github.com/ironsheep/occupancy-counter/internal/httputil"
	"github.com/ironsheep/occupancy-counter/internal/timeutil"
)

// Opener opens a fresh, independent view of the video being counted.
type Opener func() (Source, error)

// Launcher uploads the beginning of the counted video for a room. It
// implements dispatch.Launcher.
type Launcher struct {
	// Config is the template for each upload. RoomID, VideoID, StartOffset
	// and MaxDuration are set per request.
	Config Config
	Open   Opener
	Client httputil.HTTPClient
	Clock  timeutil.Clock
}

var _ dispatch.Launcher = (*Launcher)(nil)

// Launch uploads req.ClipDuration of video from the start under a new video
// id. It fails when no frame could be delivered.
func (l *Launcher) Launch(ctx context.Context, req dispatch.UploadRequest) error {
	cfg := l.Config
	cfg.RoomID = req.RoomID
	cfg.VideoID = ""
	cfg.StartOffset = 0
	cfg.MaxDuration = max(req.ClipDuration, cfg.SampleInterval)

	up, err := New(cfg, l.Client, l.Clock)
	if err != nil {
		return fmt.Errorf("configure upload: %w", err)
	}
	if l.Open == nil {
		return errors.New("no video opener configured")
	}
	src, err := l.Open()
	if err != nil {
		return fmt.Errorf("open video for upload: %w", err)
	}
	defer src.Close()

	stats, err := up.Run(ctx, src)
	if err != nil {
		return err
	}
	if stats.FramesSent == 0 {
		return fmt.Errorf("upload %s: no frames delivered", stats.VideoID)
	}
	return nil
}
