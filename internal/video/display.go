package video

import (
	"fmt"
	"image"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ironsheep/occupancy-counter/internal/pipeline"
)

// WindowName is the title of the live preview window.
const WindowName = "occupancy-counter"

// Keys that stop a run from the preview window.
const (
	keyQuit   = 'q'
	keyEscape = 27
)

// DisplayOptions selects where annotated frames go.
type DisplayOptions struct {
	// Show opens a preview window.
	Show bool
	// SavePath writes an mp4 of the annotated frames when set.
	SavePath string
	FPS      float64
	Width    int
	Height   int
}

// Display renders annotated frames to a window, a video file, or both. It
// implements pipeline.Display.
type Display struct {
	window *gocv.Window
	writer *gocv.VideoWriter
	frames int
}

// NewDisplay opens the requested outputs. It returns nil when neither a
// window nor a file was asked for.
func NewDisplay(opts DisplayOptions) (*Display, error) {
	if !opts.Show && opts.SavePath == "" {
		return nil, nil
	}
	d := &Display{}
	if opts.SavePath != "" {
		fps := opts.FPS
		if fps <= 0 {
			fps = DefaultFPS
		}
		w, err := gocv.VideoWriterFile(opts.SavePath, "mp4v", fps, opts.Width, opts.Height, true)
		if err != nil {
			return nil, fmt.Errorf("open output video %s: %w", opts.SavePath, err)
		}
		if !w.IsOpened() {
			w.Close()
			return nil, fmt.Errorf("open output video %s: writer not ready", opts.SavePath)
		}
		d.writer = w
		log.WithField("path", opts.SavePath).Info("Writing annotated video")
	}
	if opts.Show {
		d.window = gocv.NewWindow(WindowName)
	}
	return d, nil
}

// Show draws v over frame and emits it. It returns true when the viewer
// pressed q or Escape.
func (d *Display) Show(frame image.Image, v pipeline.View) (bool, error) {
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return false, fmt.Errorf("convert frame %d: %w", v.Frame, err)
	}
	defer mat.Close()

	Draw(&mat, v)
	d.frames++

	if d.writer != nil {
		if err := d.writer.Write(mat); err != nil {
			return false, fmt.Errorf("write frame %d: %w", v.Frame, err)
		}
	}
	if d.window != nil {
		d.window.IMShow(mat)
		switch d.window.WaitKey(1) {
		case keyQuit, keyEscape:
			return true, nil
		}
	}
	return false, nil
}

// Close flushes the output file and closes the window.
func (d *Display) Close() error {
	var err error
	if d.writer != nil {
		err = d.writer.Close()
		log.WithField("frames", d.frames).Info("Annotated video closed")
	}
	if d.window != nil {
		if cerr := d.window.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
