package video

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// DefaultFPS is assumed when a source does not report a frame rate.
const DefaultFPS = 30.0

// ErrSourceOpen is returned when a video file or camera cannot be opened.
var ErrSourceOpen = errors.New("cannot open video source")

// Source reads frames from a video file or a camera device. A name made of
// digits only selects a camera by index.
//
// Source satisfies both the counting pipeline's frame source and the clip
// uploader's source.
type Source struct {
	name   string
	device bool
	cap    *gocv.VideoCapture
	mat    gocv.Mat
	fps    float64
	width  int
	height int
	opened time.Time
}

// IsDevice reports whether name selects a camera index rather than a file.
func IsDevice(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	_, err := strconv.Atoi(name)
	return err == nil
}

// Open opens name as a camera index or a file path.
func Open(name string) (*Source, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: no source given", ErrSourceOpen)
	}

	var (
		cap *gocv.VideoCapture
		err error
	)
	device := IsDevice(name)
	if device {
		idx, _ := strconv.Atoi(name)
		cap, err = gocv.OpenVideoCapture(idx)
	} else {
		cap, err = gocv.VideoCaptureFile(name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrSourceOpen, name, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("%w %q", ErrSourceOpen, name)
	}

	fps := cap.Get(gocv.VideoCaptureFPS)
	if fps <= 0 {
		fps = DefaultFPS
	}
	s := &Source{
		name:   name,
		device: device,
		cap:    cap,
		mat:    gocv.NewMat(),
		fps:    fps,
		width:  int(cap.Get(gocv.VideoCaptureFrameWidth)),
		height: int(cap.Get(gocv.VideoCaptureFrameHeight)),
		opened: time.Now(),
	}
	log.WithFields(log.Fields{
		"source": name,
		"device": device,
		"fps":    fps,
		"width":  s.width,
		"height": s.height,
	}).Debug("Video source opened")
	return s, nil
}

// Name returns the source name as given to Open.
func (s *Source) Name() string { return s.name }

// FPS returns the reported frame rate, or DefaultFPS.
func (s *Source) FPS() float64 { return s.fps }

// Size returns the frame size reported by the backend.
func (s *Source) Size() (int, int) { return s.width, s.height }

// Read decodes the next frame.
func (s *Source) Read() (image.Image, bool) {
	if ok := s.cap.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, false
	}
	img, err := s.mat.ToImage()
	if err != nil {
		log.WithError(err).WithField("source", s.name).Warn("Frame conversion failed")
		return nil, false
	}
	return img, true
}

// Seekable reports whether the source is a file.
func (s *Source) Seekable() bool { return !s.device }

// Position returns the timestamp of the next frame. For cameras it is the
// time since the device was opened.
func (s *Source) Position() time.Duration {
	if s.device {
		return time.Since(s.opened)
	}
	return time.Duration(s.cap.Get(gocv.VideoCapturePosMsec) * float64(time.Millisecond))
}

// Seek moves a file source to pos.
func (s *Source) Seek(pos time.Duration) error {
	if s.device {
		return fmt.Errorf("cannot seek camera %s", s.name)
	}
	s.cap.Set(gocv.VideoCapturePosMsec, float64(pos)/float64(time.Millisecond))
	return nil
}

// Length returns the file duration derived from its frame count.
func (s *Source) Length() (time.Duration, bool) {
	if s.device {
		return 0, false
	}
	frames := s.cap.Get(gocv.VideoCaptureFrameCount)
	if frames <= 0 {
		return 0, false
	}
	return time.Duration(frames / s.fps * float64(time.Second)), true
}

// Close releases the capture device.
func (s *Source) Close() error {
	s.mat.Close()
	return s.cap.Close()
}
