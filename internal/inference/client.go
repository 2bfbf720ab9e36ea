package inference

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/ironsheep/occupancy-counter/internal/detection"
	"github.com/ironsheep/occupancy-counter/internal/httputil"
	"github.com/ironsheep/occupancy-counter/internal/imaging"
)

// frameJPEGQuality is the encoding quality of frames sent for inference.
const frameJPEGQuality = 90

// wireDetection is one box as returned by both services.
type wireDetection struct {
	TrackID    *int      `json:"track_id"`
	BBox       []float64 `json:"bbox"` // [x1, y1, x2, y2]
	Confidence float64   `json:"confidence"`
	Class      string    `json:"class,omitempty"`
}

type wireResult struct {
	Detections      []wireDetection `json:"detections"`
	InferenceTimeMs float64         `json:"inference_time_ms"`
}

// HealthResponse is the /health payload of either service.
type HealthResponse struct {
	Status      string `json:"status"`
	Device      string `json:"device"`
	ModelLoaded bool   `json:"model_loaded"`
}

// service holds what the tracker and detector clients share.
type service struct {
	client   httputil.HTTPClient
	endpoint string
	model    string
}

func newService(client httputil.HTTPClient, endpoint, model string) service {
	return service{client: client, endpoint: strings.TrimRight(endpoint, "/"), model: model}
}

// Health checks GET /health and requires a loaded model.
func (s service) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/health", nil)
	if err != nil {
		return nil, err
	}
	var health HealthResponse
	if err := httputil.DoJSON(s.client, req, &health); err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}
	if !health.ModelLoaded {
		return &health, fmt.Errorf("%s: model not loaded (status %q)", s.endpoint, health.Status)
	}
	return &health, nil
}

// postFrame sends img as the multipart "file" field with extra form fields.
func (s service) postFrame(ctx context.Context, path string, img image.Image, fields map[string]string) (*wireResult, error) {
	jpg, err := imaging.EncodeJPEG(img, frameJPEGQuality)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	fw, err := w.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(jpg); err != nil {
		return nil, err
	}
	if s.model != "" {
		fields["model"] = s.model
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+path, &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out wireResult
	if err := httputil.DoJSON(s.client, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func formatConf(conf float64) string {
	return strconv.FormatFloat(conf, 'f', 3, 64)
}

func toBox(bbox []float64) (detection.Box, error) {
	if len(bbox) != 4 {
		return detection.Box{}, fmt.Errorf("bbox must have 4 values, got %d", len(bbox))
	}
	return detection.Box{X1: bbox[0], Y1: bbox[1], X2: bbox[2], Y2: bbox[3]}, nil
}

// TrackerClient talks to a person tracking service that keeps track
// identities across calls.
type TrackerClient struct {
	service
}

// NewTrackerClient returns a client for the tracker at endpoint. model is
// forwarded so the service can pick its weights.
func NewTrackerClient(client httputil.HTTPClient, endpoint, model string) *TrackerClient {
	return &TrackerClient{service: newService(client, endpoint, model)}
}

// Track sends one frame to POST /track and returns the tracked persons.
// Boxes without a track ID are returned with HasID false.
func (c *TrackerClient) Track(ctx context.Context, frame image.Image, conf float64) ([]detection.Track, error) {
	res, err := c.postFrame(ctx, "/track", frame, map[string]string{
		"conf_threshold": formatConf(conf),
		"classes":        "0",
		"persist":        "true",
	})
	if err != nil {
		return nil, fmt.Errorf("track frame: %w", err)
	}

	tracks := make([]detection.Track, 0, len(res.Detections))
	for i, d := range res.Detections {
		box, err := toBox(d.BBox)
		if err != nil {
			return nil, fmt.Errorf("track frame: detection %d: %w", i, err)
		}
		t := detection.Track{Box: box, Confidence: d.Confidence}
		if d.TrackID != nil {
			t.ID = *d.TrackID
			t.HasID = true
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// DetectorClient talks to an open-vocabulary detection service.
type DetectorClient struct {
	service
}

// NewDetectorClient returns a client for the prompt detector at endpoint.
func NewDetectorClient(client httputil.HTTPClient, endpoint, model string) *DetectorClient {
	return &DetectorClient{service: newService(client, endpoint, model)}
}

// Detect sends one frame and prompt to POST /detect. The returned
// detections carry the prompt as their label.
func (c *DetectorClient) Detect(ctx context.Context, frame image.Image, prompt string, conf float64) ([]detection.Detection, error) {
	res, err := c.postFrame(ctx, "/detect", frame, map[string]string{
		"prompt":         prompt,
		"conf_threshold": formatConf(conf),
	})
	if err != nil {
		return nil, fmt.Errorf("detect %q: %w", prompt, err)
	}

	dets := make([]detection.Detection, 0, len(res.Detections))
	for i, d := range res.Detections {
		box, err := toBox(d.BBox)
		if err != nil {
			return nil, fmt.Errorf("detect %q: detection %d: %w", prompt, i, err)
		}
		dets = append(dets, detection.Detection{Box: box, Confidence: d.Confidence, Label: prompt})
	}
	return dets, nil
}
