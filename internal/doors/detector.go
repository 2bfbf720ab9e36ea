package doors

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/ironsheep/occupancy-counter/internal/detection"
	"github.com/ironsheep/occupancy-counter/internal/geometry"
	"github.com/ironsheep/occupancy-counter/internal/imaging"
	"github.com/ironsheep/occupancy-counter/internal/rooms"
)

// PromptDetector is an open-vocabulary detector: given a frame and a text
// prompt it returns matching boxes at or above conf.
type PromptDetector interface {
	Detect(ctx context.Context, img image.Image, prompt string, conf float64) ([]detection.Detection, error)
}

// Result is the outcome of one detection pass.
type Result struct {
	// Boundaries are the accepted gates ordered left to right and named
	// room_1, room_2, ...
	Boundaries []rooms.Boundary
	// Candidates holds every evaluated box in evaluation order.
	Candidates []Candidate
	// Negatives are the negative-prompt boxes after suppression.
	Negatives []detection.Detection
	// Raw is the number of positive boxes after suppression and splitting.
	Raw int
}

// Detector turns frames into door boundaries.
type Detector struct {
	model PromptDetector
	cfg   Config

	last *Result
}

// NewDetector returns a detector that queries model with cfg.
func NewDetector(model PromptDetector, cfg Config) *Detector {
	return &Detector{model: model, cfg: cfg}
}

// Config returns the detector's settings.
func (d *Detector) Config() Config { return d.cfg }

// Last returns the result of the most recent pass, or nil.
func (d *Detector) Last() *Result { return d.last }

// DetectBoundaries runs a detection pass and logs its door status. It
// satisfies rooms.BoundaryDetector.
func (d *Detector) DetectBoundaries(ctx context.Context, frame image.Image) ([]rooms.Boundary, error) {
	res, err := d.Detect(ctx, frame)
	if err != nil {
		return nil, err
	}
	d.logStatus(res)
	return res.Boundaries, nil
}

// Detect runs the full door pipeline on frame. A pass that finds nothing
// returns an empty Result. An error is returned only when the frame cannot
// be preprocessed or every positive prompt query failed.
func (d *Detector) Detect(ctx context.Context, frame image.Image) (*Result, error) {
	cfg := d.cfg
	input, err := imaging.Preprocess(frame, cfg.Preprocess, cfg.Gamma)
	if err != nil {
		return nil, fmt.Errorf("preprocess door frame: %w", err)
	}
	bounds := input.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	positives, err := d.collect(ctx, input, cfg.Prompts, cfg.Confidence)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	if len(cfg.NegativePrompts) > 0 && cfg.NegativeConfidence > 0 {
		negatives, err := d.collect(ctx, input, cfg.NegativePrompts, cfg.NegativeConfidence)
		if err != nil {
			log.WithError(err).Warn("Negative prompt pass failed, continuing without it")
		}
		res.Negatives = detection.NMS(negatives, cfg.NMSIoU)
	}
	if len(positives) == 0 {
		d.last = res
		return res, nil
	}

	dets := detection.NMS(positives, cfg.NMSIoU)
	if cfg.SplitWideBoxes {
		split := make([]detection.Detection, 0, len(dets))
		didSplit := false
		for _, det := range dets {
			parts := SplitWideBox(input, det.Box, SplitParams{
				MinWidth:    cfg.MinWidth,
				Ratio:       cfg.SplitRatio,
				StdMultiple: cfg.SplitStdMultiple,
			})
			didSplit = didSplit || len(parts) > 1
			for _, part := range parts {
				split = append(split, detection.Detection{Box: part, Confidence: det.Confidence, Label: det.Label})
			}
		}
		if didSplit {
			dets = detection.NMS(split, cfg.NMSIoU)
		}
	}
	detection.SortByConfidence(dets)
	res.Raw = len(dets)

	maxDoors := max(1, cfg.MaxDoors)
	maxHeightRatio := clampFloat(cfg.MaxHeightRatio, 0, 1)
	negIoU := clampFloat(cfg.NegativeIoU, 0, 1)

	for _, det := range dets {
		cand := Candidate{Box: det.Box, Confidence: det.Confidence, Prompt: det.Label}

		switch {
		case len(res.Boundaries) >= maxDoors:
			cand.Reason = ReasonMaxDoors
		case spanWidth(det.Box, width) < cfg.MinWidth:
			cand.Reason = ReasonTooNarrow
		case max(1, det.Box.Height())/float64(height) > maxHeightRatio:
			cand.Reason = ReasonTooTall
		case overlapsAny(det.Box, res.Negatives, negIoU):
			cand.Reason = ReasonNegativeOverlap
		default:
			gate := FitGateLineFromBox(input, det.Box, cfg.Gate)
			cand.Gate = &gate
			if cfg.RequireEdgeThreshold && gate.Source != GateEdge {
				cand.Reason = ReasonMissingEdge
				break
			}
			cand.Accepted = true
			cand.Reason = ReasonAcceptedEdge
			if gate.Source == GateFallback {
				cand.Reason = ReasonAcceptedFallback
			}
			res.Boundaries = append(res.Boundaries, d.boundaryFor(gate))
		}
		res.Candidates = append(res.Candidates, cand)
	}

	sort.SliceStable(res.Boundaries, func(i, j int) bool {
		return res.Boundaries[i].MidX() < res.Boundaries[j].MidX()
	})
	for i := range res.Boundaries {
		res.Boundaries[i].ID = fmt.Sprintf("room_%d", i+1)
	}

	d.last = res
	return res, nil
}

// collect queries every prompt and pools the boxes, labelled with the prompt
// that produced them. Failed prompts are logged and skipped; the error is
// returned only when all of them failed.
func (d *Detector) collect(ctx context.Context, img image.Image, prompts []string, conf float64) ([]detection.Detection, error) {
	var out []detection.Detection
	var errs []error
	for _, prompt := range prompts {
		dets, err := d.model.Detect(ctx, img, prompt, conf)
		if err != nil {
			log.WithError(err).WithField("prompt", prompt).Warn("Door prompt query failed")
			errs = append(errs, err)
			continue
		}
		for _, det := range dets {
			det.Label = prompt
			out = append(out, det)
		}
	}
	if len(prompts) > 0 && len(errs) == len(prompts) {
		return nil, fmt.Errorf("door detector: all %d prompts failed: %w", len(prompts), errors.Join(errs...))
	}
	return out, nil
}

func (d *Detector) boundaryFor(g Gate) rooms.Boundary {
	room := d.cfg.Room
	dir := room.Direction
	if dir == "" {
		dir = geometry.DirectionDown
	}
	return rooms.Boundary{
		X1:               g.X1,
		Y1:               g.Y1,
		X2:               g.X2,
		Y2:               g.Y2,
		Direction:        dir,
		Margin:           room.Margin,
		Thickness:        max(1, room.Thickness),
		InitialOccupancy: room.InitialOccupancy,
	}
}

func (d *Detector) logStatus(res *Result) {
	counts := ReasonCounts(res.Candidates)
	fields := log.Fields{
		"raw":      res.Raw,
		"accepted": len(res.Boundaries),
	}
	if d.cfg.Debug {
		for _, r := range []Reason{ReasonTooNarrow, ReasonTooTall, ReasonNegativeOverlap, ReasonMissingEdge, ReasonMaxDoors} {
			fields[string(r)] = counts[r]
		}
		fields["neg_boxes"] = len(res.Negatives)
		fields["preprocess"] = d.cfg.Preprocess
		fields["gamma"] = d.cfg.Gamma
		fields["min_width"] = d.cfg.MinWidth
	}
	entry := log.WithFields(fields)

	switch {
	case res.Raw == 0:
		entry.Warn("[door-status] NOT CONNECTED: no doors detected in this frame")
	case len(res.Boundaries) == 0:
		entry.Warn("[door-status] NOT CONNECTED: door candidates were filtered out")
	default:
		entry.Infof("[door-status] CONNECTED: detected %d door(s)", len(res.Boundaries))
		for _, b := range res.Boundaries {
			log.WithField("room_id", b.ID).Infof("[door-status] %s: (%d,%d) -> (%d,%d)", b.ID, b.X1, b.Y1, b.X2, b.Y2)
		}
	}
}

// spanWidth is the box width after clamping it to the frame.
func spanWidth(b detection.Box, width int) int {
	x1, _, x2, _ := b.Ints()
	x1, x2 = geometry.ClampSpan(x1, x2, width)
	return x2 - x1
}

func overlapsAny(b detection.Box, others []detection.Detection, threshold float64) bool {
	for _, o := range others {
		if detection.IoU(b, o.Box) >= threshold {
			return true
		}
	}
	return false
}
