package doors

import (
	"image"
	"math"

	"github.com/ironsheep/occupancy-counter/internal/detection"
	"github.com/ironsheep/occupancy-counter/internal/geometry"
	"github.com/ironsheep/occupancy-counter/internal/imaging"
)

// GateSource tells whether a gate was fitted to image edges or is the flat
// fallback line.
type GateSource string

const (
	GateEdge     GateSource = "edge"
	GateFallback GateSource = "fallback"
)

// Gate is a fitted threshold line in frame coordinates.
type Gate struct {
	X1     int        `json:"x1"`
	Y1     int        `json:"y1"`
	X2     int        `json:"x2"`
	Y2     int        `json:"y2"`
	Source GateSource `json:"source"`
}

// Segment returns the gate as a geometry segment.
func (g Gate) Segment() geometry.Segment {
	return geometry.Seg(g.X1, g.Y1, g.X2, g.Y2)
}

// GateParams tunes FitGateLineFromBox.
type GateParams struct {
	// LineOffset moves the gate up from the fitted threshold, in pixels.
	LineOffset int
	// MaxAngle is the steepest accepted threshold in degrees, clamped to [5, 80].
	MaxAngle float64
	// MinBottomRatio is how far down the box (as a fraction of its height)
	// the threshold must lie, clamped to [0.2, 0.95].
	MinBottomRatio float64
}

// DefaultGateParams returns offset 6, max angle 35 and bottom ratio 0.55.
func DefaultGateParams() GateParams {
	return GateParams{LineOffset: 6, MaxAngle: 35, MinBottomRatio: 0.55}
}

// Edge and line settings for threshold fitting.
const (
	gateCannyLow       = 50
	gateCannyHigh      = 150
	gateMinLineLength  = 20
	gateMinLengthRatio = 0.35
	gateMaxLineGap     = 15
)

// FitGateLineFromBox estimates the floor threshold of the door inside box.
//
// # Algorithm
//
//  1. Crop the box, convert to gray, blur, and run Canny(50, 150)
//  2. Extract Hough segments at least max(20, 0.35*width) long
//  3. Keep segments no steeper than MaxAngle whose midpoint lies in the
//     lower part of the box, scoring each as 2*midY + length
//  4. Extend the best segment across the box width; both ends must still
//     lie in the lower part of the box
//  5. Move the line up by LineOffset
//
// When any step finds nothing usable the gate is the flat line
// y2 - LineOffset with source GateFallback.
func FitGateLineFromBox(img image.Image, box detection.Box, p GateParams) Gate {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	x1, y1, x2, y2 := box.Ints()
	x1 = clampInt(x1, 0, w-1)
	x2 = clampInt(x2, 0, w-1)
	y1 = clampInt(y1, 0, h-1)
	y2 = clampInt(y2, 0, h-1)

	fallback := func() Gate {
		ly := clampInt(y2-p.LineOffset, 0, h-1)
		return Gate{X1: x1, Y1: ly, X2: x2, Y2: ly, Source: GateFallback}
	}
	if x2 <= x1 || y2 <= y1 {
		return fallback()
	}

	roi, err := imaging.CropGray(img, image.Rect(x1, y1, x2, y2).Add(b.Min))
	if err != nil {
		return fallback()
	}
	edges := imaging.Canny(imaging.GaussianBlur(roi), gateCannyLow, gateCannyHigh)

	roiW := float64(x2 - x1)
	roiH := float64(y2 - y1)
	minLen := math.Max(gateMinLineLength, roiW*gateMinLengthRatio)
	segments := detection.HoughSegments(edges, detection.DefaultHoughParams(math.Floor(minLen), gateMaxLineGap))

	maxAngle := clampFloat(p.MaxAngle, 5, 80)
	minBottom := roiH * clampFloat(p.MinBottomRatio, 0.2, 0.95)

	var best *detection.LineSegment
	bestScore := -1.0
	for i := range segments {
		s := segments[i]
		length := s.Length()
		if length < minLen || s.AngleDegrees() > maxAngle || s.MidY() < minBottom {
			continue
		}
		if score := s.MidY()*2 + length; score > bestScore {
			bestScore = score
			best = &segments[i]
		}
	}
	if best == nil || best.X2 == best.X1 {
		return fallback()
	}

	slope := float64(best.Y2-best.Y1) / float64(best.X2-best.X1)
	yLeft := float64(best.Y1) + (0-float64(best.X1))*slope
	yRight := float64(best.Y1) + ((roiW-1)-float64(best.X1))*slope
	if math.Min(yLeft, yRight) < minBottom {
		return fallback()
	}

	clampY := func(v int) int {
		return clampInt(clampInt(v, y1, y2), 0, h-1)
	}
	return Gate{
		X1:     x1,
		Y1:     clampY(y1 + int(math.Round(yLeft)) - p.LineOffset),
		X2:     x2,
		Y2:     clampY(y1 + int(math.Round(yRight)) - p.LineOffset),
		Source: GateEdge,
	}
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
