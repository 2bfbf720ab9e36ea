package detection

import (
	"image"
	"math"
	"sort"
)

// MaxNMSIoU caps the suppression threshold; above it almost nothing would
// ever be suppressed.
const MaxNMSIoU = 0.95

// Box is an axis-aligned bounding box in pixel coordinates, (X1,Y1) top-left
// and (X2,Y2) bottom-right.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns X2-X1.
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height returns Y2-Y1.
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// Area returns the box area, or 0 for an inverted box.
func (b Box) Area() float64 {
	return math.Max(0, b.Width()) * math.Max(0, b.Height())
}

// MidX returns the horizontal midpoint.
func (b Box) MidX() float64 { return (b.X1 + b.X2) / 2 }

// FootPoint returns the bottom-center point of the box.
func (b Box) FootPoint() (float64, float64) {
	return (b.X1 + b.X2) / 2, b.Y2
}

// Ints truncates the coordinates to integers.
func (b Box) Ints() (x1, y1, x2, y2 int) {
	return int(b.X1), int(b.Y1), int(b.X2), int(b.Y2)
}

// Rect returns the box as an image.Rectangle with truncated coordinates.
func (b Box) Rect() image.Rectangle {
	x1, y1, x2, y2 := b.Ints()
	return image.Rect(x1, y1, x2, y2)
}

// Clamp limits the box to [0,width] x [0,height] and orders its corners.
func (b Box) Clamp(width, height int) Box {
	x1 := math.Max(0, math.Min(float64(width), math.Min(b.X1, b.X2)))
	x2 := math.Max(0, math.Min(float64(width), math.Max(b.X1, b.X2)))
	y1 := math.Max(0, math.Min(float64(height), math.Min(b.Y1, b.Y2)))
	y2 := math.Max(0, math.Min(float64(height), math.Max(b.Y1, b.Y2)))
	return Box{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// IoU returns the intersection-over-union of two boxes, 0 when the union is
// empty.
func IoU(a, b Box) float64 {
	ix := math.Max(0, math.Min(a.X2, b.X2)-math.Max(a.X1, b.X1))
	iy := math.Max(0, math.Min(a.Y2, b.Y2)-math.Max(a.Y1, b.Y1))
	inter := ix * iy
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Detection is a scored box from a detector, with the prompt or class label
// that produced it.
type Detection struct {
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
	Label      string  `json:"label"`
}

// SortByConfidence orders detections by descending confidence, keeping the
// input order among equal scores.
func SortByConfidence(dets []Detection) {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})
}

// NMS performs class-agnostic non-maximum suppression. Detections are visited
// by descending confidence; each is kept only if its IoU with every kept box
// is below threshold. threshold is clamped to [0, MaxNMSIoU]. The input slice
// is not modified.
func NMS(dets []Detection, threshold float64) []Detection {
	threshold = math.Max(0, math.Min(MaxNMSIoU, threshold))

	sorted := append([]Detection(nil), dets...)
	SortByConfidence(sorted)

	kept := make([]Detection, 0, len(sorted))
	for _, d := range sorted {
		suppressed := false
		for _, k := range kept {
			if IoU(d.Box, k.Box) >= threshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}
