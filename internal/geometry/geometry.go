package geometry

import (
	"fmt"
	"math"
	"strings"
)

// Point is a position in image pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec is a direction in image pixel coordinates.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Segment is a line segment between two points.
type Segment struct {
	A Point `json:"a"`
	B Point `json:"b"`
}

// Seg builds a Segment from integer endpoints.
func Seg(x1, y1, x2, y2 int) Segment {
	return Segment{
		A: Point{X: float64(x1), Y: float64(y1)},
		B: Point{X: float64(x2), Y: float64(y2)},
	}
}

// Midpoint returns the point halfway between the endpoints.
func (s Segment) Midpoint() Point {
	return Point{X: (s.A.X + s.B.X) / 2, Y: (s.A.Y + s.B.Y) / 2}
}

// Length returns the Euclidean length of the segment.
func (s Segment) Length() float64 {
	return math.Hypot(s.B.X-s.A.X, s.B.Y-s.A.Y)
}

// IsVertical reports whether both endpoints share the same X.
func (s Segment) IsVertical() bool {
	return s.A.X == s.B.X
}

// Clamp returns the segment with both endpoints clamped to the frame.
func (s Segment) Clamp(width, height int) Segment {
	return Segment{A: clampPoint(s.A, width, height), B: clampPoint(s.B, width, height)}
}

// Side is the classification of a point relative to a boundary.
type Side int

const (
	// Above is the side with smaller Y (left of a vertical segment).
	Above Side = -1
	// Unknown covers the dead zone and positions outside the segment span.
	Unknown Side = 0
	// Below is the side with larger Y (right of a vertical segment).
	Below Side = 1
)

func (s Side) String() string {
	switch s {
	case Above:
		return "above"
	case Below:
		return "below"
	default:
		return "unknown"
	}
}

// Direction labels a crossing between the two sides of a boundary.
type Direction string

const (
	// DirectionDown is a crossing from Above to Below.
	DirectionDown Direction = "down"
	// DirectionUp is a crossing from Below to Above.
	DirectionUp Direction = "up"
)

// ParseDirection accepts "down" or "up" (case-insensitive, trimmed).
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionDown:
		return DirectionDown, nil
	case DirectionUp:
		return DirectionUp, nil
	}
	return "", fmt.Errorf("direction must be 'down' or 'up', got %q", s)
}

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == DirectionDown {
		return DirectionUp
	}
	return DirectionDown
}

// Destination returns the side a crossing in this direction ends on.
func (d Direction) Destination() Side {
	if d == DirectionUp {
		return Above
	}
	return Below
}

// SideOfSegment classifies p against seg, returning Unknown when p lies
// within margin of the line or outside the segment's span extended by margin.
// The span is measured along X, or along Y for a vertical segment.
func SideOfSegment(p Point, seg Segment, margin float64) Side {
	if seg.IsVertical() {
		minY, maxY := ordered(seg.A.Y, seg.B.Y)
		if p.Y < minY-margin || p.Y > maxY+margin {
			return Unknown
		}
		return compare(p.X, seg.A.X, margin)
	}

	minX, maxX := ordered(seg.A.X, seg.B.X)
	if p.X < minX-margin || p.X > maxX+margin {
		return Unknown
	}
	return compare(p.Y, lineYAt(seg, p.X), margin)
}

// SideOfLine classifies p against the infinite line through seg.
func SideOfLine(p Point, seg Segment, margin float64) Side {
	if seg.IsVertical() {
		return compare(p.X, seg.A.X, margin)
	}
	return compare(p.Y, lineYAt(seg, p.X), margin)
}

// CrossingDirection returns the direction of a move between two sides. The
// boolean is false unless the sides are opposite and non-zero.
func CrossingDirection(prev, curr Side) (Direction, bool) {
	switch {
	case prev == Above && curr == Below:
		return DirectionDown, true
	case prev == Below && curr == Above:
		return DirectionUp, true
	}
	return "", false
}

// ClampSpan clamps x1 and x2 to [0, width] and returns them in ascending order.
func ClampSpan(x1, x2, width int) (int, int) {
	x1 = clampInt(x1, 0, width)
	x2 = clampInt(x2, 0, width)
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	return x1, x2
}

// ExtendSegmentToBounds stretches the line through seg until it meets the
// frame edges. The result lies within [0,width-1] x [0,height-1] and keeps the
// orientation of seg. A degenerate segment, or a line that touches the frame
// in fewer than two distinct points, yields seg clamped to the frame.
func ExtendSegmentToBounds(seg Segment, width, height int) Segment {
	maxX := float64(width - 1)
	maxY := float64(height - 1)
	dx := seg.B.X - seg.A.X
	dy := seg.B.Y - seg.A.Y
	if width <= 0 || height <= 0 || (dx == 0 && dy == 0) {
		return seg.Clamp(width, height)
	}

	const eps = 1e-6
	var hits []Point
	if dx != 0 {
		for _, x := range []float64{0, maxX} {
			y := seg.A.Y + (x-seg.A.X)*dy/dx
			if y >= -eps && y <= maxY+eps {
				hits = append(hits, Point{X: x, Y: clampFloat(y, 0, maxY)})
			}
		}
	}
	if dy != 0 {
		for _, y := range []float64{0, maxY} {
			x := seg.A.X + (y-seg.A.Y)*dx/dy
			if x >= -eps && x <= maxX+eps {
				hits = append(hits, Point{X: clampFloat(x, 0, maxX), Y: y})
			}
		}
	}

	best := -1.0
	var out Segment
	for i := 0; i < len(hits); i++ {
		for j := i + 1; j < len(hits); j++ {
			d := math.Hypot(hits[j].X-hits[i].X, hits[j].Y-hits[i].Y)
			if d > best {
				best = d
				out = Segment{A: hits[i], B: hits[j]}
			}
		}
	}
	if best <= 0 {
		return seg.Clamp(width, height)
	}

	if (out.B.X-out.A.X)*dx+(out.B.Y-out.A.Y)*dy < 0 {
		out.A, out.B = out.B, out.A
	}
	return out
}

func lineYAt(seg Segment, x float64) float64 {
	slope := (seg.B.Y - seg.A.Y) / (seg.B.X - seg.A.X)
	return seg.A.Y + (x-seg.A.X)*slope
}

func compare(v, ref, margin float64) Side {
	if v < ref-margin {
		return Above
	}
	if v > ref+margin {
		return Below
	}
	return Unknown
}

func ordered(a, b float64) (float64, float64) {
	if a > b {
		return b, a
	}
	return a, b
}

func clampPoint(p Point, width, height int) Point {
	return Point{
		X: clampFloat(p.X, 0, float64(width-1)),
		Y: clampFloat(p.Y, 0, float64(height-1)),
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
