package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Polygon is a simple polygon given by its vertices in order. The closing
// edge from the last vertex back to the first is implicit.
type Polygon []Point

// UnitNormalToward returns a unit vector perpendicular to seg that points to
// the requested side. want must be Above or Below. A zero-length segment
// yields a vertical unit vector toward want.
func UnitNormalToward(seg Segment, want Side) Vec {
	dx := seg.B.X - seg.A.X
	dy := seg.B.Y - seg.A.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return Vec{X: 0, Y: float64(want)}
	}

	n := Vec{X: -dy / length, Y: dx / length}
	mid := seg.Midpoint()
	probe := Point{X: mid.X + n.X, Y: mid.Y + n.Y}
	if SideOfLine(probe, seg, 0) != want {
		n = Vec{X: -n.X, Y: -n.Y}
	}
	return n
}

// BuildOffsetZone returns the quadrilateral between seg translated by offset
// and by offset+depth along normal, clamped to the frame.
func BuildOffsetZone(seg Segment, normal Vec, offset, depth float64, width, height int) Polygon {
	near := offset
	far := offset + depth
	shift := func(p Point, d float64) Point {
		return clampPoint(Point{X: p.X + normal.X*d, Y: p.Y + normal.Y*d}, width, height)
	}
	return Polygon{
		shift(seg.A, near),
		shift(seg.B, near),
		shift(seg.B, far),
		shift(seg.A, far),
	}
}

// PointInPolygon reports whether p lies inside poly. With margin > 0 a point
// outside the polygon but within margin of its nearest edge also counts.
func PointInPolygon(poly Polygon, p Point, margin float64) bool {
	if len(poly) < 3 {
		return false
	}
	ring := poly.ring()
	pt := orb.Point{p.X, p.Y}
	if planar.RingContains(ring, pt) {
		return true
	}
	if margin <= 0 {
		return false
	}
	return distanceToEdges(ring, pt) <= margin
}

// SignedDistance returns the distance from p to the nearest edge of poly,
// positive inside and negative outside.
func SignedDistance(poly Polygon, p Point) float64 {
	if len(poly) < 3 {
		return math.Inf(-1)
	}
	ring := poly.ring()
	pt := orb.Point{p.X, p.Y}
	d := distanceToEdges(ring, pt)
	if planar.RingContains(ring, pt) {
		return d
	}
	return -d
}

func (poly Polygon) ring() orb.Ring {
	ring := make(orb.Ring, 0, len(poly)+1)
	for _, v := range poly {
		ring = append(ring, orb.Point{v.X, v.Y})
	}
	return append(ring, ring[0])
}

func distanceToEdges(ring orb.Ring, pt orb.Point) float64 {
	best := math.Inf(1)
	for i := 0; i+1 < len(ring); i++ {
		if d := planar.DistanceFromSegment(ring[i], ring[i+1], pt); d < best {
			best = d
		}
	}
	return best
}
