package geometry

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSideOfSegment(t *testing.T) {
	horizontal := Seg(0, 300, 640, 300)
	sloped := Seg(0, 100, 200, 300)
	vertical := Seg(320, 100, 320, 400)

	tests := []struct {
		name   string
		seg    Segment
		p      Point
		margin float64
		want   Side
	}{
		{"above horizontal", horizontal, Point{320, 250}, 6, Above},
		{"below horizontal", horizontal, Point{320, 350}, 6, Below},
		{"inside dead zone", horizontal, Point{320, 304}, 6, Unknown},
		{"on the margin edge", horizontal, Point{320, 306}, 6, Unknown},
		{"just past margin", horizontal, Point{320, 306.5}, 6, Below},
		{"right of span", horizontal, Point{700, 350}, 6, Unknown},
		{"within span margin", horizontal, Point{645, 350}, 6, Below},
		{"left of span", horizontal, Point{-10, 250}, 6, Unknown},
		{"sloped above", sloped, Point{100, 150}, 2, Above},
		{"sloped below", sloped, Point{100, 250}, 2, Below},
		{"sloped on line", sloped, Point{100, 200}, 2, Unknown},
		{"vertical left", vertical, Point{300, 200}, 6, Above},
		{"vertical right", vertical, Point{340, 200}, 6, Below},
		{"vertical band", vertical, Point{323, 200}, 6, Unknown},
		{"vertical beyond span", vertical, Point{340, 450}, 6, Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SideOfSegment(tt.p, tt.seg, tt.margin))
		})
	}
}

func TestSideOfLine_IgnoresSpan(t *testing.T) {
	seg := Seg(100, 300, 200, 300)

	assert.Equal(t, Unknown, SideOfSegment(Point{500, 350}, seg, 6))
	assert.Equal(t, Below, SideOfLine(Point{500, 350}, seg, 6))
	assert.Equal(t, Above, SideOfLine(Point{-50, 250}, seg, 6))
	assert.Equal(t, Unknown, SideOfLine(Point{-50, 302}, seg, 6))
}

func TestCrossingDirection(t *testing.T) {
	tests := []struct {
		prev, curr Side
		want       Direction
		ok         bool
	}{
		{Above, Below, DirectionDown, true},
		{Below, Above, DirectionUp, true},
		{Above, Above, "", false},
		{Below, Below, "", false},
		{Unknown, Below, "", false},
		{Above, Unknown, "", false},
		{Unknown, Unknown, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.prev.String()+"->"+tt.curr.String(), func(t *testing.T) {
			got, ok := CrossingDirection(tt.prev, tt.curr)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection(" Down ")
	require.NoError(t, err)
	assert.Equal(t, DirectionDown, d)
	assert.Equal(t, DirectionUp, d.Opposite())
	assert.Equal(t, Below, DirectionDown.Destination())
	assert.Equal(t, Above, DirectionUp.Destination())

	_, err = ParseDirection("left")
	assert.Error(t, err)
}

func TestClampSpan(t *testing.T) {
	x1, x2 := ClampSpan(700, -20, 640)
	assert.Equal(t, 0, x1)
	assert.Equal(t, 640, x2)

	x1, x2 = ClampSpan(100, 50, 640)
	assert.Equal(t, 50, x1)
	assert.Equal(t, 100, x2)
}

func TestExtendSegmentToBounds(t *testing.T) {
	t.Run("horizontal", func(t *testing.T) {
		got := ExtendSegmentToBounds(Seg(200, 100, 300, 100), 640, 480)
		assert.Equal(t, Point{0, 100}, got.A)
		assert.Equal(t, Point{639, 100}, got.B)
	})

	t.Run("keeps orientation", func(t *testing.T) {
		got := ExtendSegmentToBounds(Seg(300, 100, 200, 100), 640, 480)
		assert.Equal(t, Point{639, 100}, got.A)
		assert.Equal(t, Point{0, 100}, got.B)
	})

	t.Run("vertical", func(t *testing.T) {
		got := ExtendSegmentToBounds(Seg(50, 200, 50, 210), 640, 480)
		assert.Equal(t, Point{50, 0}, got.A)
		assert.Equal(t, Point{50, 479}, got.B)
	})

	t.Run("diagonal through corners", func(t *testing.T) {
		got := ExtendSegmentToBounds(Seg(10, 10, 20, 20), 100, 100)
		assert.InDelta(t, 0, got.A.X, 1e-9)
		assert.InDelta(t, 0, got.A.Y, 1e-9)
		assert.InDelta(t, 99, got.B.X, 1e-9)
		assert.InDelta(t, 99, got.B.Y, 1e-9)
	})

	t.Run("degenerate falls back to clamp", func(t *testing.T) {
		got := ExtendSegmentToBounds(Seg(700, 500, 700, 500), 640, 480)
		assert.Equal(t, Point{639, 479}, got.A)
		assert.Equal(t, Point{639, 479}, got.B)
	})

	t.Run("always within bounds", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7))
		const w, h = 320, 240
		for i := 0; i < 2000; i++ {
			seg := Segment{
				A: Point{rng.Float64()*800 - 200, rng.Float64()*600 - 200},
				B: Point{rng.Float64()*800 - 200, rng.Float64()*600 - 200},
			}
			got := ExtendSegmentToBounds(seg, w, h)
			for _, p := range []Point{got.A, got.B} {
				require.True(t, p.X >= 0 && p.X <= w-1, "x out of bounds: %+v from %+v", p, seg)
				require.True(t, p.Y >= 0 && p.Y <= h-1, "y out of bounds: %+v from %+v", p, seg)
			}
		}
	})
}

func TestUnitNormalToward(t *testing.T) {
	horizontal := Seg(0, 300, 640, 300)

	n := UnitNormalToward(horizontal, Below)
	assert.InDelta(t, 0, n.X, 1e-9)
	assert.InDelta(t, 1, n.Y, 1e-9)

	n = UnitNormalToward(horizontal, Above)
	assert.InDelta(t, -1, n.Y, 1e-9)

	sloped := Seg(0, 0, 100, 50)
	for _, want := range []Side{Above, Below} {
		n := UnitNormalToward(sloped, want)
		assert.InDelta(t, 1, math.Hypot(n.X, n.Y), 1e-9)
		mid := sloped.Midpoint()
		probe := Point{mid.X + 10*n.X, mid.Y + 10*n.Y}
		assert.Equal(t, want, SideOfLine(probe, sloped, 0))
	}
}

func TestBuildOffsetZone(t *testing.T) {
	seg := Seg(100, 300, 300, 300)
	zone := BuildOffsetZone(seg, Vec{0, 1}, 6, 40, 640, 480)

	require.Len(t, zone, 4)
	assert.Equal(t, Point{100, 306}, zone[0])
	assert.Equal(t, Point{300, 306}, zone[1])
	assert.Equal(t, Point{300, 346}, zone[2])
	assert.Equal(t, Point{100, 346}, zone[3])

	clipped := BuildOffsetZone(seg, Vec{0, 1}, 0, 500, 640, 480)
	assert.Equal(t, 479.0, clipped[2].Y)
}

func TestPointInPolygon(t *testing.T) {
	square := Polygon{{0, 0}, {10, 0}, {10, 10}, {0, 10}}

	assert.True(t, PointInPolygon(square, Point{5, 5}, 0))
	assert.False(t, PointInPolygon(square, Point{12, 5}, 0))
	assert.True(t, PointInPolygon(square, Point{12, 5}, 3))
	assert.False(t, PointInPolygon(square, Point{14, 5}, 3))
	assert.False(t, PointInPolygon(Polygon{{0, 0}, {1, 1}}, Point{0, 0}, 5))

	assert.InDelta(t, 5, SignedDistance(square, Point{5, 5}), 1e-9)
	assert.InDelta(t, -2, SignedDistance(square, Point{12, 5}), 1e-9)
}
