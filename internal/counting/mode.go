package counting

import (
	"fmt"
	"strings"

	"github.com/ironsheep/occupancy-counter/internal/geometry"
	"github.com/ironsheep/occupancy-counter/internal/rooms"
)

// Mode selects how a position is classified against a boundary. It is one
// of LineMode or ZoneMode.
type Mode interface {
	fmt.Stringer
	classifierFor(b rooms.Boundary, width, height int) classifier
}

// classifier maps a foot point to a side of one boundary. Unknown means the
// position is ambiguous and must not change track memory.
type classifier func(p geometry.Point) geometry.Side

// LineMode classifies by the side of the gate segment, with the boundary's
// margin as a dead band.
type LineMode struct{}

func (LineMode) String() string { return "line" }

func (LineMode) classifierFor(b rooms.Boundary, _, _ int) classifier {
	seg := b.Segment()
	margin := float64(b.Margin)
	return func(p geometry.Point) geometry.Side {
		return geometry.SideOfSegment(p, seg, margin)
	}
}

// ZoneMode classifies by membership in two quadrilaterals on either side of
// the gate. The inside zone lies on the entry side. Both zones start Margin
// pixels from the gate and are Depth pixels deep.
type ZoneMode struct {
	Depth float64
	// Extend builds the zones from the gate extended to the frame edges.
	Extend bool
	// Tolerance also accepts points within this distance outside a zone.
	Tolerance float64
}

func (z ZoneMode) String() string {
	return fmt.Sprintf("zone(depth=%g, extend=%t)", z.Depth, z.Extend)
}

func (z ZoneMode) classifierFor(b rooms.Boundary, width, height int) classifier {
	seg := b.Segment()
	if z.Extend {
		seg = geometry.ExtendSegmentToBounds(seg, width, height)
	}
	inSide := b.Direction.Destination()
	outSide := -inSide

	toward := geometry.UnitNormalToward(seg, inSide)
	away := geometry.Vec{X: -toward.X, Y: -toward.Y}
	offset := float64(b.Margin)
	inside := geometry.BuildOffsetZone(seg, toward, offset, z.Depth, width, height)
	outside := geometry.BuildOffsetZone(seg, away, offset, z.Depth, width, height)

	return func(p geometry.Point) geometry.Side {
		in := geometry.PointInPolygon(inside, p, z.Tolerance)
		out := geometry.PointInPolygon(outside, p, z.Tolerance)
		switch {
		case in && !out:
			return inSide
		case out && !in:
			return outSide
		}
		return geometry.Unknown
	}
}

// ParseMode maps a counting mode name to a Mode. zone is used for "zone".
func ParseMode(name string, zone ZoneMode) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "line":
		return LineMode{}, nil
	case "zone":
		if zone.Depth <= 0 {
			return nil, fmt.Errorf("zone depth must be > 0, got %g", zone.Depth)
		}
		return zone, nil
	}
	return nil, fmt.Errorf("counting mode must be 'line' or 'zone', got %q", name)
}
