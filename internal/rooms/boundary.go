package rooms

import (
	"fmt"
	"strings"

	"github.com/ironsheep/occupancy-counter/internal/geometry"
)

// Boundary is a counting gate between a room and the space outside it.
type Boundary struct {
	ID string `json:"room_id"`

	X1 int `json:"gate_x1"`
	Y1 int `json:"gate_y1"`
	X2 int `json:"gate_x2"`
	Y2 int `json:"gate_y2"`

	// Direction is the crossing direction that counts as entering the room.
	Direction geometry.Direction `json:"direction"`
	// Margin is the dead band around the gate in pixels.
	Margin int `json:"line_margin"`
	// Thickness is the rendered line width, at least 1.
	Thickness        int `json:"line_thickness"`
	InitialOccupancy int `json:"initial_occupancy"`

	// RiskRoomID overrides the room identifier sent to the risk service.
	RiskRoomID string `json:"risk_room_id,omitempty"`
}

// Segment returns the gate as a geometry segment.
func (b Boundary) Segment() geometry.Segment {
	return geometry.Seg(b.X1, b.Y1, b.X2, b.Y2)
}

// MidX returns the horizontal midpoint of the gate.
func (b Boundary) MidX() float64 {
	return float64(b.X1+b.X2) / 2
}

// ResolveRiskRoomID picks the room identifier for risk checks: the boundary's
// own override, then runRoomID, then the boundary ID.
func (b Boundary) ResolveRiskRoomID(runRoomID string) string {
	if b.RiskRoomID != "" {
		return b.RiskRoomID
	}
	if runRoomID != "" {
		return runRoomID
	}
	return b.ID
}

// Defaults are the per-room values used when a source does not specify them.
type Defaults struct {
	Direction        geometry.Direction
	Margin           int
	Thickness        int
	InitialOccupancy int
}

// Signature returns a comparable fingerprint of everything that affects side
// classification: ID, endpoints, direction and margin, in order.
// Thickness, occupancy and risk overrides are not part of it.
func Signature(bs []Boundary) string {
	var sb strings.Builder
	for i, b := range bs {
		if i > 0 {
			sb.WriteByte('|')
		}
		fmt.Fprintf(&sb, "%s:%d,%d,%d,%d:%s:%d", b.ID, b.X1, b.Y1, b.X2, b.Y2, b.Direction, b.Margin)
	}
	return sb.String()
}

// Clone returns a copy of bs that shares no backing array.
func Clone(bs []Boundary) []Boundary {
	if bs == nil {
		return nil
	}
	return append([]Boundary(nil), bs...)
}
