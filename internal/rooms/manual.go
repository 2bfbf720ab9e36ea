package rooms

import (
	"github.com/ironsheep/occupancy-counter/internal/geometry"
)

// ManualLine describes the single-room fallback: a horizontal gate at Y that
// spans X1..X2, or the full frame width when both are nil.
type ManualLine struct {
	Y  *int
	X1 *int
	X2 *int
}

// Boundaries validates the manual line and returns it as the one boundary
// "room_1".
func (m ManualLine) Boundaries(width int, defaults Defaults) ([]Boundary, error) {
	if m.Y == nil {
		return nil, &ConfigError{Field: "line", Msg: "is required for single-room mode, or provide a rooms config"}
	}
	if (m.X1 == nil) != (m.X2 == nil) {
		return nil, &ConfigError{Field: "line-x1/line-x2", Msg: "must be set together, or neither"}
	}
	dir, err := parseExactDirection(string(defaults.Direction))
	if err != nil {
		return nil, &ConfigError{Field: "direction", Msg: err.Error()}
	}

	x1, x2 := 0, width
	if m.X1 != nil {
		x1, x2 = geometry.ClampSpan(*m.X1, *m.X2, width)
	}
	return []Boundary{{
		ID:               "room_1",
		X1:               x1,
		Y1:               *m.Y,
		X2:               x2,
		Y2:               *m.Y,
		Direction:        dir,
		Margin:           defaults.Margin,
		Thickness:        max(1, defaults.Thickness),
		InitialOccupancy: defaults.InitialOccupancy,
	}}, nil
}
