package rooms

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ironsheep/occupancy-counter/internal/geometry"
)

// LoadRoomsConfig reads and parses a rooms config file.
func LoadRoomsConfig(path string, width int, defaults Defaults) ([]Boundary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rooms config: %w", err)
	}
	return ParseRoomsConfig(data, width, defaults)
}

// ParseRoomsConfig parses a rooms config document. width is the frame width,
// used as the default right end of line-based rooms.
func ParseRoomsConfig(data []byte, width int, defaults Defaults) ([]Boundary, error) {
	if !gjson.ValidBytes(data) {
		return nil, &ConfigError{Field: "rooms-config", Msg: "is not valid JSON"}
	}

	root := gjson.ParseBytes(data)
	items := root
	if root.IsObject() {
		if rooms := root.Get("rooms"); rooms.Exists() {
			items = rooms
		}
	}
	if !items.IsArray() || len(items.Array()) == 0 {
		return nil, &ConfigError{Field: "rooms-config", Msg: "must contain a non-empty list of rooms"}
	}

	var out []Boundary
	seen := make(map[string]int)
	for i, item := range items.Array() {
		idx := i + 1
		b, err := parseRoom(item, idx, width, defaults)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[b.ID]; dup {
			return nil, &ConfigError{
				Index:  idx,
				RoomID: b.ID,
				Field:  "room_id",
				Msg:    fmt.Sprintf("duplicates Room #%d", prev),
			}
		}
		seen[b.ID] = idx
		out = append(out, b)
	}
	return out, nil
}

func parseRoom(item gjson.Result, idx, width int, defaults Defaults) (Boundary, error) {
	if !item.IsObject() {
		return Boundary{}, &ConfigError{Index: idx, Msg: "must be an object"}
	}

	b := Boundary{ID: fmt.Sprintf("room_%d", idx)}
	if v := item.Get("room_id"); v.Exists() {
		b.ID = v.String()
	} else if v := item.Get("id"); v.Exists() {
		b.ID = v.String()
	}
	if strings.TrimSpace(b.ID) == "" {
		return Boundary{}, &ConfigError{Index: idx, Field: "room_id", Msg: "must not be empty"}
	}

	fieldErr := func(field, msg string) error {
		return &ConfigError{Index: idx, RoomID: b.ID, Field: field, Msg: msg}
	}
	intField := func(key string, def int) (int, error) {
		v := item.Get(key)
		if !v.Exists() {
			return def, nil
		}
		n, ok := asInt(v)
		if !ok {
			return 0, fieldErr(key, "must be an integer")
		}
		return n, nil
	}

	gateKeys := []string{"gate_x1", "gate_y1", "gate_x2", "gate_y2"}
	hasGate := true
	for _, k := range gateKeys {
		if !item.Get(k).Exists() {
			hasGate = false
			break
		}
	}

	var err error
	switch {
	case hasGate:
		coords := make([]int, len(gateKeys))
		for i, k := range gateKeys {
			if coords[i], err = intField(k, 0); err != nil {
				return Boundary{}, err
			}
		}
		b.X1, b.Y1, b.X2, b.Y2 = coords[0], coords[1], coords[2], coords[3]
	case item.Get("line").Exists():
		lineY, err := intField("line", 0)
		if err != nil {
			return Boundary{}, err
		}
		x1, err := intField("x1", 0)
		if err != nil {
			return Boundary{}, err
		}
		x2, err := intField("x2", width)
		if err != nil {
			return Boundary{}, err
		}
		x1, x2 = geometry.ClampSpan(x1, x2, width)
		b.X1, b.Y1, b.X2, b.Y2 = x1, lineY, x2, lineY
	default:
		return Boundary{}, &ConfigError{Index: idx, Msg: "must include either gate points or a line field"}
	}

	dir := string(defaults.Direction)
	if v := item.Get("direction"); v.Exists() {
		dir = v.String()
	}
	if b.Direction, err = parseExactDirection(dir); err != nil {
		return Boundary{}, fieldErr("direction", err.Error())
	}

	if b.Margin, err = intField("line_margin", defaults.Margin); err != nil {
		return Boundary{}, err
	}
	if b.Margin < 0 {
		return Boundary{}, fieldErr("line_margin", "must not be negative")
	}
	if b.InitialOccupancy, err = intField("initial_occupancy", 0); err != nil {
		return Boundary{}, err
	}
	if b.Thickness, err = intField("line_thickness", defaults.Thickness); err != nil {
		return Boundary{}, err
	}
	b.Thickness = max(1, b.Thickness)

	if v := item.Get("risk_room_id"); v.Exists() {
		b.RiskRoomID = v.String()
	}
	return b, nil
}

// parseExactDirection accepts only the literal values "down" and "up".
func parseExactDirection(s string) (geometry.Direction, error) {
	switch geometry.Direction(s) {
	case geometry.DirectionDown, geometry.DirectionUp:
		return geometry.Direction(s), nil
	}
	return "", fmt.Errorf("must be 'down' or 'up', got %q", s)
}

func asInt(v gjson.Result) (int, bool) {
	switch v.Type {
	case gjson.Number:
		return int(v.Num), true
	case gjson.String:
		n, err := strconv.Atoi(strings.TrimSpace(v.Str))
		return n, err == nil
	}
	return 0, false
}
