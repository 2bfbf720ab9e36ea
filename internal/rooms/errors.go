package rooms

import (
	"fmt"
	"strings"
)

// ConfigError reports an invalid boundary configuration.
type ConfigError struct {
	// Index is the 1-based room position in a rooms config, 0 otherwise.
	Index int
	// RoomID is set once the room's identifier is known.
	RoomID string
	Field  string
	Msg    string
}

func (e *ConfigError) Error() string {
	var parts []string
	if e.Index > 0 {
		room := fmt.Sprintf("Room #%d", e.Index)
		if e.RoomID != "" {
			room += fmt.Sprintf(" (%s)", e.RoomID)
		}
		parts = append(parts, room)
	}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	parts = append(parts, e.Msg)
	return strings.Join(parts, " ")
}
