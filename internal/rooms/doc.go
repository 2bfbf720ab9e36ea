// Package rooms holds the boundary set a counting run works against and the
// rules for where it comes from.
//
// # Sources
//
// Boundaries come from exactly one source per run, in order of precedence:
//
//  1. A rooms config file (JSON list, or an object with a "rooms" list)
//  2. Automatic door detection through a BoundaryDetector
//  3. A single manual horizontal line
//
// Only the automatic source is refreshed during a run. See Registry.Refresh
// for the adoption policy.
//
// # Rooms Config Format
//
// Each room is an object with either gate points or a horizontal line:
//
//	{"room_id": "lab", "gate_x1": 40, "gate_y1": 300, "gate_x2": 600, "gate_y2": 310,
//	 "direction": "down", "line_margin": 6, "initial_occupancy": 2}
//	{"id": "hall", "line": 240, "x1": 0, "x2": 320, "line_thickness": 3}
//
// Missing fields fall back to the run defaults. A room without an identifier
// is named room_<n> after its 1-based position.
//
// # Errors
//
// Every validation failure is a *ConfigError naming the room position when
// one applies.
package rooms
