// Package counting converts tracked foot points into entry and exit events
// and keeps the per-room tallies.
//
// # State Machine
//
// For every (track, boundary) pair a Session remembers the last unambiguous
// side. Each sample is classified by the session's Mode:
//
//   - Unknown (dead band, outside the span, or in no zone) changes nothing
//   - the first known side is adopted silently
//   - the same side again is a no-op
//   - the opposite side emits one CrossingEvent and becomes the new memory
//
// A crossing in the boundary's Direction is an entry; the reverse is an exit.
// Zone mode maps its inside zone to the side the entry direction ends on, so
// both modes share the same convention.
//
// # Invalidation
//
// SetBoundaries compares the new boundary signature with the current one. Any
// change clears all track memory, so the first sample after a geometry change
// never produces an event.
//
// # Occupancy
//
// Tally keeps monotonic Entered and Left counters per boundary ID. Occupancy
// is always derived: max(0, initial + Entered - Left).
package counting
