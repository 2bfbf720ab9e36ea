package counting

import (
	"sort"

	"github.com/ironsheep/occupancy-counter/internal/rooms"
)

// RoomStats counts crossings for one boundary. Both counters only grow.
type RoomStats struct {
	Entered int `json:"entered"`
	Left    int `json:"left"`
}

// Occupancy returns initial + Entered - Left, never below zero.
func (s RoomStats) Occupancy(initial int) int {
	return max(0, initial+s.Entered-s.Left)
}

// Tally accumulates RoomStats per boundary ID. Stats survive boundary
// refreshes for IDs that keep existing.
type Tally struct {
	stats map[string]*RoomStats
}

// NewTally returns an empty tally.
func NewTally() *Tally {
	return &Tally{stats: make(map[string]*RoomStats)}
}

// Ensure creates zeroed stats for id if none exist.
func (t *Tally) Ensure(id string) {
	if _, ok := t.stats[id]; !ok {
		t.stats[id] = &RoomStats{}
	}
}

// Record counts one event.
func (t *Tally) Record(kind EventKind, id string) {
	t.Ensure(id)
	switch kind {
	case KindEntry:
		t.stats[id].Entered++
	case KindExit:
		t.stats[id].Left++
	}
}

// Stats returns the counters for id.
func (t *Tally) Stats(id string) RoomStats {
	if s, ok := t.stats[id]; ok {
		return *s
	}
	return RoomStats{}
}

// Occupancy returns the derived occupancy of b.
func (t *Tally) Occupancy(b rooms.Boundary) int {
	return t.Stats(b.ID).Occupancy(b.InitialOccupancy)
}

// IDs returns every boundary ID the tally has seen, sorted.
func (t *Tally) IDs() []string {
	ids := make([]string, 0, len(t.stats))
	for id := range t.stats {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
