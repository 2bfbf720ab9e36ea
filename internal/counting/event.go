package counting

import (
	"time"

	"github.com/ironsheep/occupancy-counter/internal/geometry"
)

// EventKind says whether a crossing entered or left a room.
type EventKind string

const (
	KindEntry EventKind = "entry"
	KindExit  EventKind = "exit"
)

// CrossingEvent is one counted transition of a track across a boundary.
type CrossingEvent struct {
	BoundaryID string             `json:"room_id"`
	Direction  geometry.Direction `json:"direction"`
	Kind       EventKind          `json:"kind"`
	TrackID    int                `json:"track_id"`
	Frame      int                `json:"frame"`
	VideoTime  time.Duration      `json:"video_ts"`
	Foot       geometry.Point     `json:"foot"`
	// Occupancy is the room's occupancy after this event.
	Occupancy int `json:"occupancy"`
}
