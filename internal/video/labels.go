package video

import (
	"fmt"
	"image/color"

	"github.com/ironsheep/occupancy-counter/internal/counting"
	"github.com/ironsheep/occupancy-counter/internal/doors"
)

// Overlay colours.
var (
	TrackColor    = color.RGBA{0, 255, 0, 0}
	FootColor     = color.RGBA{255, 255, 0, 0}
	GateColor     = color.RGBA{255, 0, 0, 0}
	StatsColor    = color.RGBA{255, 255, 0, 0}
	WarningColor  = color.RGBA{255, 0, 0, 0}
	AcceptedColor = color.RGBA{0, 200, 0, 0}
	RejectedColor = color.RGBA{255, 128, 0, 0}
)

// NoDoorsMessage replaces the room lines while door detection finds nothing.
const NoDoorsMessage = "No doors detected (counting disabled)"

// statsTop and statsStep place the per-room lines in the top-left corner.
const (
	statsTop  = 40
	statsStep = 30
)

// TrackLabel is drawn above each person box.
func TrackLabel(id int) string { return fmt.Sprintf("ID %d", id) }

// RoomLabel summarizes one room, e.g. "room_1: In=3 (+5/-2, dir=down)".
func RoomLabel(rs counting.RoomSummary) string {
	return fmt.Sprintf("%s: In=%d (+%d/-%d, dir=%s)", rs.ID, rs.Occupancy, rs.Entered, rs.Left, rs.Direction)
}

// RoomLabelY returns the baseline of the i-th room line.
func RoomLabelY(i int) int { return statsTop + statsStep*i }

// CandidateLabel describes a door candidate in debug overlays.
func CandidateLabel(c doors.Candidate) string {
	return fmt.Sprintf("%s %.2f %s", c.Prompt, c.Confidence, c.Reason)
}

// CandidateColor is green for accepted candidates and orange otherwise.
func CandidateColor(c doors.Candidate) color.RGBA {
	if c.Accepted {
		return AcceptedColor
	}
	return RejectedColor
}
