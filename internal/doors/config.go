package doors

import (
	"strings"

	"github.com/ironsheep/occupancy-counter/internal/geometry"
	"github.com/ironsheep/occupancy-counter/internal/imaging"
	"github.com/ironsheep/occupancy-counter/internal/rooms"
)

// Default prompt lists used by the counter.
const (
	DefaultPrompt          = "door"
	DefaultPrompts         = "door,doorway,entrance,open door,glass door,clear door,wooden door,metal door"
	DefaultNegativePrompts = "window,glass window,floor to ceiling window,picture window"
)

// Config controls door detection and gate fitting.
type Config struct {
	// Prompts are the positive prompts; each is sent to the detector once.
	Prompts []string
	// NegativePrompts find look-alikes such as windows that veto overlapping
	// door candidates. Empty disables the negative pass.
	NegativePrompts []string

	Confidence         float64
	NegativeConfidence float64

	// NMSIoU is the suppression threshold for both passes, clamped to
	// [0, detection.MaxNMSIoU].
	NMSIoU float64
	// NegativeIoU is the overlap with a negative box that rejects a candidate.
	NegativeIoU float64

	// MaxHeightRatio rejects candidates taller than this fraction of the frame.
	MaxHeightRatio float64
	MaxDoors       int
	MinWidth       int

	// SplitWideBoxes enables splitting boxes that cover two adjacent doors.
	SplitWideBoxes bool
	// SplitRatio is the width/height ratio at which splitting is considered.
	SplitRatio float64
	// SplitStdMultiple is how many standard deviations above the mean column
	// energy the divider peak must reach.
	SplitStdMultiple float64

	Gate GateParams

	// RequireEdgeThreshold rejects candidates whose gate fell back to a flat
	// line.
	RequireEdgeThreshold bool

	// Preprocess is "none" or "clahe"; Gamma is applied after it when not 1.
	Preprocess string
	Gamma      float64

	// Room holds the direction, margin, thickness and occupancy given to
	// every detected boundary.
	Room rooms.Defaults

	// Debug adds per-reason counts to the door status log.
	Debug bool
}

// DefaultConfig returns the counter's default door detection settings.
func DefaultConfig() Config {
	return Config{
		Prompts:            ParsePrompts(DefaultPrompt, DefaultPrompts),
		NegativePrompts:    ParseNegativePrompts(DefaultNegativePrompts),
		Confidence:         0.25,
		NegativeConfidence: 0.20,
		NMSIoU:             0.45,
		NegativeIoU:        0.40,
		MaxHeightRatio:     0.93,
		MaxDoors:           4,
		MinWidth:           80,
		SplitRatio:         1.35,
		SplitStdMultiple:   0.6,
		Gate:               DefaultGateParams(),
		Preprocess:         imaging.PreprocessNone,
		Gamma:              1.0,
		Room: rooms.Defaults{
			Direction: geometry.DirectionDown,
			Margin:    6,
			Thickness: 2,
		},
	}
}

// ParsePrompts splits a comma-separated prompt list, falling back to the
// single primary prompt when the list has no usable entries.
func ParsePrompts(primary, list string) []string {
	if prompts := splitList(list); len(prompts) > 0 {
		return prompts
	}
	return []string{primary}
}

// ParseNegativePrompts splits a comma-separated list; empty entries are
// dropped and an empty list disables negative prompts.
func ParseNegativePrompts(list string) []string {
	return splitList(list)
}

func splitList(list string) []string {
	var out []string
	for _, p := range strings.Split(list, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
