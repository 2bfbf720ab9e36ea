package doors

import (
	"github.com/ironsheep/occupancy-counter/internal/detection"
)

// Reason records why a door candidate was accepted or rejected.
type Reason string

const (
	ReasonAcceptedEdge     Reason = "accepted_edge"
	ReasonAcceptedFallback Reason = "accepted_fallback"
	ReasonTooNarrow        Reason = "too_narrow"
	ReasonTooTall          Reason = "too_tall_for_door"
	ReasonNegativeOverlap  Reason = "overlaps_negative_prompt"
	ReasonMissingEdge      Reason = "missing_threshold_edge"
	ReasonMaxDoors         Reason = "max_doors_reached"
)

// Candidate is one detected door box and the verdict on it.
type Candidate struct {
	Box        detection.Box `json:"box"`
	Confidence float64       `json:"confidence"`
	Prompt     string        `json:"prompt"`
	Accepted   bool          `json:"accepted"`
	Reason     Reason        `json:"reason"`
	// Gate is set once gate fitting ran for the candidate.
	Gate *Gate `json:"gate,omitempty"`
}

// ReasonCounts tallies candidates per reason.
func ReasonCounts(cands []Candidate) map[Reason]int {
	counts := make(map[Reason]int)
	for _, c := range cands {
		counts[c.Reason]++
	}
	return counts
}
