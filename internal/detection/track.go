package detection

// Track is one tracked person in a frame. HasID is false when the tracker
// produced a box without an identity yet.
type Track struct {
	ID         int     `json:"track_id"`
	HasID      bool    `json:"-"`
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
}

// Identified returns the tracks that carry an identity, keeping their order.
func Identified(tracks []Track) []Track {
	out := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		if t.HasID {
			out = append(out, t)
		}
	}
	return out
}
