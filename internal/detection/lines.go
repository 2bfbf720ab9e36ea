package detection

import (
	"math"
	"sort"

	"github.com/ironsheep/occupancy-counter/internal/imaging"
)

// LineSegment is a detected straight run of edge pixels. Endpoints are
// ordered so that X1 <= X2 (and Y1 <= Y2 when X1 == X2).
type LineSegment struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Length returns the Euclidean length of the segment.
func (s LineSegment) Length() float64 {
	return math.Hypot(float64(s.X2-s.X1), float64(s.Y2-s.Y1))
}

// AngleDegrees returns the absolute angle to the horizontal, in [0, 90].
func (s LineSegment) AngleDegrees() float64 {
	return math.Abs(math.Atan2(float64(s.Y2-s.Y1), float64(s.X2-s.X1))) * 180 / math.Pi
}

// MidY returns the vertical midpoint.
func (s LineSegment) MidY() float64 {
	return float64(s.Y1+s.Y2) / 2
}

// HoughParams configures HoughSegments.
type HoughParams struct {
	// Rho is the distance resolution of the accumulator in pixels.
	Rho float64
	// ThetaDegrees is the angle resolution of the accumulator.
	ThetaDegrees float64
	// Threshold is the minimum number of votes for a candidate line.
	Threshold int
	// MinLineLength discards shorter segments.
	MinLineLength float64
	// MaxLineGap is the largest run of missing pixels bridged within one segment.
	MaxLineGap int
}

// DefaultHoughParams returns the resolution used for door threshold fitting:
// 1 pixel, 1 degree, 20 votes.
func DefaultHoughParams(minLineLength float64, maxLineGap int) HoughParams {
	return HoughParams{
		Rho:           1,
		ThetaDegrees:  1,
		Threshold:     20,
		MinLineLength: minLineLength,
		MaxLineGap:    maxLineGap,
	}
}

type houghPeak struct {
	rho   int
	theta int
	votes int
}

// HoughSegments extracts line segments from an edge map with a progressive
// Hough transform.
//
// # Algorithm
//
//  1. Every edge pixel votes for all (rho, theta) lines through it.
//  2. Accumulator cells at or above Threshold that are local maxima in a 5x5
//     neighborhood become candidate lines, strongest first.
//  3. Each candidate line is walked across the map. Edge pixels within one
//     pixel of the line form runs; gaps up to MaxLineGap are bridged.
//  4. Runs at least MinLineLength long become segments and their pixels are
//     consumed, so weaker candidates cannot report the same pixels again.
//
// The result is deterministic for a given edge map.
func HoughSegments(edges imaging.EdgeMap, p HoughParams) []LineSegment {
	height := len(edges)
	if height == 0 {
		return nil
	}
	width := len(edges[0])
	if p.Rho <= 0 {
		p.Rho = 1
	}
	if p.ThetaDegrees <= 0 {
		p.ThetaDegrees = 1
	}
	if p.Threshold < 1 {
		p.Threshold = 1
	}

	numAngles := int(math.Round(180 / p.ThetaDegrees))
	maxDist := int(math.Ceil(math.Hypot(float64(width), float64(height)) / p.Rho))
	numRho := 2*maxDist + 1

	cosT := make([]float64, numAngles)
	sinT := make([]float64, numAngles)
	for t := 0; t < numAngles; t++ {
		angle := float64(t) * p.ThetaDegrees * math.Pi / 180
		cosT[t] = math.Cos(angle)
		sinT[t] = math.Sin(angle)
	}

	accumulator := make([][]int, numRho)
	for i := range accumulator {
		accumulator[i] = make([]int, numAngles)
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !edges[y][x] {
				continue
			}
			for t := 0; t < numAngles; t++ {
				rho := (float64(x)*cosT[t] + float64(y)*sinT[t]) / p.Rho
				accumulator[int(math.Round(rho))+maxDist][t]++
			}
		}
	}

	var peaks []houghPeak
	for r := 0; r < numRho; r++ {
		for t := 0; t < numAngles; t++ {
			votes := accumulator[r][t]
			if votes < p.Threshold {
				continue
			}
			isMax := true
			for dr := -2; dr <= 2 && isMax; dr++ {
				for dt := -2; dt <= 2 && isMax; dt++ {
					if dr == 0 && dt == 0 {
						continue
					}
					nr := r + dr
					nt := (t + dt + numAngles) % numAngles
					if nr >= 0 && nr < numRho && accumulator[nr][nt] > votes {
						isMax = false
					}
				}
			}
			if isMax {
				peaks = append(peaks, houghPeak{rho: r - maxDist, theta: t, votes: votes})
			}
		}
	}
	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].votes > peaks[j].votes
	})

	remaining := make([][]bool, height)
	for y := range edges {
		remaining[y] = append([]bool(nil), edges[y]...)
	}

	var segments []LineSegment
	for _, pk := range peaks {
		rho := float64(pk.rho) * p.Rho
		segments = append(segments, walkLine(remaining, width, height, rho, cosT[pk.theta], sinT[pk.theta], p)...)
	}
	return segments
}

// walkLine scans the line x*cos + y*sin = rho across the map and returns the
// runs that qualify as segments, consuming their pixels.
func walkLine(remaining [][]bool, width, height int, rho, cosA, sinA float64, p HoughParams) []LineSegment {
	type pixel struct{ x, y int }

	horizontalish := math.Abs(sinA) >= math.Abs(cosA)
	steps := height
	if horizontalish {
		steps = width
	}

	probe := func(i int) (pixel, bool) {
		if horizontalish {
			y := int(math.Round((rho - float64(i)*cosA) / sinA))
			for _, d := range []int{0, -1, 1} {
				if yy := y + d; yy >= 0 && yy < height && remaining[yy][i] {
					return pixel{i, yy}, true
				}
			}
			return pixel{}, false
		}
		x := int(math.Round((rho - float64(i)*sinA) / cosA))
		for _, d := range []int{0, -1, 1} {
			if xx := x + d; xx >= 0 && xx < width && remaining[i][xx] {
				return pixel{xx, i}, true
			}
		}
		return pixel{}, false
	}

	var out []LineSegment
	var run []pixel
	gap := 0
	flush := func() {
		if len(run) == 0 {
			return
		}
		first, last := run[0], run[len(run)-1]
		seg := orderSegment(LineSegment{X1: first.x, Y1: first.y, X2: last.x, Y2: last.y})
		if seg.Length() >= p.MinLineLength {
			for _, px := range run {
				remaining[px.y][px.x] = false
			}
			out = append(out, seg)
		}
		run = run[:0]
		gap = 0
	}

	for i := 0; i < steps; i++ {
		if px, ok := probe(i); ok {
			run = append(run, px)
			gap = 0
			continue
		}
		if len(run) > 0 {
			gap++
			if gap > p.MaxLineGap {
				flush()
			}
		}
	}
	flush()
	return out
}

func orderSegment(s LineSegment) LineSegment {
	if s.X1 > s.X2 || (s.X1 == s.X2 && s.Y1 > s.Y2) {
		return LineSegment{X1: s.X2, Y1: s.Y2, X2: s.X1, Y2: s.Y1}
	}
	return s
}
