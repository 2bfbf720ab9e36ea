package doors

import (
	"image"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/occupancy-counter/internal/detection"
	"github.com/ironsheep/occupancy-counter/internal/imaging"
)

const (
	minSplitColumns = 8
	minSplitPart    = 12
)

// SplitParams tunes SplitWideBox.
type SplitParams struct {
	MinWidth    int
	Ratio       float64
	StdMultiple float64
}

// SplitWideBox splits a box that likely covers two adjacent doors at the
// strongest vertical divider in its middle half. The box is returned unchanged
// unless it is at least max(1, Ratio) times wider than tall and the divider
// peak is non-zero and reaches mean + StdMultiple*std of the column energy.
// Both halves must also be at least max(12, MinWidth) pixels wide.
func SplitWideBox(img image.Image, box detection.Box, p SplitParams) []detection.Box {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	x1, y1, x2, y2 := box.Ints()
	x1 = clampInt(x1, 0, w-1)
	x2 = clampInt(x2, 0, w-1)
	y1 = clampInt(y1, 0, h-1)
	y2 = clampInt(y2, 0, h-1)

	bw, bh := x2-x1, y2-y1
	if bw <= 0 || bh <= 0 {
		return []detection.Box{box}
	}
	ratio := p.Ratio
	if ratio < 1 {
		ratio = 1
	}
	if float64(bw)/float64(bh) < ratio {
		return []detection.Box{box}
	}

	roi, err := imaging.CropGray(img, image.Rect(x1, y1, x2, y2).Add(b.Min))
	if err != nil {
		return []detection.Box{box}
	}
	energy := imaging.ColumnEnergy(imaging.GaussianBlur(roi))
	if len(energy) < minSplitColumns {
		return []detection.Box{box}
	}

	left := int(float64(len(energy)) * 0.25)
	right := int(float64(len(energy)) * 0.75)
	if right <= left+2 {
		return []detection.Box{box}
	}
	peak := left + floats.MaxIdx(energy[left:right])

	mean, std := stat.PopMeanStdDev(energy, nil)
	if energy[peak] <= 0 || energy[peak] < mean+p.StdMultiple*std {
		return []detection.Box{box}
	}

	splitX := x1 + peak
	minPart := max(minSplitPart, p.MinWidth)
	if splitX-x1 < minPart || x2-splitX < minPart {
		return []detection.Box{box}
	}

	return []detection.Box{
		{X1: float64(x1), Y1: float64(y1), X2: float64(splitX), Y2: float64(y2)},
		{X1: float64(splitX), Y1: float64(y1), X2: float64(x2), Y2: float64(y2)},
	}
}
