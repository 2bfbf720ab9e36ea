package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/anthonynsimon/bild/adjust"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Preprocessing modes accepted by Preprocess.
const (
	PreprocessNone  = "none"
	PreprocessCLAHE = "clahe"
)

// Contrast-limited equalization parameters applied by the "clahe" mode.
const (
	DefaultCLAHEClip  = 2.0
	DefaultCLAHETiles = 8
)

// Preprocess prepares a frame for door detection. Mode "clahe" equalizes the
// Lab lightness channel tile by tile; any gamma other than 1 is applied
// afterwards. The input image is never modified.
func Preprocess(img image.Image, mode string, gamma float64) (image.Image, error) {
	out := img
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", PreprocessNone:
	case PreprocessCLAHE:
		out = EqualizeLightness(out, DefaultCLAHEClip, DefaultCLAHETiles)
	default:
		return nil, fmt.Errorf("unknown preprocess mode %q (want none or clahe)", mode)
	}

	if gamma <= 0 {
		return nil, fmt.Errorf("gamma must be > 0, got %g", gamma)
	}
	if math.Abs(gamma-1.0) > 1e-6 {
		out = adjust.Gamma(out, gamma)
	}
	return out, nil
}

// EqualizeLightness applies contrast-limited adaptive histogram equalization
// to the L channel of the image in CIE Lab space, leaving a and b untouched.
//
// The frame is divided into a tiles x tiles grid; each tile gets a histogram
// clipped at clipLimit times the mean bin height, with the excess spread over
// all bins. Pixels are remapped by bilinear interpolation between the lookup
// tables of the four nearest tile centers.
func EqualizeLightness(img image.Image, clipLimit float64, tiles int) *image.NRGBA {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	if width == 0 || height == 0 {
		return out
	}

	n := width * height
	lum := make([]uint8, n)
	aCh := make([]float64, n)
	bCh := make([]float64, n)
	alpha := make([]uint8, n)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			src := img.At(x+bounds.Min.X, y+bounds.Min.Y)
			c, _ := colorful.MakeColor(src)
			l, a, b := c.Lab()
			lum[i] = uint8(clampFloat(math.Round(l*255), 0, 255))
			aCh[i] = a
			bCh[i] = b
			alpha[i] = color.NRGBAModel.Convert(src).(color.NRGBA).A
		}
	}

	mapped := clahe(lum, width, height, clipLimit, tiles)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			c := colorful.Lab(float64(mapped[i])/255, aCh[i], bCh[i]).Clamped()
			r, g, b := c.RGB255()
			out.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: alpha[i]})
		}
	}
	return out
}

func clahe(lum []uint8, width, height int, clipLimit float64, grid int) []uint8 {
	if grid < 1 {
		grid = 1
	}
	tileW := (width + grid - 1) / grid
	tileH := (height + grid - 1) / grid
	tilesX := (width + tileW - 1) / tileW
	tilesY := (height + tileH - 1) / tileH

	luts := make([][256]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := minInt(x0+tileW, width), minInt(y0+tileH, height)
			luts[ty*tilesX+tx] = tileLUT(lum, width, x0, y0, x1, y1, clipLimit)
		}
	}

	out := make([]uint8, len(lum))
	for y := 0; y < height; y++ {
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := int(math.Floor(fy))
		wy := fy - float64(ty0)
		ty1 := clamp(ty0+1, 0, tilesY-1)
		ty0 = clamp(ty0, 0, tilesY-1)
		for x := 0; x < width; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := int(math.Floor(fx))
			wx := fx - float64(tx0)
			tx1 := clamp(tx0+1, 0, tilesX-1)
			tx0 = clamp(tx0, 0, tilesX-1)

			v := lum[y*width+x]
			top := (1-wx)*float64(luts[ty0*tilesX+tx0][v]) + wx*float64(luts[ty0*tilesX+tx1][v])
			bottom := (1-wx)*float64(luts[ty1*tilesX+tx0][v]) + wx*float64(luts[ty1*tilesX+tx1][v])
			out[y*width+x] = uint8(clampFloat(math.Round((1-wy)*top+wy*bottom), 0, 255))
		}
	}
	return out
}

func tileLUT(lum []uint8, stride, x0, y0, x1, y1 int, clipLimit float64) [256]uint8 {
	var hist [256]int
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			hist[lum[y*stride+x]]++
		}
	}
	pixels := (x1 - x0) * (y1 - y0)

	var lut [256]uint8
	if pixels == 0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}

	limit := int(clipLimit * float64(pixels) / 256)
	if limit < 1 {
		limit = 1
	}
	excess := 0
	for i := range hist {
		if hist[i] > limit {
			excess += hist[i] - limit
			hist[i] = limit
		}
	}
	bonus := excess / 256
	residual := excess % 256
	for i := range hist {
		hist[i] += bonus
	}
	if residual > 0 {
		step := maxInt(1, 256/residual)
		for i := 0; i < 256 && residual > 0; i += step {
			hist[i]++
			residual--
		}
	}

	cdf := 0
	for i := range hist {
		cdf += hist[i]
		lut[i] = uint8(clampFloat(math.Round(float64(cdf)*255/float64(pixels)), 0, 255))
	}
	return lut
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
