package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
)

// GrayField is a row-major luminance plane with values in [0,1].
// GrayField[y][x] addresses the pixel at column x, row y.
type GrayField [][]float64

// EdgeMap marks edge pixels. EdgeMap[y][x] is true for an edge at (x, y).
type EdgeMap [][]bool

// Width returns the number of columns.
func (g GrayField) Width() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Height returns the number of rows.
func (g GrayField) Height() int {
	return len(g)
}

// Count returns the number of edge pixels.
func (m EdgeMap) Count() int {
	n := 0
	for _, row := range m {
		for _, v := range row {
			if v {
				n++
			}
		}
	}
	return n
}

// EdgeDetectResult contains an edge image encoded as base64 PNG.
//
// White pixels (255) are edges, black pixels (0) are not.
type EdgeDetectResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	EdgePixels  int    `json:"edge_pixels"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Luminance converts img to a GrayField using ITU-R BT.601 weights
// (0.299*R + 0.587*G + 0.114*B). The image origin is shifted to (0,0).
func Luminance(img image.Image) GrayField {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := make(GrayField, height)
	for y := 0; y < height; y++ {
		gray[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			rf := float64(r>>8) / 255.0
			gf := float64(g>>8) / 255.0
			bf := float64(b>>8) / 255.0
			gray[y][x] = 0.299*rf + 0.587*gf + 0.114*bf
		}
	}
	return gray
}

// GaussianBlur applies a 5x5 Gaussian blur (sigma ~1.4).
//
// Kernel:
//
//	1  4  7  4  1
//	4 16 26 16  4
//	7 26 41 26  7
//	4 16 26 16  4
//	1  4  7  4  1
//
// The kernel sums to 273. Border pixels use replicated edge values.
func GaussianBlur(img GrayField) GrayField {
	kernel := [5][5]float64{
		{1, 4, 7, 4, 1},
		{4, 16, 26, 16, 4},
		{7, 26, 41, 26, 7},
		{4, 16, 26, 16, 4},
		{1, 4, 7, 4, 1},
	}
	const kernelSum = 273.0
	width, height := img.Width(), img.Height()

	result := make(GrayField, height)
	for y := 0; y < height; y++ {
		result[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			var sum float64
			for ky := -2; ky <= 2; ky++ {
				for kx := -2; kx <= 2; kx++ {
					py := clamp(y+ky, 0, height-1)
					px := clamp(x+kx, 0, width-1)
					sum += img[py][px] * kernel[ky+2][kx+2]
				}
			}
			result[y][x] = sum / kernelSum
		}
	}
	return result
}

var (
	sobelX = [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY = [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}
)

// Sobel returns the horizontal and vertical gradients of img.
func Sobel(img GrayField) (gx, gy GrayField) {
	width, height := img.Width(), img.Height()
	gx = make(GrayField, height)
	gy = make(GrayField, height)
	for y := 0; y < height; y++ {
		gx[y] = make([]float64, width)
		gy[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			var sx, sy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					v := img[clamp(y+ky, 0, height-1)][clamp(x+kx, 0, width-1)]
					sx += v * sobelX[ky+1][kx+1]
					sy += v * sobelY[ky+1][kx+1]
				}
			}
			gx[y][x] = sx
			gy[y][x] = sy
		}
	}
	return gx, gy
}

// ColumnEnergy returns, for each column, the mean absolute horizontal Sobel
// gradient over all rows. Strong vertical structures such as door jambs show
// up as peaks.
func ColumnEnergy(img GrayField) []float64 {
	width, height := img.Width(), img.Height()
	energy := make([]float64, width)
	if height == 0 {
		return energy
	}
	gx, _ := Sobel(img)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			energy[x] += math.Abs(gx[y][x])
		}
	}
	for x := range energy {
		energy[x] /= float64(height)
	}
	return energy
}

// Canny runs Canny edge detection on an already blurred GrayField.
//
// Thresholds are on the 0-255 scale, matching the usual 50/150 pairing.
//
// # Algorithm
//
//  1. Sobel gradients, magnitude sqrt(gx² + gy²), direction atan2(gy, gx)
//  2. Non-maximum suppression along the quantized gradient direction
//  3. Hysteresis: pixels at or above high are edges; pixels at or above low
//     are edges when an 8-neighbor is at or above high
//
// Border pixels are never edges.
func Canny(blurred GrayField, thresholdLow, thresholdHigh float64) EdgeMap {
	width, height := blurred.Width(), blurred.Height()
	gx, gy := Sobel(blurred)

	magnitude := make(GrayField, height)
	for y := 0; y < height; y++ {
		magnitude[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			magnitude[y][x] = math.Hypot(gx[y][x], gy[y][x])
		}
	}

	suppressed := make(GrayField, height)
	for y := 0; y < height; y++ {
		suppressed[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			if y == 0 || y == height-1 || x == 0 || x == width-1 {
				continue
			}

			angle := math.Atan2(gy[y][x], gx[y][x])
			mag := magnitude[y][x]

			var n1, n2 float64
			if (angle >= -math.Pi/8 && angle < math.Pi/8) || (angle >= 7*math.Pi/8 || angle < -7*math.Pi/8) {
				n1 = magnitude[y][x-1]
				n2 = magnitude[y][x+1]
			} else if (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8) {
				n1 = magnitude[y-1][x+1]
				n2 = magnitude[y+1][x-1]
			} else if (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8) {
				n1 = magnitude[y-1][x]
				n2 = magnitude[y+1][x]
			} else {
				n1 = magnitude[y-1][x-1]
				n2 = magnitude[y+1][x+1]
			}

			if mag > 0 && mag >= n1 && mag >= n2 {
				suppressed[y][x] = mag
			}
		}
	}

	lowThresh := thresholdLow / 255.0
	highThresh := thresholdHigh / 255.0

	edges := make(EdgeMap, height)
	for y := 0; y < height; y++ {
		edges[y] = make([]bool, width)
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			val := suppressed[y][x]
			if val >= highThresh {
				edges[y][x] = true
			} else if val >= lowThresh {
				strong := false
				for ky := -1; ky <= 1 && !strong; ky++ {
					for kx := -1; kx <= 1 && !strong; kx++ {
						py := clamp(y+ky, 0, height-1)
						px := clamp(x+kx, 0, width-1)
						if suppressed[py][px] >= highThresh {
							strong = true
						}
					}
				}
				edges[y][x] = strong
			}
		}
	}
	return edges
}

// EdgeDetect converts img to gray, blurs it, runs Canny and returns the edge
// image as a base64 PNG.
func EdgeDetect(img image.Image, thresholdLow, thresholdHigh int) (*EdgeDetectResult, error) {
	bounds := img.Bounds()
	edges := Canny(GaussianBlur(Luminance(img)), float64(thresholdLow), float64(thresholdHigh))

	result := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y, row := range edges {
		for x, v := range row {
			if v {
				result.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, result); err != nil {
		return nil, fmt.Errorf("failed to encode edge image: %w", err)
	}

	return &EdgeDetectResult{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		EdgePixels:  edges.Count(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// clamp constrains an integer value to the range [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
