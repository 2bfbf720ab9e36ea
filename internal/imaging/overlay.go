package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Annotation is one element drawn by Annotate: a rectangle, a line, or both,
// with an optional text label anchored at the top-left of the rectangle (or
// the first line endpoint when there is no rectangle).
type Annotation struct {
	Box       image.Rectangle
	Line      *[2]image.Point
	Label     string
	Color     color.RGBA
	Thickness int
}

// Annotate copies img and draws the annotations on top, in order.
func Annotate(img image.Image, notes []Annotation) *image.RGBA {
	bounds := img.Bounds()
	result := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(result, result.Bounds(), img, bounds.Min, draw.Src)

	for _, n := range notes {
		thickness := n.Thickness
		if thickness < 1 {
			thickness = 1
		}
		anchor := n.Box.Min
		if !n.Box.Empty() {
			drawRect(result, n.Box, n.Color, thickness)
		}
		if n.Line != nil {
			drawLine(result, n.Line[0], n.Line[1], n.Color, thickness)
			if n.Box.Empty() {
				anchor = n.Line[0]
			}
		}
		if n.Label != "" {
			drawLabel(result, anchor.X, anchor.Y-2, n.Label, color.RGBA{255, 255, 255, 255}, n.Color)
		}
	}
	return result
}

// ParseHexColor parses "#RRGGBB" or "#RRGGBBAA".
func ParseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b, a uint8 = 0, 0, 0, 255
	switch len(hex) {
	case 6:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r, g, b = uint8(val>>16), uint8(val>>8), uint8(val)
	case 8:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r, g, b, a = uint8(val>>24), uint8(val>>16), uint8(val>>8), uint8(val)
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}
	return color.RGBA{R: r, G: g, B: b, A: a}, nil
}

func drawRect(img *image.RGBA, r image.Rectangle, c color.RGBA, thickness int) {
	r = r.Canon()
	for t := 0; t < thickness; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			setPixel(img, x, r.Min.Y+t, c)
			setPixel(img, x, r.Max.Y-1-t, c)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			setPixel(img, r.Min.X+t, y, c)
			setPixel(img, r.Max.X-1-t, y, c)
		}
	}
}

// drawLine rasterizes a line with Bresenham's algorithm, stamping a square
// brush of the given thickness at each step.
func drawLine(img *image.RGBA, p0, p1 image.Point, c color.RGBA, thickness int) {
	dx := absInt(p1.X - p0.X)
	dy := -absInt(p1.Y - p0.Y)
	sx, sy := 1, 1
	if p0.X > p1.X {
		sx = -1
	}
	if p0.Y > p1.Y {
		sy = -1
	}
	half := thickness / 2
	x, y := p0.X, p0.Y
	errAcc := dx + dy
	for {
		for oy := -half; oy < thickness-half; oy++ {
			for ox := -half; ox < thickness-half; ox++ {
				setPixel(img, x+ox, y+oy, c)
			}
		}
		if x == p1.X && y == p1.Y {
			return
		}
		e2 := 2 * errAcc
		if e2 >= dy {
			errAcc += dy
			x += sx
		}
		if e2 <= dx {
			errAcc += dx
			y += sy
		}
	}
}

// drawLabel writes text with basicfont.Face7x13 on a filled background box
// whose bottom-left corner is (x, y). The box is shifted down when it would
// start above the image.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(fg), Face: face}
	width := d.MeasureString(text).Ceil()
	height := face.Metrics().Height.Ceil()
	if y-height < 0 {
		y = height
	}

	box := image.Rect(x, y-height, x+width+2, y+1).Intersect(img.Bounds())
	draw.Draw(img, box, image.NewUniform(bg), image.Point{}, draw.Src)

	d.Dot = fixed.P(x+1, y-face.Metrics().Descent.Ceil())
	d.DrawString(text)
}

func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{X: x, Y: y}).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
