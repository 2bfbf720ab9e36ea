package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
)

// EncodedImage is an image encoded for transport as base64.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// ClampRect clamps r to the image bounds. The result may be empty.
func ClampRect(img image.Image, r image.Rectangle) image.Rectangle {
	return r.Canon().Intersect(img.Bounds())
}

// CropRegion returns the pixels of img inside r as a new image whose origin
// is (0,0). r is clamped to the image bounds first; an empty intersection is
// an error.
func CropRegion(img image.Image, r image.Rectangle) (*image.NRGBA, error) {
	clamped := ClampRect(img, r)
	if clamped.Empty() {
		return nil, fmt.Errorf("crop region %v does not overlap image bounds %v", r, img.Bounds())
	}
	return imaging.Crop(img, clamped), nil
}

// CropGray crops r from img and converts it to a GrayField.
func CropGray(img image.Image, r image.Rectangle) (GrayField, error) {
	roi, err := CropRegion(img, r)
	if err != nil {
		return nil, err
	}
	return Luminance(roi), nil
}

// EncodePNG encodes img as a base64 PNG.
func EncodePNG(img image.Image) (*EncodedImage, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return &EncodedImage{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// EncodeJPEG encodes img as JPEG bytes at the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality < 1 || quality > 100 {
		quality = 75
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Downscale shrinks img so that its longest side is at most maxSide pixels.
// Images already within the limit are returned unchanged.
func Downscale(img image.Image, maxSide int) image.Image {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return img
	}
	if w >= h {
		return imaging.Resize(img, maxSide, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, maxSide, imaging.Lanczos)
}
