// Package imaging provides the pixel-level operations behind door detection
// and its diagnostics.
//
// It covers luminance conversion, 5x5 Gaussian blur, Sobel gradients, Canny
// edge detection, per-column edge energy, contrast normalization of the Lab
// lightness channel, gamma correction, region cropping, PNG/JPEG encoding,
// annotation drawing, and a small cache for frame snapshots.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward. Regions follow
// image.Rectangle semantics: Min is inclusive, Max is exclusive.
//
// # Gray Fields
//
// Gray-level work happens on GrayField, a [][]float64 indexed [y][x] with
// values in [0,1]. Functions that crop or convert always return fields whose
// origin is (0,0) regardless of the source image's bounds.
//
// # Libraries
//
//   - github.com/disintegration/imaging for cropping and resizing
//   - github.com/anthonynsimon/bild/adjust for gamma correction
//   - github.com/lucasb-eyer/go-colorful for Lab conversion
//   - golang.org/x/image/font for annotation labels
//
// # Thread Safety
//
// SnapshotCache is safe for concurrent use. All other functions are stateless
// and never modify their inputs.
package imaging
