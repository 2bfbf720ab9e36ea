// Package video binds the counter to OpenCV through gocv: it opens video
// files and cameras, draws the counting overlay, and shows or saves the
// annotated frames.
//
// Frames cross the package boundary as image.Image so the rest of the
// module stays free of cgo.
package video
