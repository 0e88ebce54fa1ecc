// Package testdata builds synthetic camera frames for tests. Frames are
// generated rather than embedded so the wand tip position is exact and
// assertions can reason about it.
package testdata

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Frame dimensions match the default capture resolution.
const (
	FrameWidth  = 640
	FrameHeight = 480
)

// DarkFrame returns a black BGR frame, the night-vision background with
// no IR reflection in view.
func DarkFrame() *gocv.Mat {
	mat := gocv.NewMatWithSize(FrameHeight, FrameWidth, gocv.MatTypeCV8UC3)
	return &mat
}

// TipFrame returns a dark frame with a bright circular wand tip at the
// given position.
func TipFrame(x, y int) *gocv.Mat {
	mat := gocv.NewMatWithSize(FrameHeight, FrameWidth, gocv.MatTypeCV8UC3)
	gocv.Circle(&mat, image.Pt(x, y), 6, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
	return &mat
}

// SweepFrames returns a sequence of frames with the tip moving in a
// straight line from (x0, y0) to (x1, y1), followed by a few dark frames
// so the track is lost and the gesture finalizes.
func SweepFrames(n int, x0, y0, x1, y1 int) []*gocv.Mat {
	frames := make([]*gocv.Mat, 0, n+8)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n-1)
		x := x0 + int(t*float64(x1-x0))
		y := y0 + int(t*float64(y1-y0))
		frames = append(frames, TipFrame(x, y))
	}
	for i := 0; i < 8; i++ {
		frames = append(frames, DarkFrame())
	}
	return frames
}

// CloseFrames releases every frame in the slice.
func CloseFrames(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}
