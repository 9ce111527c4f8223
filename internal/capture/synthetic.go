package capture

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
)

// TargetColor is the BGR fill used for synthetic targets (pure green).
var TargetColor = color.RGBA{G: 255}

// SyntheticFrames renders n width x height frames with a square target
// moving on an ellipse around the frame center and growing and shrinking
// as it goes. The caller owns the returned Mats.
func SyntheticFrames(width, height, n int) []*gocv.Mat {
	frames := make([]*gocv.Mat, 0, n)
	cx, cy := float64(width)/2, float64(height)/2
	for i := 0; i < n; i++ {
		phase := 2 * math.Pi * float64(i) / float64(n)
		x := int(cx + 0.35*float64(width)*math.Cos(phase))
		y := int(cy + 0.30*float64(height)*math.Sin(phase))
		half := int(15 + 45*(1+math.Sin(2*phase))/2)

		mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
		gocv.Rectangle(&mat, image.Rect(x-half, y-half, x+half, y+half), TargetColor, -1)
		frames = append(frames, &mat)
	}
	return frames
}

// NewSyntheticCamera returns an open, looping MockCamera playing
// SyntheticFrames. Closing the camera releases the frames.
func NewSyntheticCamera(width, height, n int) *MockCamera {
	c := NewMockCamera(SyntheticFrames(width, height, n), true)
	c.owned = true
	c.running = true
	return c
}
