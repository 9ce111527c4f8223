package vision

import (
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

var green = color.RGBA{R: 0, G: 255, B: 0, A: 0}

// newFrame returns a black 640x480 BGR frame with filled green rectangles.
func newFrame(t *testing.T, rects ...image.Rectangle) gocv.Mat {
	t.Helper()
	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	for _, r := range rects {
		gocv.Rectangle(&frame, r, green, -1)
	}
	return frame
}

func TestColorRange_Bounds(t *testing.T) {
	r := ColorRange{HMin: 1, HMax: 2, SMin: 3, SMax: 4, VMin: 5, VMax: 6}

	lower := r.Lower()
	if lower.Val1 != 1 || lower.Val2 != 3 || lower.Val3 != 5 {
		t.Errorf("Lower() = %+v, want (1, 3, 5)", lower)
	}

	upper := r.Upper()
	if upper.Val1 != 2 || upper.Val2 != 4 || upper.Val3 != 6 {
		t.Errorf("Upper() = %+v, want (2, 4, 6)", upper)
	}
}

func TestDetect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	params := Params{Range: GreenCube, MinArea: 300}

	tests := []struct {
		name         string
		rects        []image.Rectangle
		wantNil      bool
		wantCentroid image.Point
	}{
		{
			name:    "empty frame",
			wantNil: true,
		},
		{
			name:         "single block",
			rects:        []image.Rectangle{image.Rect(100, 100, 200, 180)},
			wantCentroid: image.Point{X: 150, Y: 140},
		},
		{
			name:    "block below minimum area",
			rects:   []image.Rectangle{image.Rect(10, 10, 20, 20)},
			wantNil: true,
		},
		{
			name: "largest block wins",
			rects: []image.Rectangle{
				image.Rect(20, 20, 80, 80),
				image.Rect(400, 300, 560, 420),
			},
			wantCentroid: image.Point{X: 480, Y: 360},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := newFrame(t, tt.rects...)
			defer frame.Close()

			got := Detect(frame, params)

			if tt.wantNil {
				if got != nil {
					t.Fatalf("Detect() = %+v, want nil", got)
				}
				return
			}

			if got == nil {
				t.Fatal("Detect() = nil, want a target")
			}
			if abs(got.Centroid.X-tt.wantCentroid.X) > 1 || abs(got.Centroid.Y-tt.wantCentroid.Y) > 1 {
				t.Errorf("centroid = %v, want %v (±1)", got.Centroid, tt.wantCentroid)
			}
			if got.Area <= params.MinArea {
				t.Errorf("area = %f, want > %f", got.Area, params.MinArea)
			}
		})
	}
}

func TestDetect_OutOfRangeColor(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()
	gocv.Rectangle(&frame, image.Rect(100, 100, 300, 300), color.RGBA{R: 255, G: 0, B: 0, A: 0}, -1)

	if got := Detect(frame, Params{Range: GreenCube, MinArea: 300}); got != nil {
		t.Errorf("red block detected as green target: %+v", got)
	}
}

func TestDetect_SpeckleRemoved(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	// A thin line does not survive erosion.
	frame := newFrame(t, image.Rect(0, 240, 640, 241))
	defer frame.Close()

	if got := Detect(frame, Params{Range: GreenCube, MinArea: 0}); got != nil {
		t.Errorf("speckle detected as target: %+v", got)
	}
}

func TestDetect_WithBlur(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := newFrame(t, image.Rect(200, 150, 320, 270))
	defer frame.Close()

	got := Detect(frame, Params{Range: GreenCube, MinArea: 300, Blur: 14})
	if got == nil {
		t.Fatal("Detect() = nil with blur enabled")
	}
	if abs(got.Centroid.X-260) > 3 || abs(got.Centroid.Y-210) > 3 {
		t.Errorf("centroid = %v, want near (260, 210)", got.Centroid)
	}
}

func TestDetect_EmptyMat(t *testing.T) {
	frame := gocv.NewMat()
	defer frame.Close()

	if got := Detect(frame, Params{Range: GreenCube}); got != nil {
		t.Errorf("Detect(empty) = %+v, want nil", got)
	}
}

func TestResize(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := gocv.NewMatWithSize(720, 960, gocv.MatTypeCV8UC3)
	defer frame.Close()

	Resize(&frame, 640, 480)

	if frame.Cols() != 640 || frame.Rows() != 480 {
		t.Errorf("size = %dx%d, want 640x480", frame.Cols(), frame.Rows())
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
