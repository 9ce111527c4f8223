package control

import (
	"image"
	"testing"

	"github.com/ayusman/tellopilot/internal/vision"
)

var testGeometry = NewGeometry(640, 480, 0.15, 0.15)

func target(x, y int, area float64) *vision.Target {
	return &vision.Target{Centroid: image.Point{X: x, Y: y}, Area: area}
}

func TestNewGeometry(t *testing.T) {
	want := Geometry{CenterX: 320, CenterY: 240, ThresholdX: 96, ThresholdY: 72}
	if testGeometry != want {
		t.Errorf("NewGeometry() = %+v, want %+v", testGeometry, want)
	}
}

func TestYawVelocity(t *testing.T) {
	tests := []struct {
		name   string
		target *vision.Target
		want   int
	}{
		{"no target", nil, 0},
		{"center", target(320, 240, 5000), 0},
		{"right boundary", target(416, 240, 5000), 0},
		{"just past right", target(417, 240, 5000), 50},
		{"left boundary", target(224, 240, 5000), 0},
		{"just past left", target(223, 240, 5000), -50},
		{"far right", target(639, 0, 5000), 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := YawVelocity(tt.target, testGeometry, 50); got != tt.want {
				t.Errorf("YawVelocity() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestYawVelocity_Oscillation(t *testing.T) {
	// Crossing the boundary back and forth gives the same answer each time.
	for i := 0; i < 3; i++ {
		if got := YawVelocity(target(417, 240, 0), testGeometry, 50); got != 50 {
			t.Fatalf("pass %d outside: got %d, want 50", i, got)
		}
		if got := YawVelocity(target(416, 240, 0), testGeometry, 50); got != 0 {
			t.Fatalf("pass %d inside: got %d, want 0", i, got)
		}
	}
}

func TestVerticalVelocity(t *testing.T) {
	tests := []struct {
		name   string
		target *vision.Target
		want   int
	}{
		{"no target", nil, 0},
		{"center", target(320, 240, 5000), 0},
		{"upper boundary", target(320, 168, 5000), 0},
		{"above", target(320, 167, 5000), 50},
		{"lower boundary", target(320, 312, 5000), 0},
		{"below", target(320, 313, 5000), -50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerticalVelocity(tt.target, testGeometry, 50); got != tt.want {
				t.Errorf("VerticalVelocity() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestForwardVelocity(t *testing.T) {
	bounds := AreaBounds{TooSmall: 1500, TooLarge: 20000}

	tests := []struct {
		name   string
		target *vision.Target
		want   int
	}{
		{"no target", nil, 0},
		{"too small", target(320, 240, 1000), 50},
		{"at lower bound", target(320, 240, 1500), 0},
		{"within bounds", target(320, 240, 8000), 0},
		{"at upper bound", target(320, 240, 20000), 0},
		{"too large", target(320, 240, 25000), -50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ForwardVelocity(tt.target, bounds, 50); got != tt.want {
				t.Errorf("ForwardVelocity() = %d, want %d", got, tt.want)
			}
		})
	}
}
