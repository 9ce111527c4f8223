package control

import "github.com/ayusman/tellopilot/internal/vision"

// Geometry is the frame center and the dead-zone half widths, in pixels.
type Geometry struct {
	CenterX    int
	CenterY    int
	ThresholdX int
	ThresholdY int
}

// NewGeometry derives the geometry for a width x height frame with
// thresholds expressed as fractions of the frame size.
func NewGeometry(width, height int, fracX, fracY float64) Geometry {
	return Geometry{
		CenterX:    width / 2,
		CenterY:    height / 2,
		ThresholdX: int(float64(width) * fracX),
		ThresholdY: int(float64(height) * fracY),
	}
}

// AreaBounds are the target areas that trigger forward and backward motion.
type AreaBounds struct {
	TooSmall float64
	TooLarge float64
}

// YawVelocity turns toward a target outside the horizontal dead zone.
// The dead zone includes its boundary.
func YawVelocity(t *vision.Target, g Geometry, speed int) int {
	if t == nil {
		return 0
	}
	switch {
	case t.Centroid.X < g.CenterX-g.ThresholdX:
		return -speed
	case t.Centroid.X > g.CenterX+g.ThresholdX:
		return speed
	}
	return 0
}

// VerticalVelocity rises toward a target above the vertical dead zone and
// descends toward one below it.
func VerticalVelocity(t *vision.Target, g Geometry, speed int) int {
	if t == nil {
		return 0
	}
	switch {
	case t.Centroid.Y < g.CenterY-g.ThresholdY:
		return speed
	case t.Centroid.Y > g.CenterY+g.ThresholdY:
		return -speed
	}
	return 0
}

// ForwardVelocity advances on a target that looks too small and retreats
// from one that looks too large.
func ForwardVelocity(t *vision.Target, b AreaBounds, speed int) int {
	if t == nil {
		return 0
	}
	switch {
	case t.Area < b.TooSmall:
		return speed
	case t.Area > b.TooLarge:
		return -speed
	}
	return 0
}
