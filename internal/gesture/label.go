// Package gesture classifies hand landmarks into flight commands and
// debounces the fist gesture used to toggle takeoff and landing.
package gesture

// Label is a discrete hand gesture recognized from one frame.
type Label int

const (
	None Label = iota
	Fist
	ThumbOnly
	PinkyUp
	Horns
	CWPoint
	OneFinger
	TwoFingers
	ThreeFingers
	FourFingers
	FourFingersWithThumb
)

var labelNames = [...]string{
	None:                 "none",
	Fist:                 "fist",
	ThumbOnly:            "thumb_only",
	PinkyUp:              "pinky_up",
	Horns:                "horns",
	CWPoint:              "cw_point",
	OneFinger:            "one_finger",
	TwoFingers:           "two_fingers",
	ThreeFingers:         "three_fingers",
	FourFingers:          "four_fingers",
	FourFingersWithThumb: "four_fingers_with_thumb",
}

// String returns the snake_case name of the label.
func (l Label) String() string {
	if l < 0 || int(l) >= len(labelNames) {
		return "unknown"
	}
	return labelNames[l]
}

// MarshalText implements encoding.TextMarshaler so labels serialize by name.
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}
