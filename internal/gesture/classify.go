package gesture

import "github.com/ayusman/tellopilot/internal/detector"

var fingerTips = [4]int{detector.IndexTip, detector.MiddleTip, detector.RingTip, detector.PinkyTip}

// fingerUp reports whether the tip is above the joint two landmarks back.
func fingerUp(h *detector.HandLandmarks, tip int) bool {
	return h.Points[tip].Y < h.Points[tip-2].Y
}

// fingerDown reports whether the tip is below the joint two landmarks back.
// A finger level with its joint is neither up nor down.
func fingerDown(h *detector.HandLandmarks, tip int) bool {
	return h.Points[tip].Y > h.Points[tip-2].Y
}

// thumbExtended compares the thumb tip with its IP joint horizontally.
// Landmarks are expected in mirrored image coordinates.
func thumbExtended(h *detector.HandLandmarks) bool {
	return h.Points[detector.ThumbTip].X < h.Points[detector.ThumbIP].X
}

// countUp counts raised fingers, excluding the thumb.
func countUp(h *detector.HandLandmarks) int {
	n := 0
	for _, tip := range fingerTips {
		if fingerUp(h, tip) {
			n++
		}
	}
	return n
}

// Classify maps one hand to a Label. Rules are evaluated in order and the
// first match wins. A nil hand yields None.
func Classify(h *detector.HandLandmarks) Label {
	if h == nil {
		return None
	}

	allDown := true
	for _, tip := range fingerTips {
		if !fingerDown(h, tip) {
			allDown = false
			break
		}
	}
	if allDown {
		return Fist
	}

	thumb := thumbExtended(h)
	count := countUp(h)
	index := fingerUp(h, detector.IndexTip)
	pinky := fingerUp(h, detector.PinkyTip)

	switch {
	case thumb && count == 0:
		return ThumbOnly
	case count == 1 && pinky:
		return PinkyUp
	case index && pinky &&
		fingerDown(h, detector.MiddleTip) && fingerDown(h, detector.RingTip):
		return Horns
	case thumb && count == 1 && index:
		return CWPoint
	}

	switch count {
	case 1:
		return OneFinger
	case 2:
		return TwoFingers
	case 3:
		return ThreeFingers
	case 4:
		if thumb {
			return FourFingersWithThumb
		}
		return FourFingers
	}
	return None
}
