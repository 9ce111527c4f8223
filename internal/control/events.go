package control

import (
	"fmt"
	"unicode"
)

// EventKind classifies operator events.
type EventKind int

const (
	// KeyPress starts holding a key.
	KeyPress EventKind = iota
	// KeyRelease stops holding a key.
	KeyRelease
	// TakeOffTrigger requests a takeoff.
	TakeOffTrigger
	// LandTrigger requests a landing.
	LandTrigger
	// QuitTrigger ends the session.
	QuitTrigger
)

var eventNames = [...]string{"press", "release", "takeoff", "land", "quit"}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[k]
}

// ParseEventKind parses the name returned by EventKind.String.
func ParseEventKind(s string) (EventKind, error) {
	for i, name := range eventNames {
		if name == s {
			return EventKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// Event is an operator input edge. Key is set for KeyPress and KeyRelease.
type Event struct {
	Kind EventKind
	Key  rune
	// Source names where the event came from (keyboard, tray, web).
	Source string
}

// Press returns a KeyPress event for key.
func Press(key rune) Event {
	return Event{Kind: KeyPress, Key: key, Source: SourceKeyboard}
}

// Release returns a KeyRelease event for key.
func Release(key rune) Event {
	return Event{Kind: KeyRelease, Key: key, Source: SourceKeyboard}
}

// Trigger returns a takeoff, land or quit event from source.
func Trigger(kind EventKind, source string) Event {
	return Event{Kind: kind, Source: source}
}

// IsQuit reports whether e ends the session.
func (e Event) IsQuit() bool {
	if e.Kind == QuitTrigger {
		return true
	}
	if e.Kind != KeyPress {
		return false
	}
	kind, ok := triggerKeys[unicode.ToLower(e.Key)]
	return ok && kind == QuitTrigger
}

// Event sources.
const (
	SourceKeyboard = "keyboard"
	SourceTray     = "tray"
	SourceWeb      = "web"
	SourceGesture  = "gesture"
	SourceSafety   = "safety"
)

type axisKey struct {
	axis Axis
	sign int
}

// movementKeys maps held keys to an axis and direction.
var movementKeys = map[rune]axisKey{
	'w': {AxisFB, 1},
	's': {AxisFB, -1},
	'a': {AxisLR, -1},
	'd': {AxisLR, 1},
	'r': {AxisUD, 1},
	'f': {AxisUD, -1},
	'e': {AxisYaw, 1},
	'q': {AxisYaw, -1},
}

// triggerKeys maps keys that fire a trigger on press.
var triggerKeys = map[rune]EventKind{
	't': TakeOffTrigger,
	'l': LandTrigger,
	'm': QuitTrigger,
}

// IsKnownKey reports whether key has a binding.
func IsKnownKey(key rune) bool {
	_, move := movementKeys[key]
	_, trig := triggerKeys[key]
	return move || trig
}

// IsMovementKey reports whether key is held to move along an axis.
func IsMovementKey(key rune) bool {
	_, ok := movementKeys[key]
	return ok
}
