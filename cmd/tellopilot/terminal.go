package main

import (
	"bufio"
	"io"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/ayusman/tellopilot/internal/control"
)

// submitter accepts operator events for the control loop.
type submitter interface {
	Submit(ev control.Event) bool
}

// terminal turns lines typed on stdin into key events. A line terminal
// cannot see key releases, so a movement key toggles its hold: "w" starts
// moving forward and the next "w" stops. "." releases every held key.
// Trigger keys (t, l, m) fire once.
type terminal struct {
	pilot  submitter
	logger *zap.SugaredLogger
	held   map[rune]bool
}

func newTerminal(p submitter, logger *zap.SugaredLogger) *terminal {
	return &terminal{pilot: p, logger: logger, held: make(map[rune]bool)}
}

// run reads r until EOF.
func (t *terminal) run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		for _, ev := range t.events(scanner.Text()) {
			if !t.pilot.Submit(ev) {
				t.logger.Warnw("event queue full, dropped key", "key", string(ev.Key))
			}
		}
	}
	return scanner.Err()
}

// events converts one input line to key events.
func (t *terminal) events(line string) []control.Event {
	var out []control.Event
	for _, key := range strings.ToLower(line) {
		switch {
		case unicode.IsSpace(key):
		case key == '.':
			out = append(out, t.releaseAll()...)
		case control.IsMovementKey(key):
			if t.held[key] {
				delete(t.held, key)
				out = append(out, control.Release(key))
			} else {
				t.held[key] = true
				out = append(out, control.Press(key))
			}
		case control.IsKnownKey(key):
			out = append(out, control.Press(key), control.Release(key))
		default:
			t.logger.Infow("unbound key", "key", string(key))
		}
	}
	return out
}

func (t *terminal) releaseAll() []control.Event {
	keys := make([]rune, 0, len(t.held))
	for key := range t.held {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]control.Event, 0, len(keys))
	for _, key := range keys {
		delete(t.held, key)
		out = append(out, control.Release(key))
	}
	return out
}
