package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"unicode"
	"unicode/utf8"

	"github.com/ayusman/tellopilot/internal/control"
)

// Submitter accepts operator events for the control loop.
type Submitter interface {
	Submit(ev control.Event) bool
}

// EventRequest is the wire form of an operator event, e.g.
// {"kind":"press","key":"w"} or {"kind":"takeoff"}.
type EventRequest struct {
	Kind string `json:"kind"`
	Key  string `json:"key,omitempty"`
}

// ParseEvent validates req and converts it to a control.Event from source.
func ParseEvent(req EventRequest, source string) (control.Event, error) {
	kind, err := control.ParseEventKind(req.Kind)
	if err != nil {
		return control.Event{}, err
	}

	ev := control.Event{Kind: kind, Source: source}
	if kind != control.KeyPress && kind != control.KeyRelease {
		return ev, nil
	}

	if utf8.RuneCountInString(req.Key) != 1 {
		return control.Event{}, fmt.Errorf("key must be a single character, got %q", req.Key)
	}
	key, _ := utf8.DecodeRuneInString(req.Key)
	key = unicode.ToLower(key)
	if !control.IsKnownKey(key) {
		return control.Event{}, fmt.Errorf("unbound key %q", req.Key)
	}
	ev.Key = key
	return ev, nil
}

// EventHandler accepts operator events over HTTP.
type EventHandler struct {
	pilot Submitter
}

// NewEventHandler creates a new EventHandler feeding p.
func NewEventHandler(p Submitter) *EventHandler {
	return &EventHandler{pilot: p}
}

// ServeHTTP handles POST /api/events.
func (h *EventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ev, err := ParseEvent(req, control.SourceWeb)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !h.pilot.Submit(ev) {
		writeError(w, http.StatusServiceUnavailable, "Event queue full")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
