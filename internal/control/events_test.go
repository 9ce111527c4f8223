package control

import "testing"

func TestParseEventKind(t *testing.T) {
	for _, kind := range []EventKind{KeyPress, KeyRelease, TakeOffTrigger, LandTrigger, QuitTrigger} {
		got, err := ParseEventKind(kind.String())
		if err != nil || got != kind {
			t.Errorf("ParseEventKind(%q) = %v, %v", kind.String(), got, err)
		}
	}
	if _, err := ParseEventKind("hover"); err == nil {
		t.Error("ParseEventKind(hover) error = nil")
	}
	if got := EventKind(99).String(); got != "unknown" {
		t.Errorf("String() = %q, want unknown", got)
	}
}

func TestEvent_IsQuit(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want bool
	}{
		{"quit trigger", Trigger(QuitTrigger, SourceTray), true},
		{"m press", Press('m'), true},
		{"M press", Press('M'), true},
		{"m release", Release('m'), false},
		{"land trigger", Trigger(LandTrigger, SourceWeb), false},
		{"movement key", Press('w'), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ev.IsQuit(); got != tt.want {
				t.Errorf("IsQuit() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKeyBindings(t *testing.T) {
	for _, key := range "wsadrfeq" {
		if !IsKnownKey(key) || !IsMovementKey(key) {
			t.Errorf("%q should be a movement key", key)
		}
	}
	for _, key := range "tlm" {
		if !IsKnownKey(key) || IsMovementKey(key) {
			t.Errorf("%q should be a trigger key", key)
		}
	}
	for _, key := range "xz1 " {
		if IsKnownKey(key) {
			t.Errorf("%q should be unbound", key)
		}
	}
}
