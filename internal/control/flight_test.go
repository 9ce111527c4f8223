package control

import "testing"

func TestFlightMachine(t *testing.T) {
	var f FlightMachine

	if f.State() != Grounded {
		t.Fatalf("initial state = %v, want grounded", f.State())
	}
	if f.Land() {
		t.Error("Land() while grounded = true, want no-op")
	}
	if !f.TakeOff() {
		t.Error("TakeOff() while grounded = false, want transition")
	}
	if f.State() != Airborne {
		t.Errorf("state = %v, want airborne", f.State())
	}
	if f.TakeOff() {
		t.Error("TakeOff() while airborne = true, want no-op")
	}
	if !f.Land() {
		t.Error("Land() while airborne = false, want transition")
	}
	if f.State() != Grounded {
		t.Errorf("state = %v, want grounded", f.State())
	}
}

func TestFlightState_MarshalText(t *testing.T) {
	b, err := Airborne.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error = %v", err)
	}
	if string(b) != "airborne" {
		t.Errorf("MarshalText() = %q, want airborne", b)
	}
}
