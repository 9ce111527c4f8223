package control

import (
	"testing"
	"time"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestMonitor_Rules(t *testing.T) {
	m := NewMonitor(DefaultSafetyLimits())

	tests := []struct {
		name          string
		state         FlightState
		tel           Telemetry
		wantCritical  bool
		wantTakeoff   bool
		wantRiseAllow bool
	}{
		{"healthy grounded", Grounded, Telemetry{BatteryPct: 80, AltitudeCM: 0}, false, true, true},
		{"low battery grounded", Grounded, Telemetry{BatteryPct: 5}, false, false, true},
		{"takeoff floor", Grounded, Telemetry{BatteryPct: 15}, false, false, true},
		{"just above takeoff floor", Grounded, Telemetry{BatteryPct: 16}, false, true, true},
		{"landing floor airborne", Airborne, Telemetry{BatteryPct: 10, AltitudeCM: 100}, true, false, true},
		{"above landing floor", Airborne, Telemetry{BatteryPct: 11, AltitudeCM: 100}, false, false, true},
		{"at ceiling", Airborne, Telemetry{BatteryPct: 50, AltitudeCM: 300}, false, true, false},
		{"just below ceiling", Airborne, Telemetry{BatteryPct: 50, AltitudeCM: 299}, false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.BatteryCritical(tt.state, tt.tel); got != tt.wantCritical {
				t.Errorf("BatteryCritical() = %v, want %v", got, tt.wantCritical)
			}
			if got := m.TakeoffAllowed(tt.tel); got != tt.wantTakeoff {
				t.Errorf("TakeoffAllowed() = %v, want %v", got, tt.wantTakeoff)
			}
			if got := m.RiseAllowed(tt.tel); got != tt.wantRiseAllow {
				t.Errorf("RiseAllowed() = %v, want %v", got, tt.wantRiseAllow)
			}
		})
	}
}

func TestMonitor_Warning(t *testing.T) {
	m := NewMonitor(DefaultSafetyLimits())

	if _, ok := m.Current(epoch); ok {
		t.Fatal("Current() on fresh monitor reported a warning")
	}

	if !m.Raise(MsgAltitudeCeiling, epoch) {
		t.Error("first Raise() = false, want new warning")
	}
	if m.Raise(MsgAltitudeCeiling, epoch.Add(time.Second)) {
		t.Error("repeated visible Raise() = true, want refresh only")
	}

	w, ok := m.Current(epoch.Add(3 * time.Second))
	if !ok || w.Message != MsgAltitudeCeiling {
		t.Errorf("Current() = %+v, %v; want refreshed warning visible", w, ok)
	}
	if _, ok := m.Current(epoch.Add(4 * time.Second)); ok {
		t.Error("Current() after duration reported a warning")
	}

	if !m.Raise(MsgTakeoffBattery, epoch.Add(4*time.Second)) {
		t.Error("Raise() after expiry = false, want new warning")
	}
	if !m.Raise(MsgCriticalBattery, epoch.Add(5*time.Second)) {
		t.Error("Raise() with a different message = false, want new warning")
	}
	w, _ = m.Current(epoch.Add(5 * time.Second))
	if w.Message != MsgCriticalBattery {
		t.Errorf("Current() message = %q, want only the most recent", w.Message)
	}
}
