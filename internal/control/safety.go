package control

import "time"

// Warning messages raised by the safety monitor.
const (
	MsgCriticalBattery = "critical battery, landing"
	MsgTakeoffBattery  = "battery too low to take off"
	MsgAltitudeCeiling = "altitude ceiling reached"
)

// SafetyLimits are the interlock thresholds.
type SafetyLimits struct {
	// LandBattery forces a landing while airborne at or below this percentage.
	LandBattery int
	// TakeoffBattery denies takeoff at or below this percentage.
	TakeoffBattery int
	// MaxAltitudeCM denies rising at or above this altitude.
	MaxAltitudeCM int
	// WarningDuration is how long a warning stays visible.
	WarningDuration time.Duration
}

// DefaultSafetyLimits returns the stock interlock thresholds.
func DefaultSafetyLimits() SafetyLimits {
	return SafetyLimits{
		LandBattery:     10,
		TakeoffBattery:  15,
		MaxAltitudeCM:   300,
		WarningDuration: 3 * time.Second,
	}
}

// Warning is an operator-visible message and the time it was raised.
type Warning struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Monitor evaluates the interlocks and keeps the single warning slot.
// Only the most recent warning is kept; it expires WarningDuration after
// it was raised and is re-evaluated on every read rather than by a timer.
type Monitor struct {
	limits  SafetyLimits
	warning Warning
}

// NewMonitor creates a Monitor with the given limits.
func NewMonitor(limits SafetyLimits) *Monitor {
	return &Monitor{limits: limits}
}

// Limits returns the active limits.
func (m *Monitor) Limits() SafetyLimits {
	return m.limits
}

// SetLimits replaces the limits. The current warning is kept.
func (m *Monitor) SetLimits(limits SafetyLimits) {
	m.limits = limits
}

// BatteryCritical reports whether an airborne vehicle must land now.
func (m *Monitor) BatteryCritical(state FlightState, t Telemetry) bool {
	return state == Airborne && t.BatteryPct <= m.limits.LandBattery
}

// TakeoffAllowed reports whether the battery permits a takeoff.
func (m *Monitor) TakeoffAllowed(t Telemetry) bool {
	return t.BatteryPct > m.limits.TakeoffBattery
}

// RiseAllowed reports whether the vehicle may climb further.
func (m *Monitor) RiseAllowed(t Telemetry) bool {
	return t.AltitudeCM < m.limits.MaxAltitudeCM
}

// Raise replaces the warning slot with msg at time now. It returns true
// when the warning is new, that is the message differs from the visible
// one or the previous warning has expired.
func (m *Monitor) Raise(msg string, now time.Time) bool {
	_, visible := m.Current(now)
	fresh := !visible || m.warning.Message != msg
	m.warning = Warning{Message: msg, At: now}
	return fresh
}

// Current returns the visible warning, if any, at time now.
func (m *Monitor) Current(now time.Time) (Warning, bool) {
	if m.warning.Message == "" {
		return Warning{}, false
	}
	if now.Sub(m.warning.At) >= m.limits.WarningDuration {
		return Warning{}, false
	}
	return m.warning, true
}
