// Package control turns perception results and operator input into one
// velocity command per cycle. It holds the axis controllers, the command
// arbiter, the safety monitor and the flight-mode state machine, tied
// together by Controller.
package control

// Axis identifies one of the four velocity channels.
type Axis int

const (
	AxisLR Axis = iota
	AxisFB
	AxisUD
	AxisYaw
	NumAxes
)

var axisNames = [...]string{"lr", "fb", "ud", "yaw"}

func (a Axis) String() string {
	if a < 0 || a >= NumAxes {
		return "unknown"
	}
	return axisNames[a]
}

// VelocityCommand is the 4-axis command sent to the vehicle.
// Positive values mean right, forward, up and clockwise.
type VelocityCommand struct {
	LR  int `json:"lr"`
	FB  int `json:"fb"`
	UD  int `json:"ud"`
	Yaw int `json:"yaw"`
}

// Get returns the velocity on axis a.
func (v VelocityCommand) Get(a Axis) int {
	switch a {
	case AxisLR:
		return v.LR
	case AxisFB:
		return v.FB
	case AxisUD:
		return v.UD
	case AxisYaw:
		return v.Yaw
	}
	return 0
}

// With returns a copy of v with axis a set to val.
func (v VelocityCommand) With(a Axis, val int) VelocityCommand {
	switch a {
	case AxisLR:
		v.LR = val
	case AxisFB:
		v.FB = val
	case AxisUD:
		v.UD = val
	case AxisYaw:
		v.Yaw = val
	}
	return v
}

// IsZero reports whether every axis is zero.
func (v VelocityCommand) IsZero() bool {
	return v == VelocityCommand{}
}

// Clamp limits every axis to [-limit, limit].
func (v VelocityCommand) Clamp(limit int) VelocityCommand {
	return VelocityCommand{
		LR:  clamp(v.LR, limit),
		FB:  clamp(v.FB, limit),
		UD:  clamp(v.UD, limit),
		Yaw: clamp(v.Yaw, limit),
	}
}

func clamp(v, limit int) int {
	if limit < 0 {
		limit = -limit
	}
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

// Telemetry is the vehicle status read once per cycle.
type Telemetry struct {
	BatteryPct int `json:"battery_pct"`
	AltitudeCM int `json:"altitude_cm"`
}

// FlightState is the airborne/grounded mode of the vehicle.
type FlightState int

const (
	Grounded FlightState = iota
	Airborne
)

func (s FlightState) String() string {
	if s == Airborne {
		return "airborne"
	}
	return "grounded"
}

// MarshalText implements encoding.TextMarshaler.
func (s FlightState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
