// Package drone is the actuation and telemetry transport of the pilot.
package drone

import (
	"errors"

	"github.com/ayusman/tellopilot/internal/control"
)

// ErrNotConnected is returned when the vehicle has not connected in time.
var ErrNotConnected = errors.New("drone not connected")

// Drone accepts takeoff, landing and velocity commands and reports telemetry.
type Drone interface {
	TakeOff() error
	Land() error
	// Move sets the 4-axis velocity. Values are in [-100, 100].
	Move(cmd control.VelocityCommand) error
	Telemetry() control.Telemetry
	Close() error
}
