package drone

import (
	"sync"

	"github.com/ayusman/tellopilot/internal/control"
)

// Call is one recorded command.
type Call struct {
	Op  string
	Cmd control.VelocityCommand
}

// Sim is an in-memory vehicle. It records every command, integrates
// vertical speed into altitude, and lets tests inject telemetry and errors.
type Sim struct {
	mu        sync.Mutex
	calls     []Call
	telemetry control.Telemetry
	flying    bool
	closed    bool

	// TakeOffAltitudeCM is the altitude reached by TakeOff.
	TakeOffAltitudeCM int
	// ClimbPerMove converts UD velocity to centimeters per Move call.
	// Zero freezes altitude.
	ClimbPerMove float64
	// DrainEvery lowers the battery by one percent every DrainEvery Move
	// calls while flying. Zero disables the drain.
	DrainEvery int
	moves      int

	TakeOffErr error
	LandErr    error
	MoveErr    error
}

// NewSim creates a grounded Sim with the given battery percentage.
func NewSim(batteryPct int) *Sim {
	return &Sim{
		telemetry:         control.Telemetry{BatteryPct: batteryPct},
		TakeOffAltitudeCM: 80,
	}
}

func (s *Sim) TakeOff() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: "takeoff"})
	if s.TakeOffErr != nil {
		return s.TakeOffErr
	}
	s.flying = true
	s.telemetry.AltitudeCM = s.TakeOffAltitudeCM
	return nil
}

func (s *Sim) Land() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: "land"})
	if s.LandErr != nil {
		return s.LandErr
	}
	s.flying = false
	s.telemetry.AltitudeCM = 0
	return nil
}

func (s *Sim) Move(cmd control.VelocityCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: "move", Cmd: cmd})
	if s.MoveErr != nil {
		return s.MoveErr
	}
	if !s.flying {
		return nil
	}

	if s.ClimbPerMove != 0 {
		alt := s.telemetry.AltitudeCM + int(float64(cmd.UD)*s.ClimbPerMove)
		if alt < 0 {
			alt = 0
		}
		s.telemetry.AltitudeCM = alt
	}
	s.moves++
	if s.DrainEvery > 0 && s.moves%s.DrainEvery == 0 && s.telemetry.BatteryPct > 0 {
		s.telemetry.BatteryPct--
	}
	return nil
}

func (s *Sim) Telemetry() control.Telemetry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.telemetry
}

// SetTelemetry overrides the reported telemetry.
func (s *Sim) SetTelemetry(t control.Telemetry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry = t
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: "close"})
	s.closed = true
	return nil
}

// Calls returns a copy of the recorded commands.
func (s *Sim) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Count returns how many times op was called.
func (s *Sim) Count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Flying reports whether the last successful command left the vehicle airborne.
func (s *Sim) Flying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flying
}

// Closed reports whether Close was called.
func (s *Sim) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
