package control

// Proposal is one source's per-axis velocity request. Axes that are not
// set leave the decision to lower-priority sources.
type Proposal struct {
	Vel [NumAxes]int
	Set [NumAxes]bool
}

// Put sets the velocity for axis a.
func (p *Proposal) Put(a Axis, v int) {
	p.Vel[a] = v
	p.Set[a] = true
}

// Get returns the velocity for axis a and whether it was set.
func (p Proposal) Get(a Axis) (int, bool) {
	return p.Vel[a], p.Set[a]
}

// Arbitrate merges the proposals with priority manual > gesture > tracking.
// An axis no source sets is zero. While grounded the result is always the
// zero command. Every axis is clamped to [-limit, limit].
func Arbitrate(state FlightState, manual, gesture, tracking Proposal, limit int) VelocityCommand {
	var cmd VelocityCommand
	if state == Grounded {
		return cmd
	}

	for a := Axis(0); a < NumAxes; a++ {
		for _, p := range [...]Proposal{manual, gesture, tracking} {
			if v, ok := p.Get(a); ok {
				cmd = cmd.With(a, v)
				break
			}
		}
	}

	return cmd.Clamp(limit)
}
