package control

// FlightMachine tracks whether the vehicle is grounded or airborne.
// The zero value is grounded.
type FlightMachine struct {
	state FlightState
}

// State returns the current flight state.
func (f *FlightMachine) State() FlightState {
	return f.state
}

// TakeOff moves to Airborne. It returns false when already airborne.
func (f *FlightMachine) TakeOff() bool {
	if f.state == Airborne {
		return false
	}
	f.state = Airborne
	return true
}

// Land moves to Grounded. It returns false when already grounded.
func (f *FlightMachine) Land() bool {
	if f.state == Grounded {
		return false
	}
	f.state = Grounded
	return true
}
