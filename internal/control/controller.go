package control

import (
	"time"
	"unicode"

	"github.com/ayusman/tellopilot/internal/detector"
	"github.com/ayusman/tellopilot/internal/gesture"
	"github.com/ayusman/tellopilot/internal/vision"
)

// Params are the live-adjustable controller settings.
type Params struct {
	// Speed is the magnitude used by every bang-bang decision.
	Speed int
	// SpeedLimit clamps every axis of the final command.
	SpeedLimit int
	Geometry   Geometry
	Area       AreaBounds
	// Tracking enables the color-target axis controllers.
	Tracking bool
	// Gestures enables gesture classification.
	Gestures bool
}

// Input is everything one cycle observes.
type Input struct {
	Now       time.Time
	Target    *vision.Target
	Hand      *detector.HandLandmarks
	Telemetry Telemetry
	Events    []Event
}

// ActionKind is a transport action other than a velocity command.
type ActionKind int

const (
	ActionTakeOff ActionKind = iota
	ActionLand
)

func (k ActionKind) String() string {
	if k == ActionLand {
		return "land"
	}
	return "takeoff"
}

// MarshalText implements encoding.TextMarshaler.
func (k ActionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Action is a takeoff or landing the transport must perform this cycle,
// with the source that caused it.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Reason string     `json:"reason"`
}

// Output is the result of one cycle.
type Output struct {
	Command VelocityCommand `json:"command"`
	// Actions run before Command is sent.
	Actions []Action      `json:"actions,omitempty"`
	State   FlightState   `json:"state"`
	Label   gesture.Label `json:"label"`
	// Warning is the visible warning, nil when none.
	Warning *Warning `json:"warning,omitempty"`
	// Raised lists warnings that became visible this cycle.
	Raised []Warning `json:"-"`
	Quit   bool      `json:"-"`
}

// Controller is the explicit context of the control loop. Step is the only
// mutator and must not be called concurrently.
type Controller struct {
	params     Params
	flight     FlightMachine
	held       [NumAxes]int
	classifier *gesture.Classifier
	monitor    *Monitor
}

// NewController creates a grounded controller.
func NewController(p Params, limits SafetyLimits, fistHold time.Duration) *Controller {
	return &Controller{
		params:     p,
		classifier: gesture.NewClassifier(fistHold),
		monitor:    NewMonitor(limits),
	}
}

// Params returns the current parameters.
func (c *Controller) Params() Params {
	return c.params
}

// SetParams replaces the parameters from the next Step on.
func (c *Controller) SetParams(p Params) {
	c.params = p
}

// State returns the flight state.
func (c *Controller) State() FlightState {
	return c.flight.State()
}

// Monitor returns the safety monitor.
func (c *Controller) Monitor() *Monitor {
	return c.monitor
}

// Classifier returns the gesture classifier.
func (c *Controller) Classifier() *gesture.Classifier {
	return c.classifier
}

// ForceGrounded marks the vehicle grounded without emitting an action.
// It is used by teardown after the transport has landed and when a
// takeoff command fails.
func (c *Controller) ForceGrounded() {
	c.flight.Land()
}

// ForceAirborne marks the vehicle airborne without emitting an action.
// It is used when a land command fails, so teardown lands again.
func (c *Controller) ForceAirborne() {
	c.flight.TakeOff()
}

type trigger struct {
	kind   EventKind
	source string
}

// Step runs one control cycle.
//
// Order: operator events, gesture classification, forced landing on
// critical battery, takeoff/land triggers, axis proposals, arbitration and
// the altitude ceiling. A cycle that takes off emits the zero command.
func (c *Controller) Step(in Input) Output {
	out := Output{}

	triggers := c.applyEvents(in.Events, &out)

	if c.params.Gestures {
		res := c.classifier.Observe(in.Hand, in.Now)
		out.Label = res.Label
		if res.FistConfirmed {
			kind := TakeOffTrigger
			if c.flight.State() == Airborne {
				kind = LandTrigger
			}
			triggers = append(triggers, trigger{kind: kind, source: SourceGesture})
		}
	} else {
		c.classifier.Reset()
	}

	tookOff := false
	if c.monitor.BatteryCritical(c.flight.State(), in.Telemetry) {
		c.flight.Land()
		out.Actions = append(out.Actions, Action{Kind: ActionLand, Reason: SourceSafety})
		c.warn(&out, MsgCriticalBattery, in.Now)
	} else {
		for _, t := range triggers {
			switch t.kind {
			case TakeOffTrigger:
				if c.flight.State() != Grounded {
					continue
				}
				if !c.monitor.TakeoffAllowed(in.Telemetry) {
					c.warn(&out, MsgTakeoffBattery, in.Now)
					continue
				}
				c.flight.TakeOff()
				tookOff = true
				out.Actions = append(out.Actions, Action{Kind: ActionTakeOff, Reason: t.source})
			case LandTrigger:
				if c.flight.Land() {
					tookOff = false
					out.Actions = append(out.Actions, Action{Kind: ActionLand, Reason: t.source})
				}
			}
		}
	}

	out.State = c.flight.State()
	if out.State == Airborne && !tookOff {
		out.Command = c.command(in, out.Label, &out)
	}

	if w, ok := c.monitor.Current(in.Now); ok {
		out.Warning = &w
	}
	return out
}

// applyEvents updates held keys and collects triggers in arrival order.
func (c *Controller) applyEvents(events []Event, out *Output) []trigger {
	var triggers []trigger
	for _, ev := range events {
		switch ev.Kind {
		case KeyPress:
			key := unicode.ToLower(ev.Key)
			if mk, ok := movementKeys[key]; ok {
				c.held[mk.axis] = mk.sign
				continue
			}
			if kind, ok := triggerKeys[key]; ok {
				if kind == QuitTrigger {
					out.Quit = true
					continue
				}
				triggers = append(triggers, trigger{kind: kind, source: ev.Source})
			}
		case KeyRelease:
			if mk, ok := movementKeys[unicode.ToLower(ev.Key)]; ok {
				c.held[mk.axis] = 0
			}
		case TakeOffTrigger, LandTrigger:
			triggers = append(triggers, trigger{kind: ev.Kind, source: ev.Source})
		case QuitTrigger:
			out.Quit = true
		}
	}
	return triggers
}

// command builds the airborne velocity command.
func (c *Controller) command(in Input, label gesture.Label, out *Output) VelocityCommand {
	p := c.params

	var manual, fromGesture, tracking Proposal
	for a := Axis(0); a < NumAxes; a++ {
		if c.held[a] != 0 {
			manual.Put(a, c.held[a]*p.Speed)
		}
	}

	if axis, v, ok := gestureVelocity(label, p.Speed); ok {
		fromGesture.Put(axis, v)
	}

	if p.Tracking {
		if !manual.Set[AxisYaw] {
			tracking.Put(AxisYaw, YawVelocity(in.Target, p.Geometry, p.Speed))
		}
		if !manual.Set[AxisUD] {
			tracking.Put(AxisUD, VerticalVelocity(in.Target, p.Geometry, p.Speed))
		}
		if !manual.Set[AxisFB] {
			tracking.Put(AxisFB, ForwardVelocity(in.Target, p.Area, p.Speed))
		}
	}

	cmd := Arbitrate(Airborne, manual, fromGesture, tracking, p.SpeedLimit)

	if cmd.UD > 0 && !c.monitor.RiseAllowed(in.Telemetry) {
		cmd.UD = 0
		c.warn(out, MsgAltitudeCeiling, in.Now)
	}
	return cmd
}

func (c *Controller) warn(out *Output, msg string, now time.Time) {
	if c.monitor.Raise(msg, now) {
		out.Raised = append(out.Raised, Warning{Message: msg, At: now})
	}
}

// gestureVelocity maps a gesture to the axis and velocity it drives.
func gestureVelocity(l gesture.Label, speed int) (Axis, int, bool) {
	switch l {
	case gesture.ThumbOnly:
		return AxisUD, speed / 2, true
	case gesture.PinkyUp:
		return AxisUD, speed, true
	case gesture.Horns:
		return AxisUD, -speed, true
	case gesture.CWPoint:
		return AxisYaw, speed, true
	case gesture.OneFinger:
		return AxisFB, speed, true
	case gesture.TwoFingers:
		return AxisFB, -speed, true
	case gesture.ThreeFingers:
		return AxisLR, speed, true
	case gesture.FourFingers:
		return AxisLR, -speed, true
	case gesture.FourFingersWithThumb:
		return AxisYaw, -speed, true
	}
	return 0, 0, false
}
