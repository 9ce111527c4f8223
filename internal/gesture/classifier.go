package gesture

import (
	"time"

	"github.com/ayusman/tellopilot/internal/detector"
)

// DefaultFistHold is how long a fist must be held before it is confirmed.
const DefaultFistHold = time.Second

// FistHold is the debounce state of the fist gesture.
// A zero Start means no fist is being held.
type FistHold struct {
	Start     time.Time
	Confirmed bool
}

// Result is the outcome of observing one frame.
type Result struct {
	Label Label
	// FistConfirmed is true on the single observation where a held fist
	// crosses the hold duration.
	FistConfirmed bool
}

// Classifier labels hands frame by frame and tracks the fist hold.
// It is not safe for concurrent use.
type Classifier struct {
	hold  time.Duration
	state FistHold
}

// NewClassifier creates a Classifier with the given fist hold duration.
// Non-positive durations use DefaultFistHold.
func NewClassifier(hold time.Duration) *Classifier {
	c := &Classifier{}
	c.SetHold(hold)
	return c
}

// SetHold changes the fist hold duration.
func (c *Classifier) SetHold(hold time.Duration) {
	if hold <= 0 {
		hold = DefaultFistHold
	}
	c.hold = hold
}

// Hold returns the fist hold duration.
func (c *Classifier) Hold() time.Duration {
	return c.hold
}

// State returns a copy of the fist hold state.
func (c *Classifier) State() FistHold {
	return c.state
}

// Reset clears the fist hold state.
func (c *Classifier) Reset() {
	c.state = FistHold{}
}

// Observe classifies hand (nil when no hand is visible) at time now.
//
// The first fist starts the hold timer. Once the fist has been held for at
// least the hold duration the result carries a single FistConfirmed edge;
// further fists are ignored until the hand shows anything other than a fist.
func (c *Classifier) Observe(hand *detector.HandLandmarks, now time.Time) Result {
	label := Classify(hand)
	if label != Fist {
		c.Reset()
		return Result{Label: label}
	}

	if c.state.Start.IsZero() {
		c.state = FistHold{Start: now}
		return Result{Label: Fist}
	}

	if !c.state.Confirmed && now.Sub(c.state.Start) >= c.hold {
		c.state.Confirmed = true
		return Result{Label: Fist, FistConfirmed: true}
	}

	return Result{Label: Fist}
}
