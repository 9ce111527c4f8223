package gesture

import (
	"testing"
	"time"

	"github.com/ayusman/tellopilot/internal/detector"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

func TestClassifier_FistHold(t *testing.T) {
	fist := detector.FistLandmarks()
	palm := detector.OpenPalmLandmarks()

	type step struct {
		hand          *detector.HandLandmarks
		ms            int
		wantLabel     Label
		wantConfirmed bool
	}

	tests := []struct {
		name  string
		steps []step
	}{
		{
			name: "short hold never confirms",
			steps: []step{
				{&fist, 0, Fist, false},
				{&fist, 500, Fist, false},
				{&fist, 950, Fist, false},
				{&palm, 1000, FourFingers, false},
				{&fist, 1050, Fist, false},
				{&fist, 1900, Fist, false},
			},
		},
		{
			name: "held fist confirms exactly once",
			steps: []step{
				{&fist, 0, Fist, false},
				{&fist, 500, Fist, false},
				{&fist, 1000, Fist, true},
				{&fist, 1050, Fist, false},
				{&fist, 3000, Fist, false},
			},
		},
		{
			name: "release and re-assert confirms again",
			steps: []step{
				{&fist, 0, Fist, false},
				{&fist, 1200, Fist, true},
				{nil, 1250, None, false},
				{&fist, 1300, Fist, false},
				{&fist, 2299, Fist, false},
				{&fist, 2300, Fist, true},
			},
		},
		{
			name: "lost hand resets the timer",
			steps: []step{
				{&fist, 0, Fist, false},
				{nil, 600, None, false},
				{&fist, 700, Fist, false},
				{&fist, 1100, Fist, false},
				{&fist, 1700, Fist, true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(time.Second)
			for i, s := range tt.steps {
				got := c.Observe(s.hand, at(s.ms))
				if got.Label != s.wantLabel || got.FistConfirmed != s.wantConfirmed {
					t.Errorf("step %d (t=%dms): got %+v, want {Label:%v FistConfirmed:%v}",
						i, s.ms, got, s.wantLabel, s.wantConfirmed)
				}
			}
		})
	}
}

func TestClassifier_State(t *testing.T) {
	c := NewClassifier(time.Second)
	fist := detector.FistLandmarks()

	if got := c.State(); !got.Start.IsZero() || got.Confirmed {
		t.Fatalf("initial state = %+v, want zero", got)
	}

	c.Observe(&fist, at(0))
	if got := c.State(); !got.Start.Equal(at(0)) || got.Confirmed {
		t.Errorf("after first fist state = %+v, want Start=%v", got, at(0))
	}

	c.Observe(&fist, at(1000))
	if got := c.State(); !got.Confirmed {
		t.Errorf("after hold state = %+v, want Confirmed", got)
	}

	c.Observe(nil, at(1100))
	if got := c.State(); !got.Start.IsZero() || got.Confirmed {
		t.Errorf("after release state = %+v, want zero", got)
	}
}

func TestClassifier_DefaultHold(t *testing.T) {
	if got := NewClassifier(0).Hold(); got != DefaultFistHold {
		t.Errorf("Hold() = %v, want %v", got, DefaultFistHold)
	}

	c := NewClassifier(time.Second)
	c.SetHold(250 * time.Millisecond)
	if got := c.Hold(); got != 250*time.Millisecond {
		t.Errorf("Hold() = %v, want 250ms", got)
	}
}
