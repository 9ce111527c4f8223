package control

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func proposal(vals map[Axis]int) Proposal {
	var p Proposal
	for a, v := range vals {
		p.Put(a, v)
	}
	return p
}

func TestArbitrate(t *testing.T) {
	tests := []struct {
		name     string
		state    FlightState
		manual   Proposal
		gesture  Proposal
		tracking Proposal
		limit    int
		want     VelocityCommand
	}{
		{
			name:     "grounded is always zero",
			state:    Grounded,
			manual:   proposal(map[Axis]int{AxisFB: 50}),
			gesture:  proposal(map[Axis]int{AxisUD: 50}),
			tracking: proposal(map[Axis]int{AxisYaw: 50}),
			limit:    100,
			want:     VelocityCommand{},
		},
		{
			name:  "nothing set",
			state: Airborne,
			limit: 100,
			want:  VelocityCommand{},
		},
		{
			name:     "manual beats tracking",
			state:    Airborne,
			manual:   proposal(map[Axis]int{AxisYaw: -40}),
			tracking: proposal(map[Axis]int{AxisYaw: 40, AxisFB: 40}),
			limit:    100,
			want:     VelocityCommand{Yaw: -40, FB: 40},
		},
		{
			name:     "manual zero still wins",
			state:    Airborne,
			manual:   proposal(map[Axis]int{AxisYaw: 0}),
			tracking: proposal(map[Axis]int{AxisYaw: 40}),
			limit:    100,
			want:     VelocityCommand{},
		},
		{
			name:     "gesture beats tracking",
			state:    Airborne,
			gesture:  proposal(map[Axis]int{AxisUD: 30}),
			tracking: proposal(map[Axis]int{AxisUD: -40, AxisYaw: 40}),
			limit:    100,
			want:     VelocityCommand{UD: 30, Yaw: 40},
		},
		{
			name:    "manual beats gesture",
			state:   Airborne,
			manual:  proposal(map[Axis]int{AxisLR: 20}),
			gesture: proposal(map[Axis]int{AxisLR: -60}),
			limit:   100,
			want:    VelocityCommand{LR: 20},
		},
		{
			name:   "clamped to limit",
			state:  Airborne,
			manual: proposal(map[Axis]int{AxisLR: 150, AxisFB: -150}),
			limit:  100,
			want:   VelocityCommand{LR: 100, FB: -100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Arbitrate(tt.state, tt.manual, tt.gesture, tt.tracking, tt.limit)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Arbitrate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestVelocityCommand(t *testing.T) {
	v := VelocityCommand{}.With(AxisLR, 1).With(AxisFB, 2).With(AxisUD, 3).With(AxisYaw, 4)
	if diff := cmp.Diff(VelocityCommand{LR: 1, FB: 2, UD: 3, Yaw: 4}, v); diff != "" {
		t.Errorf("With() mismatch (-want +got):\n%s", diff)
	}
	for a, want := range []int{1, 2, 3, 4} {
		if got := v.Get(Axis(a)); got != want {
			t.Errorf("Get(%v) = %d, want %d", Axis(a), got, want)
		}
	}
	if v.IsZero() {
		t.Error("IsZero() = true for non-zero command")
	}
	if !(VelocityCommand{}).IsZero() {
		t.Error("IsZero() = false for zero command")
	}
}

func TestAxis_String(t *testing.T) {
	want := []string{"lr", "fb", "ud", "yaw"}
	for a := Axis(0); a < NumAxes; a++ {
		if got := a.String(); got != want[a] {
			t.Errorf("Axis(%d).String() = %q, want %q", int(a), got, want[a])
		}
	}
	if got := NumAxes.String(); got != "unknown" {
		t.Errorf("NumAxes.String() = %q, want unknown", got)
	}
}
