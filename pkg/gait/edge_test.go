package gait

import "testing"

func TestEdge_Step(t *testing.T) {
	levels := []bool{false, true, true, false, false, true}
	want := []Transition{Idle, Rising, Held, Falling, Idle, Rising}

	var e Edge
	for i, level := range levels {
		var tr Transition
		e, tr = e.Step(level)
		if tr != want[i] {
			t.Errorf("step %d: Step(%v) = %v, want %v", i, level, tr, want[i])
		}
		if e.On != level {
			t.Errorf("step %d: edge on = %v, want %v", i, e.On, level)
		}
	}
}

func TestTransition_Active(t *testing.T) {
	tests := []struct {
		tr     Transition
		name   string
		active bool
	}{
		{Idle, "idle", false},
		{Rising, "rising", true},
		{Held, "held", true},
		{Falling, "falling", false},
	}
	for _, tt := range tests {
		if got := tt.tr.Active(); got != tt.active {
			t.Errorf("%v.Active() = %v, want %v", tt.tr, got, tt.active)
		}
		if got := tt.tr.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
	}
}
