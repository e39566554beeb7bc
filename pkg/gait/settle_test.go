package gait

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/ThoseGrapefruits/robot-rock/pkg/robot"
)

const tick = 20 * time.Millisecond

func TestSettle_IdempotentAtGoal(t *testing.T) {
	s, d := newTestState(t, robot.PIDConfig{Kp: 0.5, Ki: 0.2, Kd: 0.1, MaxStep: 40})
	c := Context{State: s, Elapsed: tick}

	for i := 0; i < 3; i++ {
		var err error
		if c, err = Settle(context.Background(), c); err != nil {
			t.Fatalf("Settle: %v", err)
		}
	}

	for _, servo := range s.Servos.All() {
		if servo.Position.Current != 2048 {
			t.Errorf("servo %d current = %v, want 2048", servo.Index, servo.Position.Current)
		}
	}
	for _, w := range d.writes {
		if w.value != 2048 {
			t.Errorf("wrote %d to servo %d, want 2048", w.value, w.index)
		}
	}
}

func TestSettle_ConvergesMonotonically(t *testing.T) {
	for _, kp := range []float64{0.1, 0.5, 1} {
		s, _ := newTestState(t, robot.PIDConfig{Kp: kp})
		servo, _ := s.Servos.ByIndex(0)
		servo.Position.Goal = 3000

		c := Context{State: s, Elapsed: tick}
		prev := math.Abs(servo.Position.Goal - servo.Position.Current)
		for i := 0; i < 200; i++ {
			var err error
			if c, err = Settle(context.Background(), c); err != nil {
				t.Fatalf("Settle: %v", err)
			}
			gap := math.Abs(servo.Position.Goal - servo.Position.Current)
			if gap > prev {
				t.Fatalf("kp=%v tick %d: gap grew from %v to %v", kp, i, prev, gap)
			}
			prev = gap
		}
		if prev > 1 {
			t.Errorf("kp=%v: gap = %v after 200 ticks, want < 1", kp, prev)
		}
	}
}

func TestSettle_RespectsFilter(t *testing.T) {
	s, d := newTestState(t, robot.DefaultPIDConfig())
	s.Filter = NewSettleFilter(0, 2, 4)
	for _, servo := range s.Servos.All() {
		servo.Position.Goal = 2500
	}

	if _, err := Settle(context.Background(), Context{State: s, Elapsed: tick}); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	var written []int
	for _, w := range d.writes {
		written = append(written, w.index)
	}
	if len(written) != 3 || written[0] != 0 || written[1] != 2 || written[2] != 4 {
		t.Errorf("wrote servos %v, want [0 2 4]", written)
	}
	for _, servo := range s.Servos.All() {
		moved := servo.Position.Current != 2048
		if moved != s.Filter.Allows(servo.Index) {
			t.Errorf("servo %d moved = %v, want %v", servo.Index, moved, !moved)
		}
	}
}

func TestSettle_WriteFailureAbortsPass(t *testing.T) {
	s, d := newTestState(t, robot.DefaultPIDConfig())
	d.failAt = map[int]bool{3: true}
	for _, servo := range s.Servos.All() {
		servo.Position.Goal = 2500
	}

	_, err := Settle(context.Background(), Context{State: s, Elapsed: tick})
	if !errors.Is(err, ErrHardwareWrite) {
		t.Fatalf("Settle error = %v, want ErrHardwareWrite", err)
	}
	if !errors.Is(err, errBus) {
		t.Errorf("Settle error = %v, want it to wrap the driver error", err)
	}
	var we *WriteError
	if !errors.As(err, &we) || we.Index != 3 {
		t.Errorf("Settle error = %v, want WriteError for servo 3", err)
	}

	for _, servo := range s.Servos.All() {
		moved := servo.Position.Current != 2048
		if want := servo.Index < 3; moved != want {
			t.Errorf("servo %d moved = %v, want %v", servo.Index, moved, want)
		}
	}
}

func TestSettle_ClampsToRange(t *testing.T) {
	s, _ := newTestState(t, robot.PIDConfig{Kp: 1})
	servo, _ := s.Servos.ByIndex(0)
	servo.Position.Goal = 5000

	if _, err := Settle(context.Background(), Context{State: s, Elapsed: tick}); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if servo.Position.Current != 3072 {
		t.Errorf("current = %v, want clamped to 3072", servo.Position.Current)
	}
}

func TestRamp_Coverage(t *testing.T) {
	s, _ := newTestState(t, robot.DefaultPIDConfig())
	updates := make(chan *SettleFilter, 32)
	r := &Ramp{Rand: rand.New(rand.NewPCG(1, 2))}

	if err := r.Run(context.Background(), s.Servos, updates); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(updates)

	var filters []*SettleFilter
	for f := range updates {
		filters = append(filters, f)
	}
	if len(filters) != 10 {
		t.Fatalf("got %d filters, want 10", len(filters))
	}
	if first := filters[0]; first == nil || len(first.Indices()) != 0 {
		t.Errorf("first filter = %v, want {}", first)
	}
	if last := filters[len(filters)-1]; last != nil {
		t.Errorf("last filter = %v, want nil", last)
	}

	seen := map[int]bool{}
	for i, f := range filters[1:9] {
		if len(f.Indices()) != i+1 {
			t.Fatalf("filter %d = %v, want %d servos", i+1, f, i+1)
		}
		var added []int
		for _, idx := range f.Indices() {
			if !seen[idx] {
				added = append(added, idx)
			}
		}
		if len(added) != 1 {
			t.Fatalf("filter %d = %v added %v, want exactly one new servo", i+1, f, added)
		}
		seen[added[0]] = true
		if wantEven := i < 4; (added[0]%2 == 0) != wantEven {
			t.Errorf("step %d added servo %d, want even=%v", i+1, added[0], wantEven)
		}
	}
	if len(seen) != 8 {
		t.Errorf("ramp activated %d servos, want 8", len(seen))
	}
}

func TestRamp_Cancelled(t *testing.T) {
	s, _ := newTestState(t, robot.DefaultPIDConfig())
	updates := make(chan *SettleFilter, 32)
	r := &Ramp{Settle: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, s.Servos, updates) }()

	// Empty filter, then the first servo.
	<-updates
	<-updates
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if n := len(updates); n != 0 {
		t.Errorf("%d filters sent after cancel, want 0", n)
	}
}
