package gait

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/ThoseGrapefruits/robot-rock/pkg/robot"
)

// Ramp engages servos one at a time at startup so they do not all draw current at
// once.
type Ramp struct {
	Settle time.Duration // wait after each servo is let in
	Pause  time.Duration // wait between the even and the odd set
	Rand   *rand.Rand    // order within a set; nil uses the global source
}

// NewRamp returns a ramp with the configured timing.
func NewRamp(cfg robot.RampConfig) *Ramp {
	return &Ramp{
		Settle: time.Duration(cfg.SettleMS) * time.Millisecond,
		Pause:  time.Duration(cfg.PauseMS) * time.Millisecond,
	}
}

// Run sends the sequence of settle filters on updates: first an empty filter, then
// one more servo per step (even indices before odd, random order within each), and
// finally nil to lift the restriction. It returns ctx.Err() if cancelled.
func (r *Ramp) Run(ctx context.Context, servos *robot.Collection, updates chan<- *SettleFilter) error {
	filter := NewSettleFilter()
	if err := r.send(ctx, updates, filter); err != nil {
		return err
	}

	for i, set := range [][]*robot.Servo{servos.Even(), servos.Odd()} {
		if i > 0 {
			if err := wait(ctx, r.Pause); err != nil {
				return err
			}
		}

		remaining := make([]int, 0, len(set))
		for _, s := range set {
			remaining = append(remaining, s.Index)
		}
		for len(remaining) > 0 {
			n := r.intN(len(remaining))
			filter = filter.With(remaining[n])
			remaining = append(remaining[:n], remaining[n+1:]...)

			if err := r.send(ctx, updates, filter); err != nil {
				return err
			}
			if err := wait(ctx, r.Settle); err != nil {
				return err
			}
		}
	}

	return r.send(ctx, updates, nil)
}

func (r *Ramp) intN(n int) int {
	if r.Rand != nil {
		return r.Rand.IntN(n)
	}
	return rand.IntN(n)
}

func (r *Ramp) send(ctx context.Context, updates chan<- *SettleFilter, f *SettleFilter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case updates <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
