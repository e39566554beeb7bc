// Package gait turns controller input into servo goals and drives the servos
// towards them.
//
// Two pipelines share one State: input samples run normalize, lean, move and stand,
// which only set goals; ticks run Settle, which moves each servo's current position
// towards its goal through its PID controller and writes it to hardware.
package gait

import (
	"time"

	"github.com/ThoseGrapefruits/robot-rock/pkg/input"
	"github.com/ThoseGrapefruits/robot-rock/pkg/robot"
)

// State is everything the pipelines carry between invocations. It is a value: stages
// return a modified copy. Only the servos behind Servos are shared.
type State struct {
	Driver robot.Driver
	Servos *robot.Collection

	Leaned bool    // lean button held in the last input
	Lean   Edge    // lean gesture edge memory
	Move   Edge    // move gesture edge memory
	Height float64 // body height in [-1, 1]

	Filter *SettleFilter
}

// Context is the envelope threaded through one pipeline invocation.
type Context struct {
	Input   input.Normalized
	State   State
	Elapsed time.Duration
}

// Stage transforms a Context. Stages must not modify the Context they are given
// beyond servo goals and current positions.
type Stage func(Context) (Context, error)

// Pipeline chains stages, stopping at the first error.
func Pipeline(stages ...Stage) Stage {
	return func(c Context) (Context, error) {
		for _, stage := range stages {
			next, err := stage(c)
			if err != nil {
				return c, err
			}
			c = next
		}
		return c, nil
	}
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

func legServos(legs robot.Legs) []*robot.Servo {
	var out []*robot.Servo
	for _, side := range [][]robot.Leg{legs.Left, legs.Right} {
		for _, leg := range side {
			out = append(out, leg.Shoulder, leg.Elbow)
		}
	}
	return out
}
