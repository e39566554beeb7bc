package robot

import (
	"math"
	"time"

	"github.com/felixge/pidctrl"
)

// PIDConfig holds the gains shared by every servo's controller.
type PIDConfig struct {
	Kp float64 `json:"kp" yaml:"kp"`
	Ki float64 `json:"ki" yaml:"ki"`
	Kd float64 `json:"kd" yaml:"kd"`
	// MaxStep limits the delta applied in one tick, in raw units. Zero disables the limit.
	MaxStep float64 `json:"max_step" yaml:"max_step"`
}

// DefaultPIDConfig returns proportional-only gains that close a fifth of the gap
// per tick.
func DefaultPIDConfig() PIDConfig {
	return PIDConfig{Kp: 0.2, MaxStep: 40}
}

// PID maps a position error to the delta to apply to a servo's current position.
// It keeps integral and derivative memory between calls, so it must be stepped
// exactly once per settle and never shared between servos.
type PID struct {
	cfg  PIDConfig
	ctrl *pidctrl.PIDController
}

// NewPID creates a controller with the given gains.
func NewPID(cfg PIDConfig) *PID {
	ctrl := pidctrl.NewPIDController(cfg.Kp, cfg.Ki, cfg.Kd).Set(0)
	if cfg.MaxStep > 0 {
		// pidctrl clamps its integral to the output limits, which is our anti-windup.
		ctrl.SetOutputLimits(-cfg.MaxStep, cfg.MaxStep)
	}
	return &PID{cfg: cfg, ctrl: ctrl}
}

// Step returns the delta for the given error (goal - current) over dt.
func (p *PID) Step(err float64, dt time.Duration) float64 {
	if dt <= 0 {
		// No time has passed: the derivative is undefined and the integral must not
		// move, so answer with the proportional term alone.
		out := p.cfg.Kp * err
		if p.cfg.MaxStep > 0 {
			out = math.Max(-p.cfg.MaxStep, math.Min(p.cfg.MaxStep, out))
		}
		return out
	}
	// pidctrl computes setpoint - value, so feeding -err with a zero setpoint
	// yields err and a derivative on the error itself.
	return p.ctrl.UpdateDuration(-err, dt)
}
