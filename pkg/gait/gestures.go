package gait

import (
	"github.com/ThoseGrapefruits/robot-rock/pkg/input"
	"github.com/ThoseGrapefruits/robot-rock/pkg/robot"
)

// Gestures binds controller input to servo goals.
type Gestures struct {
	Lean input.Button
	Up   input.Button
	Down input.Button
	Home input.Button

	// Deadzone is the left stick length below which the robot stands still.
	Deadzone float64
	// StandRate is the body height change per second while up or down is held.
	StandRate float64

	// Derive converts raw sticks to vectors. Nil means input.DeriveVector.
	Derive input.VectorFunc
}

// NewGestures builds gesture bindings from the configuration file.
func NewGestures(cfg *robot.Config) Gestures {
	return Gestures{
		Lean:      input.Button(cfg.Buttons.Lean),
		Up:        input.Button(cfg.Buttons.Up),
		Down:      input.Button(cfg.Buttons.Down),
		Home:      input.Button(cfg.Buttons.Home),
		Deadzone:  cfg.Deadzone,
		StandRate: cfg.StandRate,
	}
}

// LeanStage tilts the body with the right stick while the lean button is held and
// returns every leg to neutral, and the body to its rest height, once when it is
// released.
func (g Gestures) LeanStage(c Context) (Context, error) {
	level := c.Input.ButtonsPressed.Has(g.Lean)
	next, tr := c.State.Lean.Step(level)

	switch {
	case tr.Active():
		v := c.Input.Axes.Right.Vector
		legs := c.State.Servos.Legs()
		for _, leg := range legs.Left {
			leg.Elbow.Position.Goal = leg.Elbow.Scale(-v.X)
			leg.Shoulder.Position.Goal = leg.Shoulder.Scale(v.Y)
		}
		for _, leg := range legs.Right {
			leg.Elbow.Position.Goal = leg.Elbow.Scale(-v.X)
			leg.Shoulder.Position.Goal = leg.Shoulder.Scale(-v.Y)
		}
	case tr == Falling:
		for _, s := range legServos(c.State.Servos.Legs()) {
			s.ResetGoal()
		}
		// Neutral elbows are the rest height.
		c.State.Height = 0
	}

	c.State.Leaned = level
	c.State.Lean = next
	return c, nil
}

// MoveStage swings the shoulders with the left stick. Forward and back are mirrored
// between the sides, turning is common to both.
func (g Gestures) MoveStage(c Context) (Context, error) {
	v := c.Input.Axes.Left.Vector
	level := v.Norm() > g.Deadzone && !c.State.Leaned
	next, tr := c.State.Move.Step(level)

	legs := c.State.Servos.Legs()
	switch {
	case tr.Active():
		for _, leg := range legs.Left {
			leg.Shoulder.Position.Goal = leg.Shoulder.Scale(clampUnit(v.Y + v.X))
		}
		for _, leg := range legs.Right {
			leg.Shoulder.Position.Goal = leg.Shoulder.Scale(clampUnit(-v.Y + v.X))
		}
	case tr == Falling:
		// Leaning owns the shoulders while it is held.
		if !c.State.Leaned {
			for _, side := range [][]robot.Leg{legs.Left, legs.Right} {
				for _, leg := range side {
					leg.Shoulder.ResetGoal()
				}
			}
		}
	}

	c.State.Move = next
	return c, nil
}

// StandStage raises and lowers the body with the up and down buttons. Home returns
// the body to its rest height and every servo to neutral.
func (g Gestures) StandStage(c Context) (Context, error) {
	pressed := c.Input.ButtonsPressed
	height := c.State.Height

	step := g.StandRate * c.Elapsed.Seconds()
	if pressed.Has(g.Up) {
		height += step
	}
	if pressed.Has(g.Down) {
		height -= step
	}
	height = clampUnit(height)

	if pressed.Has(g.Home) {
		height = 0
		for _, s := range c.State.Servos.All() {
			s.ResetGoal()
		}
	}

	if height != c.State.Height && !c.State.Leaned {
		legs := c.State.Servos.Legs()
		for _, side := range [][]robot.Leg{legs.Left, legs.Right} {
			for _, leg := range side {
				leg.Elbow.Position.Goal = leg.Elbow.Scale(height)
			}
		}
	}

	c.State.Height = height
	return c, nil
}

// HandleInput runs one controller sample through normalize, lean, move and stand and
// returns the resulting state. On error the caller should keep its previous state;
// goals already set by earlier stages stay set.
func HandleInput(g Gestures, s State, sample input.Sample) (State, error) {
	derive := g.Derive
	if derive == nil {
		derive = input.DeriveVector
	}
	norm, err := input.Normalize(sample.Raw, derive)
	if err != nil {
		return s, err
	}

	run := Pipeline(g.LeanStage, g.MoveStage, g.StandStage)
	out, err := run(Context{Input: norm, State: s, Elapsed: sample.Elapsed})
	if err != nil {
		return s, err
	}
	return out.State, nil
}
