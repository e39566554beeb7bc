package gait

// Transition is the change of a level between two samples.
type Transition int

const (
	Idle    Transition = iota // off, was off
	Rising                    // on, was off
	Held                      // on, was on
	Falling                   // off, was on
)

func (t Transition) String() string {
	switch t {
	case Idle:
		return "idle"
	case Rising:
		return "rising"
	case Held:
		return "held"
	case Falling:
		return "falling"
	default:
		return "unknown"
	}
}

// Active reports whether the level is on after the transition.
func (t Transition) Active() bool {
	return t == Rising || t == Held
}

// Edge remembers the previous level of a gesture.
type Edge struct {
	On bool
}

// Step feeds the current level and returns the next edge state with the transition.
func (e Edge) Step(level bool) (Edge, Transition) {
	switch {
	case level && !e.On:
		return Edge{On: true}, Rising
	case level:
		return e, Held
	case e.On:
		return Edge{}, Falling
	default:
		return e, Idle
	}
}
