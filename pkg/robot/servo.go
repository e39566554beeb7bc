package robot

import "github.com/pkg/errors"

// Position is a servo's raw position triple.
type Position struct {
	Current float64 // last value written to hardware
	Goal    float64 // target set by gesture transforms
	Neutral float64 // rest value
}

// Servo is one actuator. Servos are allocated once by NewCollection and mutated in
// place for the lifetime of the process.
type Servo struct {
	Index       int
	Calibration ServoCalibration
	PID         *PID
	Position    Position
}

// Scale maps a normalized axis value to a goal position for this servo.
func (s *Servo) Scale(axis float64) float64 {
	return s.Calibration.Scale(axis)
}

// ResetGoal points the servo back at its neutral position.
func (s *Servo) ResetGoal() {
	s.Position.Goal = s.Position.Neutral
}

func newServo(index int, cal ServoCalibration, pid PIDConfig) (*Servo, error) {
	if err := cal.Validate(); err != nil {
		return nil, errors.Wrapf(err, "servo %d", index)
	}
	neutral := float64(cal.Neutral)
	return &Servo{
		Index:       index,
		Calibration: cal,
		PID:         NewPID(pid),
		Position: Position{
			Current: neutral,
			Goal:    neutral,
			Neutral: neutral,
		},
	}, nil
}
