package gait

import (
	"context"
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// ErrHardwareWrite marks a failed servo write during a settle pass.
var ErrHardwareWrite = errors.New("hardware write failed")

// WriteError reports which servo a settle pass failed on.
type WriteError struct {
	Index int
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%v: servo %d: %v", ErrHardwareWrite, e.Index, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrHardwareWrite) hold for every WriteError.
func (e *WriteError) Is(target error) bool { return target == ErrHardwareWrite }

// Settle moves every servo allowed by the state's filter one PID step towards its
// goal and writes the result. Servos are visited in ascending index order. The first
// failed write ends the pass; servos written before it keep their new position.
func Settle(ctx context.Context, c Context) (Context, error) {
	for _, s := range c.State.Servos.All() {
		if !c.State.Filter.Allows(s.Index) {
			continue
		}

		delta := s.PID.Step(s.Position.Goal-s.Position.Current, c.Elapsed)
		next := s.Calibration.Clamp(s.Position.Current + delta)

		if err := c.State.Driver.SetPosition(ctx, s.Index, 0, int(math.Round(next))); err != nil {
			return c, &WriteError{Index: s.Index, Err: err}
		}
		s.Position.Current = next
	}
	return c, nil
}
