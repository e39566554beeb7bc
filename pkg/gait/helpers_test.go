package gait

import (
	"context"
	"errors"
	"testing"

	"github.com/ThoseGrapefruits/robot-rock/pkg/robot"
)

type write struct {
	index, value int
}

type fakeDriver struct {
	writes []write
	failAt map[int]bool
}

var errBus = errors.New("bus timeout")

func (d *fakeDriver) SetPosition(_ context.Context, index, _, value int) error {
	if d.failAt[index] {
		return errBus
	}
	d.writes = append(d.writes, write{index, value})
	return nil
}

func (d *fakeDriver) Stop(context.Context) error { return nil }

// newTestState returns a four-legged rig with the default centered calibration
// (range 1024..3072, neutral 2048).
func newTestState(t *testing.T, pid robot.PIDConfig) (State, *fakeDriver) {
	t.Helper()
	servos, err := robot.NewCollection(robot.DefaultCalibration(8), robot.DefaultLegs(4), pid)
	if err != nil {
		t.Fatalf("NewCollection: %v", err)
	}
	d := &fakeDriver{}
	return State{Driver: d, Servos: servos}, d
}

func goal(t *testing.T, s State, index int) float64 {
	t.Helper()
	servo, ok := s.Servos.ByIndex(index)
	if !ok {
		t.Fatalf("no servo %d", index)
	}
	return servo.Position.Goal
}
