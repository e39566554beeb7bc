package robot

import (
	"context"
	"sync"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrStopped is returned by drivers that are written to after Stop.
var ErrStopped = errors.New("hardware stopped")

// Driver is the hardware interface. Only the settler and the shutdown path use it.
type Driver interface {
	// SetPosition writes a raw position to one servo channel.
	SetPosition(ctx context.Context, index, channel, value int) error
	// Stop de-energizes every servo. It must complete before the process exits.
	Stop(ctx context.Context) error
}

// PositionReader is implemented by drivers that can report where the servos are.
type PositionReader interface {
	ReadPositions(ctx context.Context) (map[int]int, error)
}

// FeetechDriver drives Feetech STS bus servos over a serial port.
type FeetechDriver struct {
	bus         *feetech.Bus
	group       *feetech.ServoGroup
	servos      map[int]*feetech.Servo
	calibration Calibration
	engaged     map[int]bool
}

// NewFeetechDriver opens the bus on port. Servo torque is engaged lazily on the
// first write to each servo.
func NewFeetechDriver(port string, cal Calibration) (*FeetechDriver, error) {
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open bus")
	}

	servos := make(map[int]*feetech.Servo, len(cal))
	for idx, sc := range cal {
		servos[idx] = feetech.NewServo(bus, sc.ID, nil)
	}

	return &FeetechDriver{
		bus:         bus,
		group:       feetech.NewServoGroupByIDs(bus, cal.IDs()...),
		servos:      servos,
		calibration: cal,
		engaged:     make(map[int]bool, len(cal)),
	}, nil
}

// SetPosition implements Driver. Bus servos have a single channel, 0.
func (d *FeetechDriver) SetPosition(ctx context.Context, index, channel, value int) error {
	if channel != 0 {
		return errors.Errorf("servo %d: bus servos have no channel %d", index, channel)
	}
	sc, ok := d.calibration[index]
	if !ok {
		return errors.Errorf("servo %d is not calibrated", index)
	}

	if !d.engaged[index] {
		if err := d.servos[index].Enable(ctx); err != nil {
			return errors.Wrapf(err, "enable servo %d", index)
		}
		d.engaged[index] = true
	}

	if err := d.group.SetPositions(ctx, feetech.PositionMap{sc.ID: value}); err != nil {
		return errors.Wrapf(err, "write servo %d", index)
	}
	return nil
}

// ReadPositions reads the raw position of every servo, keyed by servo index.
func (d *FeetechDriver) ReadPositions(ctx context.Context) (map[int]int, error) {
	raw, err := d.group.Positions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read positions")
	}

	positions := make(map[int]int, len(raw))
	for id, pos := range raw {
		idx, _, ok := d.calibration.ByID(id)
		if !ok {
			continue
		}
		positions[idx] = pos
	}
	return positions, nil
}

// Stop disables torque on every servo and closes the bus. The bus is closed even
// when disabling fails.
func (d *FeetechDriver) Stop(ctx context.Context) error {
	disableErr := d.group.DisableAll(ctx)
	closeErr := d.bus.Close()
	if disableErr != nil {
		return errors.Wrap(disableErr, "disable servos")
	}
	if closeErr != nil {
		return errors.Wrap(closeErr, "close bus")
	}
	return nil
}

// DryRunDriver records writes instead of moving hardware.
type DryRunDriver struct {
	logger *zap.SugaredLogger

	mu        sync.Mutex
	positions map[int]int
	writes    int
	stopped   bool
}

// NewDryRunDriver returns a driver that only remembers the last value written to
// each servo. A nil logger disables logging.
func NewDryRunDriver(logger *zap.SugaredLogger) *DryRunDriver {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &DryRunDriver{
		logger:    logger,
		positions: make(map[int]int),
	}
}

// SetPosition implements Driver.
func (d *DryRunDriver) SetPosition(_ context.Context, index, channel, value int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrStopped
	}
	d.positions[index] = value
	d.writes++
	d.logger.Debugw("dry-run write", "servo", index, "channel", channel, "value", value)
	return nil
}

// Stop implements Driver.
func (d *DryRunDriver) Stop(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.logger.Infow("dry-run driver stopped", "writes", d.writes)
	return nil
}

// Positions returns a copy of the last value written to each servo.
func (d *DryRunDriver) Positions() map[int]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[int]int, len(d.positions))
	for k, v := range d.positions {
		out[k] = v
	}
	return out
}

// Stopped reports whether Stop has been called.
func (d *DryRunDriver) Stopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}
