// Package teleop runs the robot from live controller input.
package teleop

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ThoseGrapefruits/robot-rock/pkg/gait"
	"github.com/ThoseGrapefruits/robot-rock/pkg/input"
	"github.com/ThoseGrapefruits/robot-rock/pkg/robot"
)

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("controller closed")

// ServoState is one servo as shown on the dashboard.
type ServoState struct {
	Index   int
	Name    string
	Current float64
	Goal    float64
	// Normalized is Current mapped to [-100, 100] over the calibrated range.
	Normalized float64
}

// State is a telemetry snapshot of the controller.
type State struct {
	Servos    []ServoState
	Leaned    bool
	Height    float64
	Filter    string
	Timestamp time.Time
	Error     error
}

// Config holds configuration for the controller.
type Config struct {
	Robot  *robot.Config
	Driver robot.Driver
	Logger *zap.SugaredLogger

	// Derive overrides the stick vector derivation.
	Derive input.VectorFunc
	// Rand orders the startup ramp; nil uses the global source.
	Rand *rand.Rand
	// ShutdownTimeout bounds waiting for the ramp and stopping the driver.
	ShutdownTimeout time.Duration
}

// Controller owns the gait state. Input samples, ticks and ramp updates are all
// handled on the goroutine running Start.
type Controller struct {
	driver   robot.Driver
	servos   *robot.Collection
	gestures gait.Gestures
	ramp     *gait.Ramp
	hz       int
	timeout  time.Duration
	logger   *zap.SugaredLogger

	state   gait.State
	lastErr string

	samples chan input.Sample
	filters chan *gait.SettleFilter
	stateCh chan State
	logCh   chan string

	mu        sync.Mutex
	started   bool
	quit      chan struct{}
	done      chan struct{}
	quitOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
}

// NewController creates a new controller for the configured rig.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Robot == nil {
		return nil, errors.New("no robot configuration")
	}
	if cfg.Driver == nil {
		return nil, errors.New("no hardware driver")
	}
	if err := cfg.Robot.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	servos, err := robot.NewCollection(cfg.Robot.Calibration, cfg.Robot.Legs, cfg.Robot.PID)
	if err != nil {
		return nil, errors.Wrap(err, "build servos")
	}

	gestures := gait.NewGestures(cfg.Robot)
	gestures.Derive = cfg.Derive

	ramp := gait.NewRamp(cfg.Robot.Ramp)
	ramp.Rand = cfg.Rand

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 2 * time.Second
	}

	return &Controller{
		driver:   cfg.Driver,
		servos:   servos,
		gestures: gestures,
		ramp:     ramp,
		hz:       cfg.Robot.Hz,
		timeout:  cfg.ShutdownTimeout,
		logger:   cfg.Logger,
		state: gait.State{
			Driver: cfg.Driver,
			Servos: servos,
			Filter: gait.NewSettleFilter(),
		},
		samples: make(chan input.Sample, 1),
		filters: make(chan *gait.SettleFilter),
		stateCh: make(chan State, 1),
		logCh:   make(chan string, 10),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Submit queues a controller sample. Only the latest pending sample is kept; the
// time of a replaced sample is carried over to its successor.
func (c *Controller) Submit(s input.Sample) {
	for {
		select {
		case c.samples <- s:
			return
		default:
		}
		select {
		case old := <-c.samples:
			s.Elapsed += old.Elapsed
		default:
		}
	}
}

// Servos returns the servo collection driven by the controller.
func (c *Controller) Servos() *robot.Collection {
	return c.servos
}

// States returns a channel that receives state updates.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Hz returns the settle frequency.
func (c *Controller) Hz() int {
	return c.hz
}

// Close stops the controller and the hardware. It is safe to call more than once
// and from any goroutine; it waits for Start to return.
func (c *Controller) Close() error {
	c.quitOnce.Do(func() { close(c.quit) })

	c.mu.Lock()
	started := c.started
	c.mu.Unlock()

	if started {
		<-c.done
	} else {
		c.shutdown(nil, nil)
	}
	return c.closeErr
}

func (c *Controller) log(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.logger.Info(msg)
	c.push(msg)
}

func (c *Controller) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.logger.Warn(msg)
	c.push(msg)
}

func (c *Controller) push(msg string) {
	line := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), msg)
	select {
	case c.logCh <- line:
	default:
		// Drop if channel full
	}
}

// Start runs the control loop until ctx is done or Close is called. It returns the
// error from stopping the hardware, if any.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("already running")
	}
	select {
	case <-c.quit:
		c.mu.Unlock()
		return ErrClosed
	default:
	}
	c.started = true
	c.mu.Unlock()
	defer close(c.done)

	c.seedPositions(ctx)

	rampCtx, stopRamp := context.WithCancel(ctx)
	defer stopRamp()
	rampDone := make(chan error, 1)
	go func() { rampDone <- c.ramp.Run(rampCtx, c.servos, c.filters) }()

	c.log("Control loop started at %d Hz with %d servos", c.hz, c.servos.Len())

	ticker := time.NewTicker(time.Second / time.Duration(c.hz))
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			ticker.Stop()
			c.shutdown(stopRamp, rampDone)
			return c.closeErr
		case <-c.quit:
			ticker.Stop()
			c.shutdown(stopRamp, rampDone)
			return c.closeErr
		case s := <-c.samples:
			c.handleInput(s)
		case now := <-ticker.C:
			c.tick(ctx, now.Sub(last))
			last = now
		case f := <-c.filters:
			c.state.Filter = f
			c.logger.Debugw("settle filter", "filter", f.String())
			if f == nil {
				c.log("Startup ramp complete")
			}
		}
	}
}

// seedPositions starts every servo from where the hardware reports it, so the first
// ticks approach neutral from the real pose.
func (c *Controller) seedPositions(ctx context.Context) {
	reader, ok := c.driver.(robot.PositionReader)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	positions, err := reader.ReadPositions(ctx)
	if err != nil {
		c.warn("Warning: failed to read start positions: %v", err)
		return
	}
	for idx, raw := range positions {
		if s, ok := c.servos.ByIndex(idx); ok {
			s.Position.Current = s.Calibration.Clamp(float64(raw))
		}
	}
}

func (c *Controller) handleInput(s input.Sample) {
	next, err := gait.HandleInput(c.gestures, c.state, s)
	if err != nil {
		c.warn("Input rejected: %v", err)
		return
	}
	if _, tr := c.state.Lean.Step(next.Leaned); tr != gait.Idle && tr != gait.Held {
		c.logger.Debugw("lean", "transition", tr.String(), "height", next.Height)
	}
	c.state = next
	c.sendState(nil)
}

func (c *Controller) tick(ctx context.Context, elapsed time.Duration) {
	_, err := gait.Settle(ctx, gait.Context{State: c.state, Elapsed: elapsed})
	if err != nil {
		// Only log when the failure changes; a dead bus fails every tick.
		if msg := err.Error(); msg != c.lastErr {
			c.warn("Write error: %v", err)
			c.lastErr = msg
		}
	} else if c.lastErr != "" {
		c.log("Writes recovered")
		c.lastErr = ""
	}
	c.sendState(err)
}

func (c *Controller) snapshot(err error) State {
	layout := c.servos.Layout()
	all := c.servos.All()
	servos := make([]ServoState, 0, len(all))
	for _, s := range all {
		servos = append(servos, ServoState{
			Index:      s.Index,
			Name:       robot.ServoName(layout, s.Index),
			Current:    s.Position.Current,
			Goal:       s.Position.Goal,
			Normalized: s.Calibration.Normalize(s.Position.Current),
		})
	}
	return State{
		Servos:    servos,
		Leaned:    c.state.Leaned,
		Height:    c.state.Height,
		Filter:    c.state.Filter.String(),
		Timestamp: time.Now(),
		Error:     err,
	}
}

func (c *Controller) sendState(err error) {
	s := c.snapshot(err)
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		c.stateCh <- s
	}
}

// shutdown cancels the ramp, waits for it and stops the hardware. It runs once.
func (c *Controller) shutdown(stopRamp func(), rampDone <-chan error) {
	c.closeOnce.Do(func() {
		if stopRamp != nil {
			stopRamp()
			select {
			case <-rampDone:
			case <-time.After(c.timeout):
				c.warn("Warning: startup ramp did not stop within %v", c.timeout)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := c.driver.Stop(ctx); err != nil {
			c.closeErr = errors.Wrap(err, "stop hardware")
			c.warn("Warning: failed to stop hardware: %v", err)
			return
		}
		c.log("Hardware stopped")
	})
}
