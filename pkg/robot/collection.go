package robot

import "github.com/pkg/errors"

// Leg pairs the two servos of one leg.
type Leg struct {
	Elbow    *Servo
	Shoulder *Servo
}

// Legs groups legs by body side.
type Legs struct {
	Left  []Leg
	Right []Leg
}

// Collection is the servo arena plus read-only views over it. Views share the
// underlying *Servo values; nothing is copied.
type Collection struct {
	all     []*Servo
	byIndex map[int]*Servo
	legs    Legs
	layout  []LegConfig
}

// NewCollection allocates one servo per calibrated index and groups them into legs.
func NewCollection(cal Calibration, layout []LegConfig, pid PIDConfig) (*Collection, error) {
	if err := ValidateLegs(layout); err != nil {
		return nil, err
	}

	c := &Collection{
		byIndex: make(map[int]*Servo, len(cal)),
		layout:  layout,
	}
	for _, idx := range cal.Indices() {
		s, err := newServo(idx, cal[idx], pid)
		if err != nil {
			return nil, err
		}
		c.all = append(c.all, s)
		c.byIndex[idx] = s
	}

	for i, lc := range layout {
		shoulder, ok := c.byIndex[lc.Shoulder]
		if !ok {
			return nil, errors.Errorf("leg %d: shoulder servo %d is not calibrated", i, lc.Shoulder)
		}
		elbow, ok := c.byIndex[lc.Elbow]
		if !ok {
			return nil, errors.Errorf("leg %d: elbow servo %d is not calibrated", i, lc.Elbow)
		}
		leg := Leg{Elbow: elbow, Shoulder: shoulder}
		if lc.Side == Left {
			c.legs.Left = append(c.legs.Left, leg)
		} else {
			c.legs.Right = append(c.legs.Right, leg)
		}
	}

	return c, nil
}

// All returns every servo in ascending index order. The order is stable.
func (c *Collection) All() []*Servo {
	return c.all
}

// Even returns the servos with an even index (shoulders in the default rig).
func (c *Collection) Even() []*Servo {
	return c.filter(func(s *Servo) bool { return s.Index%2 == 0 })
}

// Odd returns the servos with an odd index.
func (c *Collection) Odd() []*Servo {
	return c.filter(func(s *Servo) bool { return s.Index%2 != 0 })
}

// Legs returns the servos grouped by leg and side.
func (c *Collection) Legs() Legs {
	return c.legs
}

// Layout returns the leg layout the collection was built from.
func (c *Collection) Layout() []LegConfig {
	return c.layout
}

// ByIndex returns the servo with the given index.
func (c *Collection) ByIndex(index int) (*Servo, bool) {
	s, ok := c.byIndex[index]
	return s, ok
}

// Len returns the number of servos.
func (c *Collection) Len() int {
	return len(c.all)
}

func (c *Collection) filter(keep func(*Servo) bool) []*Servo {
	var out []*Servo
	for _, s := range c.all {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}
