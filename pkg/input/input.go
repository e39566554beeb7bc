// Package input turns raw joystick samples into normalized controller input.
package input

import (
	"math"
	"sort"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// ErrMalformedJoystick is returned when a raw joystick sample cannot be converted
// to a vector.
var ErrMalformedJoystick = errors.New("malformed joystick sample")

// Button identifies a controller button.
type Button string

// RawJoystick is one stick as reported by the controller: a direction in degrees
// (0 = right, 90 = up) and a deflection distance out of MaxDistance.
type RawJoystick struct {
	Angle       float64 `json:"angle"`
	Distance    float64 `json:"distance"`
	MaxDistance float64 `json:"maxDistance"`
}

// RawAxes holds both sticks.
type RawAxes struct {
	Left  RawJoystick `json:"left"`
	Right RawJoystick `json:"right"`
}

// Raw is a controller sample as it arrives on the wire.
type Raw struct {
	Axes           RawAxes  `json:"axes"`
	ButtonsPressed []Button `json:"buttonsPressed"`
}

// Sample is a raw sample plus the time elapsed since the previous one.
type Sample struct {
	Raw     Raw
	Elapsed time.Duration
}

// Axis is a stick with its derived vector. Vector length is at most 1.
type Axis struct {
	Raw    RawJoystick
	Vector r2.Point
}

// Axes holds both normalized sticks.
type Axes struct {
	Left  Axis
	Right Axis
}

// ButtonSet is a duplicate-free set of pressed buttons.
type ButtonSet map[Button]struct{}

// NewButtonSet builds a set from a list that may contain duplicates.
func NewButtonSet(buttons ...Button) ButtonSet {
	set := make(ButtonSet, len(buttons))
	for _, b := range buttons {
		set[b] = struct{}{}
	}
	return set
}

// Has reports whether b is pressed.
func (s ButtonSet) Has(b Button) bool {
	_, ok := s[b]
	return ok
}

// Sorted returns the pressed buttons in lexical order.
func (s ButtonSet) Sorted() []Button {
	out := make([]Button, 0, len(s))
	for b := range s {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Normalized is controller input ready for the gesture transforms.
type Normalized struct {
	Axes           Axes
	ButtonsPressed ButtonSet
}

// VectorFunc derives a bounded 2D vector from a raw stick.
type VectorFunc func(RawJoystick) (r2.Point, error)

// DeriveVector converts a stick's polar reading into a vector whose length is the
// deflection ratio, clamped to [0, 1]. It is the default VectorFunc.
func DeriveVector(j RawJoystick) (r2.Point, error) {
	for _, v := range []float64{j.Angle, j.Distance, j.MaxDistance} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return r2.Point{}, errors.Wrapf(ErrMalformedJoystick, "non-finite value in %+v", j)
		}
	}
	if j.Distance < 0 {
		return r2.Point{}, errors.Wrapf(ErrMalformedJoystick, "negative distance %v", j.Distance)
	}
	// A resting stick needs no scale.
	if j.Distance == 0 {
		return r2.Point{}, nil
	}
	if j.MaxDistance <= 0 {
		return r2.Point{}, errors.Wrapf(ErrMalformedJoystick, "max distance %v must be positive", j.MaxDistance)
	}

	d := math.Min(j.Distance/j.MaxDistance, 1)
	rad := j.Angle * math.Pi / 180
	return r2.Point{X: math.Cos(rad) * d, Y: math.Sin(rad) * d}, nil
}

// Normalize derives a vector for each stick and collects the pressed buttons into a
// set. raw is not modified.
func Normalize(raw Raw, derive VectorFunc) (Normalized, error) {
	left, err := derive(raw.Axes.Left)
	if err != nil {
		return Normalized{}, errors.Wrap(err, "left stick")
	}
	right, err := derive(raw.Axes.Right)
	if err != nil {
		return Normalized{}, errors.Wrap(err, "right stick")
	}

	return Normalized{
		Axes: Axes{
			Left:  Axis{Raw: raw.Axes.Left, Vector: left},
			Right: Axis{Raw: raw.Axes.Right, Vector: right},
		},
		ButtonsPressed: NewButtonSet(raw.ButtonsPressed...),
	}, nil
}
