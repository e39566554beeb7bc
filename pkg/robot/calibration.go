package robot

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// ServoCalibration holds calibration data for a single servo.
type ServoCalibration struct {
	ID       int  `json:"id" yaml:"id"`
	RangeMin int  `json:"range_min" yaml:"range_min"`
	RangeMax int  `json:"range_max" yaml:"range_max"`
	Neutral  int  `json:"neutral" yaml:"neutral"`
	Inverted bool `json:"inverted,omitempty" yaml:"inverted,omitempty"`
}

// Calibration holds calibration data for all servos, keyed by servo index.
type Calibration map[int]ServoCalibration

// Validate checks that the range is ordered and the neutral position lies inside it.
func (c ServoCalibration) Validate() error {
	if c.RangeMin >= c.RangeMax {
		return errors.Errorf("servo %d: range_min %d must be below range_max %d", c.ID, c.RangeMin, c.RangeMax)
	}
	if !c.Contains(float64(c.Neutral)) {
		return errors.Errorf("servo %d: neutral %d outside [%d, %d]", c.ID, c.Neutral, c.RangeMin, c.RangeMax)
	}
	return nil
}

// Contains reports whether a raw position lies within the calibrated range.
func (c ServoCalibration) Contains(raw float64) bool {
	return raw >= float64(c.RangeMin) && raw <= float64(c.RangeMax)
}

// Clamp limits a raw position to the calibrated range.
func (c ServoCalibration) Clamp(raw float64) float64 {
	return math.Max(float64(c.RangeMin), math.Min(float64(c.RangeMax), raw))
}

// Scale maps a normalized axis value in [-1, 1] to a raw goal position. Positive
// values move from neutral towards RangeMax, negative values towards RangeMin.
// Inverted servos are mounted the other way round and flip the axis.
func (c ServoCalibration) Scale(axis float64) float64 {
	axis = math.Max(-1, math.Min(1, axis))
	if c.Inverted {
		axis = -axis
	}
	neutral := float64(c.Neutral)
	if axis >= 0 {
		return c.Clamp(neutral + axis*(float64(c.RangeMax)-neutral))
	}
	return c.Clamp(neutral + axis*(neutral-float64(c.RangeMin)))
}

// Normalize converts a raw servo position to a normalized value in the range [-100, 100].
func (c ServoCalibration) Normalize(raw float64) float64 {
	rangeSize := float64(c.RangeMax - c.RangeMin)
	if rangeSize == 0 {
		return 0
	}
	return ((raw-float64(c.RangeMin))/rangeSize)*200 - 100
}

// Indices returns the calibrated servo indices in ascending order.
func (c Calibration) Indices() []int {
	indices := make([]int, 0, len(c))
	for idx := range c {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices
}

// IDs returns the bus IDs for all servos, ordered by servo index.
func (c Calibration) IDs() []int {
	ids := make([]int, 0, len(c))
	for _, idx := range c.Indices() {
		ids = append(ids, c[idx].ID)
	}
	return ids
}

// ByID returns the servo index and calibration for a given bus ID.
func (c Calibration) ByID(id int) (int, ServoCalibration, bool) {
	for idx, sc := range c {
		if sc.ID == id {
			return idx, sc, true
		}
	}
	return 0, ServoCalibration{}, false
}

// DefaultCalibration returns a centered calibration for n servos on a 12-bit bus,
// with bus IDs starting at 1.
func DefaultCalibration(n int) Calibration {
	cal := make(Calibration, n)
	for i := 0; i < n; i++ {
		cal[i] = ServoCalibration{
			ID:       i + 1,
			RangeMin: 1024,
			RangeMax: 3072,
			Neutral:  2048,
		}
	}
	return cal
}
