// Package robot provides the servo model, calibration and hardware drivers for a
// multi-legged walker.
package robot

import (
	"fmt"

	"github.com/pkg/errors"
)

// Side identifies which side of the body a leg is mounted on.
type Side string

// Sides of the body. Right legs are physically mirrored left legs.
const (
	Left  Side = "left"
	Right Side = "right"
)

// Joint identifies a servo's role within a leg.
type Joint string

// Leg joints. In the default rig shoulders sit on even indices.
const (
	Shoulder Joint = "shoulder"
	Elbow    Joint = "elbow"
)

// LegConfig maps one leg to its servo indices.
type LegConfig struct {
	Side     Side `json:"side" yaml:"side"`
	Shoulder int  `json:"shoulder" yaml:"shoulder"`
	Elbow    int  `json:"elbow" yaml:"elbow"`
}

// DefaultLegs returns the layout of an n-legged rig: leg i uses shoulder 2i and
// elbow 2i+1, the first half of the legs is on the left.
func DefaultLegs(n int) []LegConfig {
	legs := make([]LegConfig, 0, n)
	for i := 0; i < n; i++ {
		side := Left
		if i >= n/2 {
			side = Right
		}
		legs = append(legs, LegConfig{
			Side:     side,
			Shoulder: 2 * i,
			Elbow:    2*i + 1,
		})
	}
	return legs
}

// ValidateLegs checks that every leg has a valid side and that no servo index is
// used twice.
func ValidateLegs(legs []LegConfig) error {
	if len(legs) == 0 {
		return errors.New("no legs configured")
	}
	seen := make(map[int]bool, 2*len(legs))
	for i, leg := range legs {
		if leg.Side != Left && leg.Side != Right {
			return errors.Errorf("leg %d: invalid side %q", i, leg.Side)
		}
		for _, idx := range []int{leg.Shoulder, leg.Elbow} {
			if idx < 0 {
				return errors.Errorf("leg %d: negative servo index %d", i, idx)
			}
			if seen[idx] {
				return errors.Errorf("leg %d: servo index %d used twice", i, idx)
			}
			seen[idx] = true
		}
	}
	return nil
}

// ServoName returns a short human readable label such as "left1.elbow".
func ServoName(legs []LegConfig, index int) string {
	counts := map[Side]int{}
	for _, leg := range legs {
		counts[leg.Side]++
		if index == leg.Shoulder || index == leg.Elbow {
			joint := Shoulder
			if index == leg.Elbow {
				joint = Elbow
			}
			return fmt.Sprintf("%s%d.%s", leg.Side, counts[leg.Side], joint)
		}
	}
	return fmt.Sprintf("servo%d", index)
}
