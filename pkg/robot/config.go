package robot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// MaxHz is the fastest supported settle rate. A bus write per servo per tick
// does not keep up beyond it.
const MaxHz = 1000

// Config holds the robot configuration
type Config struct {
	Port        string      `json:"port" yaml:"port"`
	ListenAddr  string      `json:"listen_addr" yaml:"listen_addr"`
	Hz          int         `json:"hz" yaml:"hz"`
	Ramp        RampConfig  `json:"ramp" yaml:"ramp"`
	PID         PIDConfig   `json:"pid" yaml:"pid"`
	Buttons     Buttons     `json:"buttons" yaml:"buttons"`
	StandRate   float64     `json:"stand_rate" yaml:"stand_rate"`
	Deadzone    float64     `json:"deadzone" yaml:"deadzone"`
	Legs        []LegConfig `json:"legs" yaml:"legs"`
	Calibration Calibration `json:"calibration,omitempty" yaml:"calibration,omitempty"`
}

// RampConfig holds the startup ramp timing, in milliseconds.
type RampConfig struct {
	SettleMS int `json:"settle_ms" yaml:"settle_ms"`
	PauseMS  int `json:"pause_ms" yaml:"pause_ms"`
}

// Buttons names the controller buttons bound to gestures.
type Buttons struct {
	Lean string `json:"lean" yaml:"lean"`
	Up   string `json:"up" yaml:"up"`
	Down string `json:"down" yaml:"down"`
	Home string `json:"home" yaml:"home"`
}

// Defaults returns the configuration of a four-legged rig with centered calibration.
func Defaults() *Config {
	return &Config{
		ListenAddr:  ":8080",
		Hz:          50,
		Ramp:        RampConfig{SettleMS: 50, PauseMS: 500},
		PID:         DefaultPIDConfig(),
		Buttons:     Buttons{Lean: "lean", Up: "up", Down: "down", Home: "home"},
		StandRate:   0.5,
		Deadzone:    0.1,
		Legs:        DefaultLegs(4),
		Calibration: DefaultCalibration(8),
	}
}

// IsCalibrated returns true if every leg servo has calibration data
func (c *Config) IsCalibrated() bool {
	if len(c.Calibration) == 0 {
		return false
	}
	for _, leg := range c.Legs {
		if _, ok := c.Calibration[leg.Shoulder]; !ok {
			return false
		}
		if _, ok := c.Calibration[leg.Elbow]; !ok {
			return false
		}
	}
	return true
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Hz <= 0 || c.Hz > MaxHz {
		return errors.Errorf("hz must be in [1, %d], got %d", MaxHz, c.Hz)
	}
	if c.Ramp.SettleMS < 0 || c.Ramp.PauseMS < 0 {
		return errors.New("ramp intervals must not be negative")
	}
	if c.Deadzone < 0 || c.Deadzone >= 1 {
		return errors.Errorf("deadzone must be in [0, 1), got %v", c.Deadzone)
	}
	if err := ValidateLegs(c.Legs); err != nil {
		return err
	}
	if !c.IsCalibrated() {
		return errors.New("not every leg servo is calibrated")
	}
	for idx, sc := range c.Calibration {
		if err := sc.Validate(); err != nil {
			return errors.Wrapf(err, "calibration %d", idx)
		}
	}
	return nil
}

// LoadConfigFrom loads configuration from a specific file. Fields missing from the
// file keep their defaults.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}
	cfg := Defaults()
	// Maps are merged on decode, so only fall back to the default calibration
	// when the file has none.
	defaultCal := cfg.Calibration
	cfg.Calibration = nil
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if cfg.Calibration == nil {
		cfg.Calibration = defaultCal
	}
	return cfg, nil
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the config file exists
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
