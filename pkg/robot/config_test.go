package robot

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults_Valid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("Defaults().Validate() = %v", err)
	}
}

func TestConfig_SaveLoadRoundTrip(t *testing.T) {
	for _, name := range []string{"robotrock.json", "robotrock.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			cfg := Defaults()
			cfg.Port = "/dev/ttyUSB0"
			cfg.Hz = 60
			cfg.Legs = DefaultLegs(2)
			cfg.Calibration = Calibration{
				0: {ID: 1, RangeMin: 900, RangeMax: 3100, Neutral: 2000},
				1: {ID: 2, RangeMin: 800, RangeMax: 3000, Neutral: 1900, Inverted: true},
				2: {ID: 3, RangeMin: 1000, RangeMax: 3000, Neutral: 2000},
				3: {ID: 4, RangeMin: 1000, RangeMax: 3000, Neutral: 2000},
			}

			if err := cfg.SaveTo(path); err != nil {
				t.Fatalf("SaveTo: %v", err)
			}
			if !ConfigExists(path) {
				t.Fatalf("ConfigExists(%q) = false after save", path)
			}

			got, err := LoadConfigFrom(path)
			if err != nil {
				t.Fatalf("LoadConfigFrom: %v", err)
			}
			if got.Port != cfg.Port || got.Hz != cfg.Hz {
				t.Errorf("loaded port/hz = %q/%d, want %q/%d", got.Port, got.Hz, cfg.Port, cfg.Hz)
			}
			if len(got.Calibration) != 4 {
				t.Fatalf("loaded %d calibrations, want 4", len(got.Calibration))
			}
			if got.Calibration[1] != cfg.Calibration[1] {
				t.Errorf("calibration[1] = %+v, want %+v", got.Calibration[1], cfg.Calibration[1])
			}
			if err := got.Validate(); err != nil {
				t.Errorf("loaded config invalid: %v", err)
			}
		})
	}
}

func TestLoadConfigFrom_KeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.json")
	if err := os.WriteFile(path, []byte(`{"port": "/dev/ttyACM0"}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("LoadConfigFrom: %v", err)
	}
	if cfg.Port != "/dev/ttyACM0" {
		t.Errorf("Port = %q, want /dev/ttyACM0", cfg.Port)
	}
	if cfg.Hz != 50 || cfg.Buttons.Lean != "lean" || len(cfg.Calibration) != 8 {
		t.Errorf("defaults not kept: hz=%d lean=%q calibrations=%d", cfg.Hz, cfg.Buttons.Lean, len(cfg.Calibration))
	}
}

func TestConfig_ValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero hz", func(c *Config) { c.Hz = 0 }},
		{"hz too fast", func(c *Config) { c.Hz = MaxHz + 1 }},
		{"hz overflows ticker", func(c *Config) { c.Hz = 2_000_000_000 }},
		{"negative ramp", func(c *Config) { c.Ramp.PauseMS = -1 }},
		{"deadzone too large", func(c *Config) { c.Deadzone = 1 }},
		{"uncalibrated leg", func(c *Config) { delete(c.Calibration, 7) }},
		{"no legs", func(c *Config) { c.Legs = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() returned no error")
			}
		})
	}
}
