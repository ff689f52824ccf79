// Package config loads viewer defaults from a JSON file. Fields omitted from
// the file keep their built-in defaults, so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/thermal.view/internal/temperature"
	"github.com/banshee-data/thermal.view/internal/thermal"
)

// ViewerConfig is the startup configuration for the capture pipeline. All
// fields are optional; the Get* methods provide fallback defaults.
type ViewerConfig struct {
	// AutoRange selects smoothed auto-ranging at startup.
	AutoRange *bool `json:"auto_range,omitempty"`

	// Unit is the display unit ("kelvin", "celsius", "fahrenheit").
	Unit *string `json:"unit,omitempty"`

	// ManualMin and ManualMax define the manual display range, expressed in
	// the configured unit.
	ManualMin *float64 `json:"manual_min,omitempty"`
	ManualMax *float64 `json:"manual_max,omitempty"`

	// Gradient names a built-in gradient.
	Gradient *string `json:"gradient,omitempty"`

	// RecordEvery controls frame-stats sampling: every Nth result is
	// persisted. 0 disables recording.
	RecordEvery *int `json:"record_every,omitempty"`
}

// EmptyViewerConfig returns a config with all fields unset.
func EmptyViewerConfig() *ViewerConfig {
	return &ViewerConfig{}
}

// LoadViewerConfig loads a ViewerConfig from a JSON file. The file must have
// a .json extension and be under 1MB.
func LoadViewerConfig(path string) (*ViewerConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyViewerConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configured values are usable.
func (c *ViewerConfig) Validate() error {
	if c.Unit != nil {
		if _, err := temperature.ParseUnit(*c.Unit); err != nil {
			return err
		}
	}
	if c.Gradient != nil {
		if _, ok := thermal.GradientByName(*c.Gradient); !ok {
			return fmt.Errorf("unknown gradient %q (valid: %v)", *c.Gradient, thermal.GradientNames())
		}
	}
	if c.ManualMin != nil && c.ManualMax != nil && *c.ManualMax < *c.ManualMin {
		return fmt.Errorf("manual_max (%f) must not be below manual_min (%f)", *c.ManualMax, *c.ManualMin)
	}
	if c.RecordEvery != nil && *c.RecordEvery < 0 {
		return fmt.Errorf("record_every must be non-negative, got %d", *c.RecordEvery)
	}
	return nil
}

// GetAutoRange returns the auto_range value or the default.
func (c *ViewerConfig) GetAutoRange() bool {
	if c.AutoRange == nil {
		return true
	}
	return *c.AutoRange
}

// GetUnit returns the parsed display unit or the default.
func (c *ViewerConfig) GetUnit() temperature.Unit {
	if c.Unit == nil {
		return temperature.Celsius
	}
	u, err := temperature.ParseUnit(*c.Unit)
	if err != nil {
		return temperature.Celsius
	}
	return u
}

// GetManualRange returns the configured manual range, or the default
// [0°C, 100°C].
func (c *ViewerConfig) GetManualRange() temperature.Range {
	unit := c.GetUnit()
	low, high := 0.0, 100.0
	if c.ManualMin != nil {
		low = *c.ManualMin
	}
	if c.ManualMax != nil {
		high = *c.ManualMax
	}
	if c.ManualMin == nil && c.ManualMax == nil {
		// Built-in default is unit-independent.
		return temperature.NewRange(
			temperature.FromUnit(temperature.Celsius, 0),
			temperature.FromUnit(temperature.Celsius, 100),
		)
	}
	return temperature.NewRange(
		temperature.FromUnit(unit, low),
		temperature.FromUnit(unit, high),
	)
}

// GetGradient returns the configured gradient or the default.
func (c *ViewerConfig) GetGradient() *thermal.Gradient {
	if c.Gradient == nil {
		return thermal.DefaultGradient()
	}
	g, ok := thermal.GradientByName(*c.Gradient)
	if !ok {
		return thermal.DefaultGradient()
	}
	return g
}

// GetRecordEvery returns the frame-stats sampling interval or the default.
func (c *ViewerConfig) GetRecordEvery() int {
	if c.RecordEvery == nil {
		return 30
	}
	return *c.RecordEvery
}

// CaptureSettings assembles the initial capture settings from the config.
func (c *ViewerConfig) CaptureSettings() thermal.Settings {
	return thermal.Settings{
		AutoRange:   c.GetAutoRange(),
		ManualRange: c.GetManualRange(),
		Gradient:    c.GetGradient(),
	}
}
