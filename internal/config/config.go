package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/msalah0e/ripple/internal/effects"
	"github.com/msalah0e/ripple/internal/energy"
)

// ErrInvalidDistance is returned by Validate when the proximity thresholds
// do not form a range.
var ErrInvalidDistance = errors.New("invalid proximity distance thresholds")

// Config holds ripple configuration.
type Config struct {
	Proximity ProximityConfig `toml:"proximity"`
	Cascade   CascadeConfig   `toml:"cascade"`
	Style     StyleConfig     `toml:"style"`
	Log       LogConfig       `toml:"log"`
	UI        UIConfig        `toml:"ui"`
	Serve     ServeConfig     `toml:"serve"`
	Trace     TraceConfig     `toml:"trace"`
}

// ProximityConfig shapes the distance to influence curve.
type ProximityConfig struct {
	MinDistance float64 `toml:"min_distance"`
	MaxDistance float64 `toml:"max_distance"`
	MinScale    float64 `toml:"min_scale"`
	MaxScale    float64 `toml:"max_scale"`
}

// CascadeConfig controls staging and debouncing.
type CascadeConfig struct {
	StepIntervalMS int `toml:"step_interval_ms"`
	DebounceMS     int `toml:"debounce_ms"`
	LiveDepth      int `toml:"live_depth"`
	IgnitionMS     int `toml:"ignition_ms"`
}

// VisualConfig is one end of the intensity range.
type VisualConfig struct {
	Scale      float64 `toml:"scale"`
	Opacity    float64 `toml:"opacity"`
	Saturation float64 `toml:"saturation"`
}

// StyleConfig holds the excited and dampened extremes.
type StyleConfig struct {
	Excited  VisualConfig `toml:"excited"`
	Dampened VisualConfig `toml:"dampened"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `toml:"level"`  // "debug", "info", "warn", "error"
	Format string `toml:"format"` // "text", "json"
}

// UIConfig controls display options.
type UIConfig struct {
	Color bool `toml:"color"`
}

// ServeConfig controls the websocket stream server.
type ServeConfig struct {
	Addr string `toml:"addr"`
}

// TraceConfig controls where traces are written.
type TraceConfig struct {
	Dir string `toml:"dir"`
}

// Default returns the default configuration.
func Default() *Config {
	p := energy.DefaultProximity()
	s := effects.DefaultStyle()
	return &Config{
		Proximity: ProximityConfig{
			MinDistance: p.MinDistance,
			MaxDistance: p.MaxDistance,
			MinScale:    p.MinScale,
			MaxScale:    p.MaxScale,
		},
		Cascade: CascadeConfig{
			StepIntervalMS: 150,
			DebounceMS:     500,
			LiveDepth:      2,
			IgnitionMS:     600,
		},
		Style: StyleConfig{
			Excited:  visualConfig(s.Excited),
			Dampened: visualConfig(s.Dampened),
		},
		Log:   LogConfig{Level: "info", Format: "text"},
		UI:    UIConfig{Color: true},
		Serve: ServeConfig{Addr: ":7780"},
	}
}

func visualConfig(v effects.Visual) VisualConfig {
	return VisualConfig{Scale: v.Scale, Opacity: v.Opacity, Saturation: v.Saturation}
}

// ConfigDir returns the ripple config directory path.
func ConfigDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "ripple")
}

// Path returns the default config file location.
func Path() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the default config file. A missing file yields defaults.
func Load() (*Config, error) {
	return LoadFile(Path())
}

// LoadFile reads path over the defaults and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to the default location.
func Save(cfg *Config) error {
	return SaveFile(Path(), cfg)
}

// SaveFile writes the config to path.
func SaveFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// EnsureExists creates the config file with defaults if it doesn't exist.
func EnsureExists() error {
	if _, err := os.Stat(Path()); err == nil {
		return nil // already exists
	}
	return Save(Default())
}

// Validate rejects settings the engine cannot honor.
func (c *Config) Validate() error {
	p := c.Proximity
	if p.MinDistance < 0 || p.MaxDistance <= p.MinDistance {
		return fmt.Errorf("%w: min_distance=%g max_distance=%g", ErrInvalidDistance, p.MinDistance, p.MaxDistance)
	}
	if p.MinScale < 0 || p.MaxScale > 1 || p.MinScale > p.MaxScale {
		return fmt.Errorf("proximity scales must satisfy 0 <= min_scale <= max_scale <= 1, got %g and %g", p.MinScale, p.MaxScale)
	}
	if c.Cascade.StepIntervalMS < 0 || c.Cascade.DebounceMS < 0 || c.Cascade.IgnitionMS < 0 {
		return errors.New("cascade durations must not be negative")
	}
	if c.Cascade.LiveDepth < 0 {
		return errors.New("cascade.live_depth must not be negative")
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// ProximityModel converts the proximity section.
func (c *Config) ProximityModel() energy.ProximityModel {
	return energy.ProximityModel{
		MinDistance: c.Proximity.MinDistance,
		MaxDistance: c.Proximity.MaxDistance,
		MinScale:    c.Proximity.MinScale,
		MaxScale:    c.Proximity.MaxScale,
	}
}

// VisualStyle converts the style section.
func (c *Config) VisualStyle() effects.Style {
	conv := func(v VisualConfig) effects.Visual {
		return effects.Visual{Scale: v.Scale, Opacity: v.Opacity, Saturation: v.Saturation}
	}
	return effects.Style{Excited: conv(c.Style.Excited), Dampened: conv(c.Style.Dampened)}
}

// StepInterval is the delay between hop depths.
func (c *Config) StepInterval() time.Duration {
	return time.Duration(c.Cascade.StepIntervalMS) * time.Millisecond
}

// Debounce is the live recompute coalescing window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Cascade.DebounceMS) * time.Millisecond
}

// IgnitionLifetime is how long an ignition token lives.
func (c *Config) IgnitionLifetime() time.Duration {
	return time.Duration(c.Cascade.IgnitionMS) * time.Millisecond
}

// TraceDir returns the trace directory, defaulting under ConfigDir.
func (c *Config) TraceDir() string {
	if c.Trace.Dir != "" {
		return c.Trace.Dir
	}
	return filepath.Join(ConfigDir(), "traces")
}
