package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Proximity.MinDistance != 60 || cfg.Proximity.MaxDistance != 240 {
		t.Errorf("unexpected distance thresholds %+v", cfg.Proximity)
	}
	if cfg.Proximity.MinScale != 0 || cfg.Proximity.MaxScale != 1 {
		t.Errorf("unexpected scales %+v", cfg.Proximity)
	}
	if cfg.StepInterval() != 150*time.Millisecond {
		t.Errorf("expected 150ms step, got %v", cfg.StepInterval())
	}
	if cfg.Debounce() != 500*time.Millisecond {
		t.Errorf("expected 500ms debounce, got %v", cfg.Debounce())
	}
	if cfg.IgnitionLifetime() != 600*time.Millisecond {
		t.Errorf("expected 600ms ignition, got %v", cfg.IgnitionLifetime())
	}
	if !cfg.UI.Color {
		t.Error("default color should be true")
	}
	if cfg.Serve.Addr != ":7780" {
		t.Errorf("expected serve addr ':7780', got %q", cfg.Serve.Addr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/test-xdg")
	dir := ConfigDir()
	if dir != "/tmp/test-xdg/ripple" {
		t.Errorf("expected /tmp/test-xdg/ripple, got %q", dir)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	dir = ConfigDir()
	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".config", "ripple")
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	cfg := Default()
	cfg.Cascade.StepIntervalMS = 90
	cfg.Style.Excited.Scale = 2

	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.StepInterval() != 90*time.Millisecond {
		t.Errorf("expected 90ms, got %v", loaded.StepInterval())
	}
	if loaded.VisualStyle().Excited.Scale != 2 {
		t.Errorf("expected excited scale 2, got %v", loaded.VisualStyle().Excited.Scale)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Proximity.MaxDistance != 240 {
		t.Errorf("expected defaults, got %+v", cfg.Proximity)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte("[cascade]\nlive_depth = 4\n"), 0o644)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Cascade.LiveDepth != 4 {
		t.Errorf("expected live_depth 4, got %d", cfg.Cascade.LiveDepth)
	}
	if cfg.Cascade.DebounceMS != 500 {
		t.Errorf("expected default debounce kept, got %d", cfg.Cascade.DebounceMS)
	}
}

func TestLoadRejectsInvertedThresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte("[proximity]\nmin_distance = 200\nmax_distance = 100\n"), 0o644)

	_, err := LoadFile(path)
	if !errors.Is(err, ErrInvalidDistance) {
		t.Fatalf("expected ErrInvalidDistance, got %v", err)
	}
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte("[proximity\n"), 0o644)

	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"equal thresholds", func(c *Config) { c.Proximity.MaxDistance = c.Proximity.MinDistance }, true},
		{"scale above one", func(c *Config) { c.Proximity.MaxScale = 1.5 }, true},
		{"scales inverted", func(c *Config) { c.Proximity.MinScale = 0.9; c.Proximity.MaxScale = 0.1 }, true},
		{"negative debounce", func(c *Config) { c.Cascade.DebounceMS = -1 }, true},
		{"json logs", func(c *Config) { c.Log.Format = "json" }, false},
		{"xml logs", func(c *Config) { c.Log.Format = "xml" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnsureExists(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	if err := EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}

	path := filepath.Join(tmpDir, "ripple", "config.toml")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not created: %v", err)
	}

	// Second call should be no-op
	if err := EnsureExists(); err != nil {
		t.Fatalf("EnsureExists second call failed: %v", err)
	}
}

func TestTraceDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/x")
	cfg := Default()
	if got := cfg.TraceDir(); got != "/tmp/x/ripple/traces" {
		t.Errorf("unexpected trace dir %q", got)
	}
	cfg.Trace.Dir = "/var/traces"
	if got := cfg.TraceDir(); got != "/var/traces" {
		t.Errorf("unexpected trace dir %q", got)
	}
}
