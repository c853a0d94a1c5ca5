package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Test athlete defaults
	if cfg.Athlete.FTP != 200 {
		t.Errorf("Athlete.FTP = %v, want 200", cfg.Athlete.FTP)
	}
	if len(cfg.Athlete.PowerZones) != PowerZoneCount {
		t.Errorf("len(Athlete.PowerZones) = %d, want %d", len(cfg.Athlete.PowerZones), PowerZoneCount)
	}
	if len(cfg.Athlete.HRZones) != HRZoneCount {
		t.Errorf("len(Athlete.HRZones) = %d, want %d", len(cfg.Athlete.HRZones), HRZoneCount)
	}
	if cfg.Athlete.MaxHR != 0 {
		t.Errorf("Athlete.MaxHR = %v, want 0 (unset)", cfg.Athlete.MaxHR)
	}

	// Test auto-session defaults
	if !cfg.AutoSession.Enabled {
		t.Error("AutoSession.Enabled should default to true")
	}
	if cfg.AutoSession.StartThreshold != 5 || cfg.AutoSession.StopThreshold != 3 {
		t.Errorf("thresholds = %d/%d, want 5/3", cfg.AutoSession.StartThreshold, cfg.AutoSession.StopThreshold)
	}

	// Defaults must pass their own validation
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(c *Config)
		expectError bool
		errContains string
	}{
		{
			name:        "valid config",
			modify:      func(c *Config) {},
			expectError: false,
		},
		{
			name:        "valid max HR",
			modify:      func(c *Config) { c.Athlete.MaxHR = 195 },
			expectError: false,
		},
		{
			name:        "zero FTP",
			modify:      func(c *Config) { c.Athlete.FTP = 0 },
			expectError: true,
			errContains: "athlete.ftp",
		},
		{
			name:        "too few power zones",
			modify:      func(c *Config) { c.Athlete.PowerZones = []int{55, 75, 90} },
			expectError: true,
			errContains: "power_zones",
		},
		{
			name:        "power zones not ascending",
			modify:      func(c *Config) { c.Athlete.PowerZones = []int{55, 75, 75, 105, 120, 150} },
			expectError: true,
			errContains: "strictly ascending",
		},
		{
			name:        "hr zones wrong length",
			modify:      func(c *Config) { c.Athlete.HRZones = []int{120, 140, 160, 175, 190, 200} },
			expectError: true,
			errContains: "hr_zones",
		},
		{
			name:        "max HR below top zone",
			modify:      func(c *Config) { c.Athlete.MaxHR = 185 },
			expectError: true,
			errContains: "max_hr",
		},
		{
			name:        "bad units",
			modify:      func(c *Config) { c.Athlete.Units = "furlongs" },
			expectError: true,
			errContains: "units",
		},
		{
			name:        "zero start threshold",
			modify:      func(c *Config) { c.AutoSession.StartThreshold = 0 },
			expectError: true,
			errContains: "start_threshold",
		},
		{
			name:        "unparseable interval",
			modify:      func(c *Config) { c.Polling.ZoneControl = "soon" },
			expectError: true,
			errContains: "polling.zone_control",
		},
		{
			name:        "negative interval",
			modify:      func(c *Config) { c.Polling.LiveMetrics = "-1s" },
			expectError: true,
			errContains: "polling.live_metrics",
		},
		{
			name:        "bad log level",
			modify:      func(c *Config) { c.Logging.Level = "verbose" },
			expectError: true,
			errContains: "logging.level",
		},
		{
			name:        "bad log format",
			modify:      func(c *Config) { c.Logging.Format = "xml" },
			expectError: true,
			errContains: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				} else if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q should contain %q", err.Error(), tt.errContains)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if !errors.Is(err, ErrNoConfig) {
		t.Errorf("Load() error = %v, want ErrNoConfig", err)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "athlete:\n  ftp: 275\n  max_hr: 198\nlogging:\n  format: json\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Athlete.FTP != 275 {
		t.Errorf("Athlete.FTP = %d, want 275", cfg.Athlete.FTP)
	}
	if cfg.Athlete.MaxHR != 198 {
		t.Errorf("Athlete.MaxHR = %d, want 198", cfg.Athlete.MaxHR)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
	// Missing keys fall back to defaults
	if len(cfg.Athlete.PowerZones) != PowerZoneCount || cfg.Athlete.PowerZones[0] != 55 {
		t.Errorf("Athlete.PowerZones = %v, want defaults", cfg.Athlete.PowerZones)
	}
	if cfg.AutoSession.StartThreshold != 5 {
		t.Errorf("AutoSession.StartThreshold = %d, want 5", cfg.AutoSession.StartThreshold)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("athlete:\n  ftp: 250\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RIDE_ATHLETE_FTP", "310")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Athlete.FTP != 310 {
		t.Errorf("Athlete.FTP = %d, want 310 from env", cfg.Athlete.FTP)
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("athlete:\n  ftp: -5\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() should reject a negative FTP")
	}
	if errors.Is(err, ErrNoConfig) {
		t.Error("invalid config should not report ErrNoConfig")
	}
}

func TestCreateExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	written, err := CreateExample(path)
	if err != nil {
		t.Fatalf("CreateExample() error = %v", err)
	}
	if !written {
		t.Error("CreateExample() should write a new file")
	}

	// Example round-trips through Load
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() of example error = %v", err)
	}
	if cfg.Athlete.FTP != 200 {
		t.Errorf("Athlete.FTP = %d, want 200", cfg.Athlete.FTP)
	}

	// Existing file is left alone
	if err := os.WriteFile(path, []byte("athlete:\n  ftp: 300\n"), 0600); err != nil {
		t.Fatal(err)
	}
	written, err = CreateExample(path)
	if err != nil {
		t.Fatalf("second CreateExample() error = %v", err)
	}
	if written {
		t.Error("CreateExample() should not overwrite an existing file")
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "300") {
		t.Error("existing config was overwritten")
	}
}

func TestIntervals(t *testing.T) {
	autoSession, zoneControl, liveMetrics := DefaultConfig().Polling.Intervals()
	if autoSession.Seconds() != 1 || zoneControl.Seconds() != 1 {
		t.Errorf("intervals = %v/%v, want 1s/1s", autoSession, zoneControl)
	}
	if liveMetrics.Milliseconds() != 250 {
		t.Errorf("live metrics interval = %v, want 250ms", liveMetrics)
	}
}
