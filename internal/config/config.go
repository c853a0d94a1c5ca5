package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Athlete     AthleteConfig     `mapstructure:"athlete" yaml:"athlete"`
	AutoSession AutoSessionConfig `mapstructure:"auto_session" yaml:"auto_session"`
	Polling     PollingConfig     `mapstructure:"polling" yaml:"polling"`
	Storage     StorageConfig     `mapstructure:"storage" yaml:"storage"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

// AthleteConfig holds athlete-specific settings
type AthleteConfig struct {
	FTP        int    `mapstructure:"ftp" yaml:"ftp"`
	PowerZones []int  `mapstructure:"power_zones" yaml:"power_zones"` // upper bounds, percent of FTP
	HRZones    []int  `mapstructure:"hr_zones" yaml:"hr_zones"`       // upper bounds, bpm
	MaxHR      int    `mapstructure:"max_hr" yaml:"max_hr"`           // 0 = unset
	Units      string `mapstructure:"units" yaml:"units"`
}

// AutoSessionConfig controls automatic session start/stop
type AutoSessionConfig struct {
	Enabled        bool `mapstructure:"enabled" yaml:"enabled"`
	StartThreshold int  `mapstructure:"start_threshold" yaml:"start_threshold"`
	StopThreshold  int  `mapstructure:"stop_threshold" yaml:"stop_threshold"`
}

// PollingConfig holds the periodic task intervals as duration strings
type PollingConfig struct {
	AutoSession string `mapstructure:"auto_session" yaml:"auto_session"`
	ZoneControl string `mapstructure:"zone_control" yaml:"zone_control"`
	LiveMetrics string `mapstructure:"live_metrics" yaml:"live_metrics"`
}

// StorageConfig defines where sessions are stored
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"` // empty = ~/.ride-analytics/data.db
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// ErrNoConfig is returned when the config file doesn't exist
var ErrNoConfig = errors.New("config file not found")

// PowerZoneCount and HRZoneCount are the number of configured upper bounds
const (
	PowerZoneCount = 6
	HRZoneCount    = 5
)

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Athlete: AthleteConfig{
			FTP:        200,
			PowerZones: []int{55, 75, 90, 105, 120, 150},
			HRZones:    []int{120, 140, 160, 175, 190},
			Units:      "metric",
		},
		AutoSession: AutoSessionConfig{
			Enabled:        true,
			StartThreshold: 5,
			StopThreshold:  3,
		},
		Polling: PollingConfig{
			AutoSession: "1s",
			ZoneControl: "1s",
			LiveMetrics: "250ms",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration from path, or ~/.ride-analytics/config.yaml
// when path is empty. RIDE_ prefixed environment variables override the file.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoConfig
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("RIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so env overrides apply even when the file omits it
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	// Athlete defaults
	v.SetDefault("athlete.ftp", d.Athlete.FTP)
	v.SetDefault("athlete.power_zones", d.Athlete.PowerZones)
	v.SetDefault("athlete.hr_zones", d.Athlete.HRZones)
	v.SetDefault("athlete.max_hr", d.Athlete.MaxHR)
	v.SetDefault("athlete.units", d.Athlete.Units)

	// Auto-session defaults
	v.SetDefault("auto_session.enabled", d.AutoSession.Enabled)
	v.SetDefault("auto_session.start_threshold", d.AutoSession.StartThreshold)
	v.SetDefault("auto_session.stop_threshold", d.AutoSession.StopThreshold)

	// Polling defaults
	v.SetDefault("polling.auto_session", d.Polling.AutoSession)
	v.SetDefault("polling.zone_control", d.Polling.ZoneControl)
	v.SetDefault("polling.live_metrics", d.Polling.LiveMetrics)

	v.SetDefault("storage.path", d.Storage.Path)

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Save writes the configuration to path as YAML
func Save(path string, cfg *Config) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CreateExample writes the default configuration to path if no file exists there.
// It reports whether a file was written.
func CreateExample(path string) (bool, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return false, err
		}
		path = p
	}

	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	example := DefaultConfig()
	if err := Save(path, &example); err != nil {
		return false, err
	}
	return true, nil
}

// Validate checks the config for values the analytics can't work with
func (c *Config) Validate() error {
	if c.Athlete.FTP <= 0 {
		return fmt.Errorf("athlete.ftp must be positive, got %d", c.Athlete.FTP)
	}
	if err := ascending("athlete.power_zones", c.Athlete.PowerZones, PowerZoneCount); err != nil {
		return err
	}
	if err := ascending("athlete.hr_zones", c.Athlete.HRZones, HRZoneCount); err != nil {
		return err
	}

	// max_hr must sit above the top HR zone when set
	if c.Athlete.MaxHR < 0 {
		return fmt.Errorf("athlete.max_hr must not be negative, got %d", c.Athlete.MaxHR)
	}
	if top := c.Athlete.HRZones[HRZoneCount-1]; c.Athlete.MaxHR > 0 && c.Athlete.MaxHR <= top {
		return fmt.Errorf("athlete.max_hr (%d) must be greater than the top hr zone bound (%d)", c.Athlete.MaxHR, top)
	}

	if c.Athlete.Units != "metric" && c.Athlete.Units != "imperial" {
		return fmt.Errorf("athlete.units must be \"metric\" or \"imperial\", got %q", c.Athlete.Units)
	}

	if c.AutoSession.StartThreshold <= 0 {
		return fmt.Errorf("auto_session.start_threshold must be positive, got %d", c.AutoSession.StartThreshold)
	}
	if c.AutoSession.StopThreshold <= 0 {
		return fmt.Errorf("auto_session.stop_threshold must be positive, got %d", c.AutoSession.StopThreshold)
	}

	for key, value := range map[string]string{
		"polling.auto_session": c.Polling.AutoSession,
		"polling.zone_control": c.Polling.ZoneControl,
		"polling.live_metrics": c.Polling.LiveMetrics,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, value)
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be \"json\" or \"text\", got %q", c.Logging.Format)
	}

	return nil
}

// ascending checks a zone bound list has exactly n strictly increasing positive values
func ascending(key string, bounds []int, n int) error {
	if len(bounds) != n {
		return fmt.Errorf("%s must have exactly %d values, got %d", key, n, len(bounds))
	}
	for i, b := range bounds {
		if b <= 0 {
			return fmt.Errorf("%s[%d] must be positive, got %d", key, i, b)
		}
		if i > 0 && b <= bounds[i-1] {
			return fmt.Errorf("%s must be strictly ascending, %d follows %d", key, b, bounds[i-1])
		}
	}
	return nil
}

// Intervals returns the parsed polling intervals. Call after Validate.
func (p PollingConfig) Intervals() (autoSession, zoneControl, liveMetrics time.Duration) {
	autoSession, _ = time.ParseDuration(p.AutoSession)
	zoneControl, _ = time.ParseDuration(p.ZoneControl)
	liveMetrics, _ = time.ParseDuration(p.LiveMetrics)
	return autoSession, zoneControl, liveMetrics
}

// DefaultPath returns the path to the config file
func DefaultPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".ride-analytics"), nil
}
