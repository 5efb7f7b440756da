// Package config loads the garden service configuration: embedded
// defaults, an optional YAML overlay, then environment overrides.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/talgya/mini-garden/internal/engine"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Garden   GardenConfig   `yaml:"garden"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Port        int           `yaml:"port"`
	AdminKey    string        `yaml:"admin_key"`
	RelayKey    string        `yaml:"relay_key"`
	CORSOrigins []string      `yaml:"cors_origins"`
	RateLimit   int           `yaml:"rate_limit"` // Admin requests per client per window
	RateWindow  time.Duration `yaml:"rate_window"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	DBPath      string `yaml:"db_path"` // Empty disables persistence
	EventBuffer int    `yaml:"event_buffer"`
}

// GardenConfig describes the initial garden.
type GardenConfig struct {
	Rows     int    `yaml:"rows"`
	Cols     int    `yaml:"cols"`
	Seed     int64  `yaml:"seed"`
	SeedFile string `yaml:"seed_file"`
	Layout   string `yaml:"layout"`
}

// ScheduleConfig holds the automation schedule. Counts are in ticks.
type ScheduleConfig struct {
	Autostart       bool          `yaml:"autostart"`
	Interval        time.Duration `yaml:"interval"`
	WaterEvery      int           `yaml:"water_every"`
	WaterOdds       int           `yaml:"water_odds"`
	InfestOdds      int           `yaml:"infest_odds"`
	EventEvery      int           `yaml:"event_every"`
	WaterBatchTicks int           `yaml:"water_batch_ticks"`
	ReportTicks     int           `yaml:"report_ticks"`
	RecentEvents    int           `yaml:"recent_events"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Layout modes.
const (
	LayoutNoise  = "noise"
	LayoutRandom = "random"
)

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the embedded defaults and merges the YAML file at path over
// them. An empty path uses the defaults alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only fields present in the file are overwritten.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	return cfg, nil
}

// FromEnv loads the file named by GARDENSIM_CONFIG (if any), applies the
// environment overrides and validates the result.
func FromEnv() (*Config, error) {
	cfg, err := Load(os.Getenv("GARDENSIM_CONFIG"))
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables read through
// getenv. Unset variables leave the field alone; malformed numbers are
// reported together.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	var errs error
	if v := getenv("GARDENSIM_ADMIN_KEY"); v != "" {
		c.Server.AdminKey = v
	}
	if v := getenv("GARDENSIM_RELAY_KEY"); v != "" {
		c.Server.RelayKey = v
	}
	if v := getenv("GARDENSIM_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("GARDENSIM_PORT: %w", err))
		} else {
			c.Server.Port = n
		}
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.CORSOrigins = append(c.Server.CORSOrigins, o)
			}
		}
	}
	if v := getenv("GARDENSIM_DB"); v != "" {
		c.Storage.DBPath = v
	}
	if v := getenv("GARDENSIM_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("GARDENSIM_SEED: %w", err))
		} else {
			c.Garden.Seed = n
		}
	}
	if v := getenv("GARDENSIM_SEED_FILE"); v != "" {
		c.Garden.SeedFile = v
	}
	return errs
}

// Validate checks sizes and durations. All problems are reported at once.
func (c *Config) Validate() error {
	var errs error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}
	check(c.Server.Port > 0 && c.Server.Port < 65536, "server.port %d out of range", c.Server.Port)
	check(c.Server.RateLimit > 0, "server.rate_limit must be positive")
	check(c.Server.RateWindow > 0, "server.rate_window must be positive")
	check(c.Storage.EventBuffer > 0, "storage.event_buffer must be positive")
	check(c.Garden.Rows > 0 && c.Garden.Cols > 0, "garden size %dx%d", c.Garden.Rows, c.Garden.Cols)
	check(c.Garden.Layout == LayoutNoise || c.Garden.Layout == LayoutRandom, "garden.layout %q", c.Garden.Layout)
	check(c.Schedule.Interval > 0, "schedule.interval must be positive")
	check(c.Schedule.ShutdownTimeout > 0, "schedule.shutdown_timeout must be positive")
	check(c.Schedule.RecentEvents > 0, "schedule.recent_events must be positive")
	return errs
}

// SimOptions maps the schedule onto simulation options. Logger, random
// source and sink are supplied by the caller.
func (c *Config) SimOptions(log *slog.Logger) engine.Options {
	opts := engine.DefaultOptions()
	opts.Rows, opts.Cols = c.Garden.Rows, c.Garden.Cols
	opts.WaterEvery = c.Schedule.WaterEvery
	opts.WaterOdds = c.Schedule.WaterOdds
	opts.InfestOdds = c.Schedule.InfestOdds
	opts.EventEvery = c.Schedule.EventEvery
	opts.WaterBatchTicks = c.Schedule.WaterBatchTicks
	opts.ReportTicks = c.Schedule.ReportTicks
	opts.RecentEvents = c.Schedule.RecentEvents
	opts.StopTimeout = c.Schedule.ShutdownTimeout
	opts.Logger = log
	return opts
}

// LogLevel parses Logging.Level. "event" selects the garden event level.
func (c *Config) LogLevel() slog.Level {
	if strings.EqualFold(c.Logging.Level, "debug") {
		return slog.LevelDebug
	}
	return engine.ParseLevel(c.Logging.Level)
}
