// Package config provides configuration loading for devjournal.
//
// Configuration is read from a YAML file, overridden by environment
// variables, with hardcoded defaults filling whatever is left.
package config

import (
	"fmt"
	"time"
)

// Config holds the complete devjournal configuration.
type Config struct {
	Storage     StorageConfig     `koanf:"storage"`
	Logging     LoggingConfig     `koanf:"logging"`
	Watch       WatchConfig       `koanf:"watch"`
	Maintenance MaintenanceConfig `koanf:"maintenance"`
}

// StorageConfig locates the journal database.
type StorageConfig struct {
	Path string `koanf:"path"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json or console
}

// WatchConfig tunes the change detector and the report watcher.
type WatchConfig struct {
	Debounce      time.Duration `koanf:"debounce"`
	FlushInterval time.Duration `koanf:"flush_interval"`
	ReportDirs    []string      `koanf:"report_dirs"`
}

// MaintenanceConfig tunes the background reflection sweep.
type MaintenanceConfig struct {
	Enabled       bool          `koanf:"enabled"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	// Mirrors the detector's own defaults so file and detector agree.
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.FlushInterval == 0 {
		cfg.Watch.FlushInterval = 5 * time.Second
	}
	if cfg.Maintenance.SweepInterval == 0 {
		cfg.Maintenance.SweepInterval = 24 * time.Hour
	}
}

// Validate rejects configurations the rest of the program cannot run on.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format %q", c.Logging.Format)
	}
	if c.Watch.Debounce < 0 || c.Watch.FlushInterval < 0 {
		return fmt.Errorf("watch intervals must not be negative")
	}
	if c.Maintenance.SweepInterval < time.Minute {
		return fmt.Errorf("maintenance sweep interval %s is below the 1m floor", c.Maintenance.SweepInterval)
	}
	return nil
}
