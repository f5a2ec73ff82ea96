// Package config loads runtime configuration for the reflow demo binary.
//
// Configuration comes from three layers, later layers winning: built-in
// defaults, a TOML file, and REFLOW_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the resolved runtime configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// FlushIterationLimit caps effect-write feedback loops per flush.
	FlushIterationLimit int

	Devtools DevtoolsConfig
	Metrics  MetricsConfig
	S3       S3Config
}

// DevtoolsConfig configures the debug HTTP server.
type DevtoolsConfig struct {
	Enabled bool
	Addr    string
}

// MetricsConfig configures Prometheus export.
type MetricsConfig struct {
	Enabled   bool
	Namespace string
	Subsystem string
}

// S3Config configures the S3-backed demo resource.
type S3Config struct {
	Bucket string
	Key    string
}

// fileConfig maps config.toml keys onto Config fields.
type fileConfig struct {
	LogLevel            string `toml:"log_level"`
	FlushIterationLimit int    `toml:"flush_iteration_limit"`

	Devtools struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
	} `toml:"devtools"`

	Metrics struct {
		Enabled   bool   `toml:"enabled"`
		Namespace string `toml:"namespace"`
		Subsystem string `toml:"subsystem"`
	} `toml:"metrics"`

	S3 struct {
		Bucket string `toml:"bucket"`
		Key    string `toml:"key"`
	} `toml:"s3"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:            "info",
		FlushIterationLimit: 100,
		Devtools: DevtoolsConfig{
			Enabled: true,
			Addr:    "127.0.0.1:6110",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "reflow",
		},
	}
}

// Load resolves configuration from defaults, an optional TOML file, and the
// environment. An empty path skips the file layer.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		var raw fileConfig
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}

		if meta.IsDefined("log_level") {
			cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
		}
		if meta.IsDefined("flush_iteration_limit") {
			cfg.FlushIterationLimit = raw.FlushIterationLimit
		}
		if meta.IsDefined("devtools", "enabled") {
			cfg.Devtools.Enabled = raw.Devtools.Enabled
		}
		if meta.IsDefined("devtools", "addr") {
			cfg.Devtools.Addr = strings.TrimSpace(raw.Devtools.Addr)
		}
		if meta.IsDefined("metrics", "enabled") {
			cfg.Metrics.Enabled = raw.Metrics.Enabled
		}
		if meta.IsDefined("metrics", "namespace") {
			cfg.Metrics.Namespace = strings.TrimSpace(raw.Metrics.Namespace)
		}
		if meta.IsDefined("metrics", "subsystem") {
			cfg.Metrics.Subsystem = strings.TrimSpace(raw.Metrics.Subsystem)
		}
		if meta.IsDefined("s3", "bucket") {
			cfg.S3.Bucket = strings.TrimSpace(raw.S3.Bucket)
		}
		if meta.IsDefined("s3", "key") {
			cfg.S3.Key = strings.TrimSpace(raw.S3.Key)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays REFLOW_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("REFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("REFLOW_FLUSH_ITERATION_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FlushIterationLimit = n
		}
	}
	if v := os.Getenv("REFLOW_DEVTOOLS_ADDR"); v != "" {
		cfg.Devtools.Addr = v
		cfg.Devtools.Enabled = true
	}
	if v := os.Getenv("REFLOW_METRICS_NAMESPACE"); v != "" {
		cfg.Metrics.Namespace = v
	}
	if v := os.Getenv("REFLOW_S3_BUCKET"); v != "" {
		cfg.S3.Bucket = v
	}
	if v := os.Getenv("REFLOW_S3_KEY"); v != "" {
		cfg.S3.Key = v
	}
}

// Validate checks field ranges and enumerations.
func (c Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log_level %q", c.LogLevel)
	}
	if c.FlushIterationLimit < 1 {
		return fmt.Errorf("config: flush_iteration_limit must be positive, got %d", c.FlushIterationLimit)
	}
	if c.Devtools.Enabled && c.Devtools.Addr == "" {
		return fmt.Errorf("config: devtools enabled without an address")
	}
	return nil
}

// SlogLevel translates LogLevel for slog handlers.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
