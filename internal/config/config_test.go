package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("default log_level = %q", cfg.LogLevel)
	}
	if cfg.FlushIterationLimit != 100 {
		t.Errorf("default flush_iteration_limit = %d", cfg.FlushIterationLimit)
	}
	if !cfg.Devtools.Enabled || cfg.Devtools.Addr == "" {
		t.Errorf("default devtools = %+v", cfg.Devtools)
	}
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := writeTempConfig(t, `
log_level = "debug"
flush_iteration_limit = 25

[devtools]
enabled = false

[metrics]
namespace = "myapp"
subsystem = "graph"

[s3]
bucket = "configs"
key = "flags.json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q", cfg.LogLevel)
	}
	if cfg.FlushIterationLimit != 25 {
		t.Errorf("flush_iteration_limit = %d", cfg.FlushIterationLimit)
	}
	if cfg.Devtools.Enabled {
		t.Error("devtools should be disabled")
	}
	// Addr keeps its default when the file only flips the enable bit.
	if cfg.Devtools.Addr != "127.0.0.1:6110" {
		t.Errorf("devtools.addr = %q", cfg.Devtools.Addr)
	}
	if cfg.Metrics.Namespace != "myapp" || cfg.Metrics.Subsystem != "graph" {
		t.Errorf("metrics = %+v", cfg.Metrics)
	}
	if cfg.S3.Bucket != "configs" || cfg.S3.Key != "flags.json" {
		t.Errorf("s3 = %+v", cfg.S3)
	}
}

func TestLoadEnvWinsOverFile(t *testing.T) {
	path := writeTempConfig(t, `log_level = "warn"`)
	t.Setenv("REFLOW_LOG_LEVEL", "error")
	t.Setenv("REFLOW_DEVTOOLS_ADDR", "0.0.0.0:7000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("log_level = %q, want env override", cfg.LogLevel)
	}
	if cfg.Devtools.Addr != "0.0.0.0:7000" {
		t.Errorf("devtools.addr = %q, want env override", cfg.Devtools.Addr)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	if _, err := Load(writeTempConfig(t, `log_level = "loud"`)); err == nil {
		t.Error("expected error for bad log_level")
	}
	if _, err := Load(writeTempConfig(t, `flush_iteration_limit = 0`)); err == nil {
		t.Error("expected error for zero iteration limit")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for name, want := range cases {
		c := Config{LogLevel: name}
		if got := c.SlogLevel(); got != want {
			t.Errorf("SlogLevel(%s) = %v, want %v", name, got, want)
		}
	}
}
