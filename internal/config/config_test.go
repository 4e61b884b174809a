package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		envListenAddr, envDBPath, envLogLevel, envEngine, envResampleFilter,
		envWorkers, envQueueSize, envImageRoot, envBackground,
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.ListenAddr != defaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, defaultListenAddr)
	}
	if cfg.DBPath != defaultDBPath {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, defaultDBPath)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
	if cfg.Engine != "imaging" {
		t.Errorf("Engine = %q, want imaging", cfg.Engine)
	}
	if cfg.ResampleFilter != "lanczos" {
		t.Errorf("ResampleFilter = %q, want lanczos", cfg.ResampleFilter)
	}
	if cfg.Workers != 0 {
		t.Errorf("Workers = %d, want 0", cfg.Workers)
	}
	if cfg.QueueSize != defaultQueueSize {
		t.Errorf("QueueSize = %d, want %d", cfg.QueueSize, defaultQueueSize)
	}
	if cfg.Background != "#ffffff" {
		t.Errorf("Background = %q, want #ffffff", cfg.Background)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(envListenAddr, ":9090")
	t.Setenv(envDBPath, "/tmp/test.db")
	t.Setenv(envLogLevel, "debug")
	t.Setenv(envEngine, "BILD")
	t.Setenv(envResampleFilter, "Linear")
	t.Setenv(envWorkers, "4")
	t.Setenv(envQueueSize, "16")
	t.Setenv(envImageRoot, "/srv/images")
	t.Setenv(envBackground, "#000000")

	cfg := Load()

	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9090")
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/test.db")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if cfg.Engine != "bild" {
		t.Errorf("Engine = %q, want bild", cfg.Engine)
	}
	if cfg.ResampleFilter != "linear" {
		t.Errorf("ResampleFilter = %q, want linear", cfg.ResampleFilter)
	}
	if cfg.Workers != 4 || cfg.QueueSize != 16 {
		t.Errorf("Workers/QueueSize = %d/%d, want 4/16", cfg.Workers, cfg.QueueSize)
	}
	if cfg.ImageRoot != "/srv/images" {
		t.Errorf("ImageRoot = %q", cfg.ImageRoot)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv(envWorkers, "many")
	t.Setenv(envQueueSize, "lots")

	cfg := Load()
	if cfg.Workers != 0 || cfg.QueueSize != defaultQueueSize {
		t.Errorf("Workers/QueueSize = %d/%d, want defaults", cfg.Workers, cfg.QueueSize)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown engine", func(c *Config) { c.Engine = "magick" }},
		{"unknown filter", func(c *Config) { c.ResampleFilter = "bicubic-ish" }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"zero queue", func(c *Config) { c.QueueSize = 0 }},
		{"bad background", func(c *Config) { c.Background = "white" }},
		{"empty root", func(c *Config) { c.ImageRoot = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg := Load()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), "validate config") {
				t.Errorf("error = %v, want wrapped validate config error", err)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		got := parseLogLevel(tt.input)
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLoggerOutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}

	logger.Info("test message", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("logger output is not valid JSON: %v\noutput: %s", err, buf.String())
	}

	for _, key := range []string{"time", "level", "msg"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("JSON output missing expected key %q", key)
		}
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", entry["msg"], "test message")
	}
}
