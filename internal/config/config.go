package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	defaultListenAddr     = ":8080"
	defaultDBPath         = ":memory:"
	defaultEngine         = "imaging"
	defaultResampleFilter = "lanczos"
	defaultQueueSize      = 100
	defaultImageRoot      = "."
	defaultBackground     = "#ffffff"

	envListenAddr     = "THUMB_LISTEN_ADDR"
	envDBPath         = "THUMB_DB_PATH"
	envLogLevel       = "THUMB_LOG_LEVEL"
	envEngine         = "THUMB_ENGINE"
	envResampleFilter = "THUMB_RESAMPLE_FILTER"
	envWorkers        = "THUMB_WORKERS"
	envQueueSize      = "THUMB_QUEUE_SIZE"
	envImageRoot      = "THUMB_IMAGE_ROOT"
	envBackground     = "THUMB_BACKGROUND"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string     `validate:"required"`
	DBPath     string     `validate:"required"`
	LogLevel   slog.Level `validate:"-"`

	// Engine is the registry name used when a request does not pick one.
	Engine         string `validate:"required,oneof=imaging bild"`
	ResampleFilter string `validate:"required,oneof=nearest box linear catmullrom lanczos"`

	// Workers selects the scheduler: 0 runs every job in its own goroutine,
	// N > 0 runs a bounded pool of N workers over a QueueSize-deep queue.
	Workers   int `validate:"gte=0"`
	QueueSize int `validate:"gt=0"`

	ImageRoot  string `validate:"required"`
	Background string `validate:"required,hexcolor"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:     defaultListenAddr,
		DBPath:         defaultDBPath,
		LogLevel:       slog.LevelInfo,
		Engine:         defaultEngine,
		ResampleFilter: defaultResampleFilter,
		QueueSize:      defaultQueueSize,
		ImageRoot:      defaultImageRoot,
		Background:     defaultBackground,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envEngine); v != "" {
		cfg.Engine = strings.ToLower(v)
	}
	if v := os.Getenv(envResampleFilter); v != "" {
		cfg.ResampleFilter = strings.ToLower(v)
	}
	if v := os.Getenv(envWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := os.Getenv(envQueueSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.QueueSize = n
		}
	}
	if v := os.Getenv(envImageRoot); v != "" {
		cfg.ImageRoot = v
	}
	if v := os.Getenv(envBackground); v != "" {
		cfg.Background = v
	}

	return cfg
}

// Validate checks the loaded values against their struct constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
