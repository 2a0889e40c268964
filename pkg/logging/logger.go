// Package logging configures structured logging with zerolog.
//
// Components never log through the global logger: they receive a
// zerolog.Logger from their caller, usually one derived with WithComponent.
// Tests pass zerolog.Nop().
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// New builds a root logger from cfg. It does not touch zerolog's global state.
func New(cfg Config) zerolog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
}

// WithComponent returns a child logger tagged with the component name.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Log Level Guidelines:
//
// Debug: per-page and per-item detail
//   - Cache hit/miss/put/expired (key = fingerprint)
//   - Page loaded (page, total_count, items)
//   - Pagination stop reason
//   - Duplicate items, existing files
//
// Info: run milestones
//   - Search started/finished, item and download counts
//
// Warn: degraded but continuing
//   - Rate limit low or spent
//   - Unparsable rate limit headers
//   - Corrupt files skipped during a cache sweep
//
// Error: the run is about to abort
//   - Failed requests
//   - Requests refused because the rate limit is exhausted
//
// Context Fields:
//   - component: emitting component
//   - key: cache fingerprint
//   - page: 1-based page index
//   - repo, path: item identity
//   - status, error_class: failed request details
//   - remaining, reset_at: rate limit state
