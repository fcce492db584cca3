// Package logging configures the global zerolog logger used by mediafetch.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs every processed item and page.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs run milestones.
	LevelInfo LogLevel = "info"

	// LevelWarn logs failed items and cache errors.
	LevelWarn LogLevel = "warn"

	// LevelError logs fatal setup errors only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool

	// Output receives log lines (default: os.Stderr). The download report
	// goes to stdout, so logs stay out of its way.
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelWarn,
		Pretty: true,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	zerolog.SetGlobalLevel(ParseLevel(string(cfg.Level)))

	output := cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to a zerolog.Level. Unknown names fall
// back to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a logger tagged with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: per-item and per-page detail
//   - Item processed (item_id, outcome, bytes)
//   - Page fetched (cursor, items)
//   - Cache hit/miss and revalidation
//
// Info: run milestones
//   - Profile resolved, run complete, metrics server started
//
// Warn: conditions that lose an item or a page but not the run
//   - Item download failed
//   - Page fetch failed (stream ends early)
//   - Cache errors (request proceeds without cache)
//
// Error: setup failures that abort the run
//
// Context Fields:
//   - component: download, pagination, client, cache
//   - item_id: media identifier (shortcode)
//   - cursor: pagination cursor
//   - endpoint: profile, page or media
//   - status_code, error_class, duration
