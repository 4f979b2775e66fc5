// Package log builds the process logger: a log/slog Logger whose handler is
// a charmbracelet/log logger writing human-readable lines to stderr.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Format selects the line format.
type Format string

const (
	FormatText   Format = "text"
	FormatJSON   Format = "json"
	FormatLogfmt Format = "logfmt"
)

// Option configures New.
type Option func(*loggerConfig)

type loggerConfig struct {
	writer    io.Writer
	level     string
	format    Format
	prefix    string
	timestamp bool
}

func defaultLoggerConfig() loggerConfig {
	return loggerConfig{
		writer: os.Stderr,
		level:  "warn",
		format: FormatText,
	}
}

// WithLevel sets the minimum level by name (debug, info, warn, error).
func WithLevel(level string) Option {
	return func(c *loggerConfig) {
		c.level = level
	}
}

// WithWriter redirects output. The default is os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(c *loggerConfig) {
		c.writer = w
	}
}

// WithFormat selects text, json or logfmt output.
func WithFormat(f Format) Option {
	return func(c *loggerConfig) {
		c.format = f
	}
}

// WithPrefix prepends prefix to every line.
func WithPrefix(prefix string) Option {
	return func(c *loggerConfig) {
		c.prefix = prefix
	}
}

// WithTimestamp enables timestamps.
func WithTimestamp(enabled bool) Option {
	return func(c *loggerConfig) {
		c.timestamp = enabled
	}
}

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	lvl, err := charmlog.ParseLevel(name)
	if err != nil {
		return 0, err
	}
	return slog.Level(lvl), nil
}

// New returns a slog.Logger backed by charmbracelet/log.
func New(opts ...Option) (*slog.Logger, error) {
	cfg := defaultLoggerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	lvl, err := charmlog.ParseLevel(cfg.level)
	if err != nil {
		return nil, err
	}

	var formatter charmlog.Formatter
	switch cfg.format {
	case FormatText, "":
		formatter = charmlog.TextFormatter
	case FormatJSON:
		formatter = charmlog.JSONFormatter
	case FormatLogfmt:
		formatter = charmlog.LogfmtFormatter
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.format)
	}

	handler := charmlog.NewWithOptions(cfg.writer, charmlog.Options{
		Level:           lvl,
		Prefix:          cfg.prefix,
		ReportTimestamp: cfg.timestamp,
		Formatter:       formatter,
	})
	return slog.New(handler), nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
