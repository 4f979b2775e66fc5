package host

import (
	"io"
	"log/slog"

	"github.com/reglet-dev/scripthost/application/config"
	"github.com/reglet-dev/scripthost/domain/ports"
	"github.com/reglet-dev/scripthost/hostfuncs"
)

// Option configures a Host.
type Option func(*hostConfig)

type hostConfig struct {
	cfg        *config.Config
	logger     *slog.Logger
	stdin      io.Reader
	stdout     io.Writer
	shell      ports.ShellRunner
	modules    []hostfuncs.Module
	middleware []hostfuncs.Middleware
}

// WithConfig sets the host configuration. The default is config.DefaultConfig().
func WithConfig(cfg *config.Config) Option {
	return func(c *hostConfig) {
		c.cfg = cfg
	}
}

// WithLogger sets the logger used by the host and its capabilities.
func WithLogger(logger *slog.Logger) Option {
	return func(c *hostConfig) {
		c.logger = logger
	}
}

// WithStdin replaces process standard input as the source of stdin().
func WithStdin(r io.Reader) Option {
	return func(c *hostConfig) {
		c.stdin = r
	}
}

// WithOutput routes print() and debug() to w.
func WithOutput(w io.Writer) Option {
	return func(c *hostConfig) {
		c.stdout = w
	}
}

// WithShellRunner replaces the mvdan.cc/sh runner behind the sh module.
func WithShellRunner(r ports.ShellRunner) Option {
	return func(c *hostConfig) {
		c.shell = r
	}
}

// WithModules registers extra capability modules after the built-in ones.
func WithModules(mods ...hostfuncs.Module) Option {
	return func(c *hostConfig) {
		c.modules = append(c.modules, mods...)
	}
}

// WithMiddleware adds capability middleware inside the built-in panic
// recovery and logging layers.
func WithMiddleware(mw ...hostfuncs.Middleware) Option {
	return func(c *hostConfig) {
		c.middleware = append(c.middleware, mw...)
	}
}
