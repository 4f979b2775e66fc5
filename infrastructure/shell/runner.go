// Package shell runs POSIX shell scripts in-process with mvdan.cc/sh.
package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/reglet-dev/scripthost/domain/ports"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ExitBlocked is the status of a command refused by the exec policy.
const ExitBlocked = 126

// Runner implements ports.ShellRunner on the mvdan.cc/sh interpreter.
// Builtins run in-process; external commands go through an exec policy.
type Runner struct {
	logger       *slog.Logger
	allowedEnv   []string
	maxOutput    int
	external     bool
	interpreters bool
}

var _ ports.ShellRunner = (*Runner)(nil)

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for policy decisions.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithMaxOutput caps captured stdout and stderr, each.
func WithMaxOutput(n int) Option {
	return func(r *Runner) {
		r.maxOutput = n
	}
}

// WithExternalCommands allows or forbids running binaries found in PATH.
func WithExternalCommands(enabled bool) Option {
	return func(r *Runner) {
		r.external = enabled
	}
}

// WithInterpreterCode allows nested shells and interpreters evaluating
// inline code (python -c, node -e and the like).
func WithInterpreterCode(enabled bool) Option {
	return func(r *Runner) {
		r.interpreters = enabled
	}
}

// WithAllowedEnv lets the named gated variables through to scripts.
func WithAllowedEnv(keys ...string) Option {
	return func(r *Runner) {
		for _, k := range keys {
			r.allowedEnv = append(r.allowedEnv, strings.ToUpper(k))
		}
	}
}

// New creates a Runner. By default external commands may run, inline
// interpreter code may not, and only PATH and HOME pass the gated tier.
func New(opts ...Option) *Runner {
	r := &Runner{
		logger:     slog.Default(),
		maxOutput:  DefaultMaxOutput,
		external:   true,
		allowedEnv: []string{"PATH", "HOME"},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run parses and interprets req.Script. A non-zero exit status is reported
// in the result; only parse and interpreter failures are errors.
func (r *Runner) Run(ctx context.Context, req ports.ShellRequest) (*ports.ShellResult, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(req.Script), "sh")
	if err != nil {
		return nil, fmt.Errorf("parse shell script: %w", err)
	}

	env := req.Env
	if env == nil {
		env = os.Environ()
	}
	env = SanitizeEnv(ctx, r.logger, env, r.allowedEnv)

	stdout := newLimitBuffer(r.maxOutput)
	stderr := newLimitBuffer(r.maxOutput)

	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(strings.NewReader(req.Stdin), stdout, stderr),
		interp.ExecHandlers(r.execPolicy),
	}
	if req.Dir != "" {
		opts = append(opts, interp.Dir(req.Dir))
	}
	runner, err := interp.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create shell interpreter: %w", err)
	}

	res := &ports.ShellResult{}
	if err := runner.Run(ctx, prog); err != nil {
		var status interp.ExitStatus
		if !errors.As(err, &status) {
			return nil, fmt.Errorf("run shell script: %w", err)
		}
		res.ExitCode = int(status)
	}
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	res.Truncated = stdout.Truncated() || stderr.Truncated()
	return res, nil
}

// execPolicy refuses external commands the runner is not configured to allow.
func (r *Runner) execPolicy(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		hc := interp.HandlerCtx(ctx)
		if !r.external {
			fmt.Fprintf(hc.Stderr, "%s: external commands are disabled\n", args[0])
			return interp.ExitStatus(ExitBlocked)
		}
		if kind := Classify(args[0], args[1:]); kind != ExecSafe && !r.interpreters {
			r.logger.WarnContext(ctx, "blocked shell command", "command", args[0], "reason", string(kind))
			fmt.Fprintf(hc.Stderr, "%s: %s is not allowed\n", args[0], kind)
			return interp.ExitStatus(ExitBlocked)
		}
		return next(ctx, args)
	}
}
