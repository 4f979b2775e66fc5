package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/reglet-dev/scripthost/application/config"
	domainerrors "github.com/reglet-dev/scripthost/domain/errors"
	"github.com/reglet-dev/scripthost/host"
	"github.com/reglet-dev/scripthost/log"
	"github.com/spf13/cobra"
)

// app holds the streams and flag values shared by all commands.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// env replaces the process environment for config overrides when set.
	env func(string) (string, bool)

	// newLineReader opens the interactive line editor for repl.
	newLineReader func(complete func(string) []string) (lineReader, error)

	configFile string
	logLevel   string
	enable     []string
	disable    []string
}

func newApp() *app {
	return &app{
		stdin:         os.Stdin,
		stdout:        os.Stdout,
		stderr:        os.Stderr,
		newLineReader: newLinerReader,
	}
}

// run executes the command line and returns the process exit status.
func run(ctx context.Context, a *app, args []string) int {
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetIn(a.stdin)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintf(a.stderr, "scripthost: %v\n", err)

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	// Flag and argument errors from cobra are invalid CLI input.
	return host.ExitCode(&domainerrors.ConfigError{Field: "args", Err: err})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "scripthost [flags] <script>",
		Short: "Run a script against the host capability surface",
		Long: `scripthost reads one script file and runs it to completion.

Host capabilities (io, record, ops, codec, sh, wasm) are enabled through
feature gates in the configuration file, SCRIPTHOST_* environment variables
or the --enable and --disable flags.

Exit status is 0 on success, 1 on a script, I/O or decode failure and 2 on
invalid configuration or command-line input.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withHost(cmd.Context(), func(h *host.Host) error {
				_, err := h.RunFile(cmd.Context(), args[0])
				return err
			})
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (yaml, toml or json)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringSliceVar(&a.enable, "enable", nil, "enable feature gates, e.g. --enable shell")
	flags.StringSliceVar(&a.disable, "disable", nil, "disable feature gates, e.g. --disable wasm")

	root.AddCommand(newDescribeCmd(a))
	root.AddCommand(newReplCmd(a))
	return root
}

// loadConfig merges the config file, the environment and the flags.
func (a *app) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx, config.LoadOptions{File: a.configFile, Env: a.env})
	if err != nil {
		return nil, err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	cfg.Enable(a.enable...)
	cfg.Disable(a.disable...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *app) newLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := log.New(
		log.WithLevel(cfg.LogLevel),
		log.WithWriter(a.stderr),
		log.WithPrefix("scripthost"),
	)
	if err != nil {
		return nil, &domainerrors.ConfigError{Field: "log_level", Err: err}
	}
	return logger, nil
}

// withHost builds a host from configuration, calls fn and closes the host.
// Every failure is returned as an ExitError.
func (a *app) withHost(ctx context.Context, fn func(*host.Host) error) error {
	err := a.runWithHost(ctx, fn)
	if err == nil {
		return nil
	}
	return &ExitError{Err: err, Code: host.ExitCode(err)}
}

func (a *app) runWithHost(ctx context.Context, fn func(*host.Host) error) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}
	logger, err := a.newLogger(cfg)
	if err != nil {
		return err
	}

	h, err := host.New(ctx,
		host.WithConfig(cfg),
		host.WithLogger(logger),
		host.WithStdin(a.stdin),
		host.WithOutput(a.stdout),
	)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := h.Close(context.WithoutCancel(ctx)); cerr != nil {
			logger.WarnContext(ctx, "failed to release host resources", "error", cerr)
		}
	}()
	return fn(h)
}
