package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/reglet-dev/scripthost/application/config"
	"github.com/reglet-dev/scripthost/domain/entities"
	domainerrors "github.com/reglet-dev/scripthost/domain/errors"
	"github.com/reglet-dev/scripthost/hostfuncs"
	"github.com/reglet-dev/scripthost/infrastructure/shell"
	"github.com/reglet-dev/scripthost/infrastructure/wazero"
	"github.com/reglet-dev/scripthost/script"
)

// Host owns one script engine and the resources its capabilities hold.
type Host struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *hostfuncs.Registry
	engine   *script.Engine
	streams  *hostfuncs.Streams
	wasm     *wazero.Loader
}

// New builds the registry and engine described by the configuration.
// Invalid configuration and registration collisions are ConfigErrors.
func New(ctx context.Context, opts ...Option) (*Host, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("create host: %w", err)
	}

	hc := hostConfig{}
	for _, opt := range opts {
		opt(&hc)
	}
	if hc.cfg == nil {
		hc.cfg = config.DefaultConfig()
	}
	if hc.logger == nil {
		hc.logger = slog.Default()
	}
	cfg := hc.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	streamOpts := []hostfuncs.StreamsOption{hostfuncs.WithBaseDir(cfg.BaseDir)}
	if hc.stdin != nil {
		streamOpts = append(streamOpts, hostfuncs.WithStdin(hc.stdin))
	}
	h := &Host{
		cfg:     cfg,
		logger:  hc.logger,
		streams: hostfuncs.NewStreams(streamOpts...),
		wasm: wazero.NewLoader(
			wazero.WithMemoryPages(cfg.Wasm.MemoryPages),
			wazero.WithBaseDir(cfg.BaseDir),
			wazero.WithLogger(hc.logger),
		),
	}

	runner := hc.shell
	if runner == nil {
		runner = shell.New(
			shell.WithLogger(hc.logger),
			shell.WithMaxOutput(cfg.Limits.MaxOutputBytes),
			shell.WithExternalCommands(cfg.Shell.External),
			shell.WithInterpreterCode(cfg.Shell.InterpreterCode),
			shell.WithAllowedEnv(cfg.Shell.AllowedEnv...),
		)
	}

	regOpts := []hostfuncs.RegistryOption{
		hostfuncs.WithMiddleware(hostfuncs.PanicRecoveryMiddleware(), hostfuncs.LoggingMiddleware(hc.logger)),
		hostfuncs.WithMiddleware(hc.middleware...),
		hostfuncs.WithFeatures(cfg.Features...),
		hostfuncs.WithModule(
			hostfuncs.CoreModule(),
			h.streams.Module(),
			hostfuncs.RecordModule(),
			hostfuncs.OpsModule(),
			hostfuncs.CodecModule(),
			hostfuncs.ShellModule(runner),
			h.wasm.Module(),
		),
		hostfuncs.WithModule(hc.modules...),
	}
	// Sorted so the first bad mode reported is deterministic.
	names := make([]string, 0, len(cfg.Modes))
	for name := range cfg.Modes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		mode, err := hostfuncs.ParseMode(cfg.Modes[name])
		if err != nil {
			return nil, &domainerrors.ConfigError{Field: "modes." + name, Err: err}
		}
		regOpts = append(regOpts, hostfuncs.WithModeOverride(name, mode))
	}

	reg, err := hostfuncs.NewRegistry(regOpts...)
	if err != nil {
		return nil, err
	}
	h.registry = reg

	engOpts := []script.Option{
		script.WithCapabilities(reg),
		script.WithLogger(hc.logger),
		script.WithMaxCallDepth(cfg.Limits.MaxCallDepth),
	}
	if hc.stdout != nil {
		engOpts = append(engOpts, script.WithOutput(hc.stdout))
	}
	eng, err := script.New(engOpts...)
	if err != nil {
		return nil, err
	}
	h.engine = eng

	hc.logger.DebugContext(ctx, "host ready",
		"modules", reg.Modules(),
		"features", cfg.Features,
	)
	return h, nil
}

// RunFile reads the script at path and runs it once. A file that cannot be
// read is an IOError; script failures are RuntimeErrors.
func (h *Host) RunFile(ctx context.Context, path string) (entities.Value, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return entities.Null, domainerrors.NewIOError("open", path, err)
	}
	return h.RunSource(ctx, filepath.Base(path), string(src))
}

// RunSource runs src once under the given script name.
func (h *Host) RunSource(ctx context.Context, name, src string) (entities.Value, error) {
	return h.engine.Run(ctx, name, src)
}

// NewSession starts a persistent evaluation session, as used by the REPL.
func (h *Host) NewSession(name string) *script.Session {
	return h.engine.NewSession(name)
}

// Surface returns the registered capability surface.
func (h *Host) Surface() entities.Surface {
	return h.registry.Surface()
}

// Operators returns every infix operator scripts can use.
func (h *Host) Operators() []entities.OperatorSpec {
	return h.engine.Operators()
}

// Config returns the configuration the host was built with.
func (h *Host) Config() *config.Config {
	return h.cfg
}

// Close releases every open reader and the wasm runtime.
func (h *Host) Close(ctx context.Context) error {
	return errors.Join(h.streams.Close(), h.wasm.Close(ctx))
}

// ExitCode maps a run outcome to a process exit status: 0 on success, 2 for
// configuration errors and 1 for everything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case domainerrors.IsConfig(err):
		return 2
	default:
		return 1
	}
}
