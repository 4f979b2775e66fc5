package wazero

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	domainerrors "github.com/reglet-dev/scripthost/domain/errors"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

const (
	// DefaultMemoryPages caps guest memory at 16 MiB.
	DefaultMemoryPages = 256

	// DefaultMaxMessageSize limits a single scripthost.log message.
	DefaultMaxMessageSize = 64 * 1024

	// HostModuleName is the import module guests use for host functions.
	HostModuleName = "scripthost"
)

// ErrClosed is returned when loading into a closed Loader.
var ErrClosed = errors.New("wasm runtime is closed")

// LogFunc receives messages a guest writes through scripthost.log.
type LogFunc func(ctx context.Context, module, message string)

// Loader owns one wazero runtime, created on first use, and every module
// instantiated in it.
type Loader struct {
	runtime        wazero.Runtime
	logger         *slog.Logger
	logFn          LogFunc
	baseDir        string
	mu             sync.Mutex
	seq            int
	memoryPages    uint32
	maxMessageSize uint32
	closed         bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithMemoryPages sets the maximum number of 64 KiB pages per guest memory.
func WithMemoryPages(pages uint32) Option {
	return func(l *Loader) {
		l.memoryPages = pages
	}
}

// WithBaseDir resolves relative module paths against dir.
func WithBaseDir(dir string) Option {
	return func(l *Loader) {
		l.baseDir = dir
	}
}

// WithLogger sets the logger for runtime diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithLogFunc routes scripthost.log messages to fn instead of the logger.
func WithLogFunc(fn LogFunc) Option {
	return func(l *Loader) {
		l.logFn = fn
	}
}

// WithMaxMessageSize limits the size of a scripthost.log message.
func WithMaxMessageSize(size uint32) Option {
	return func(l *Loader) {
		l.maxMessageSize = size
	}
}

// NewLoader creates a Loader. No runtime exists until the first Load.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		logger:         slog.Default(),
		memoryPages:    DefaultMemoryPages,
		maxMessageSize: DefaultMaxMessageSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logFn == nil {
		l.logFn = func(ctx context.Context, module, message string) {
			l.logger.InfoContext(ctx, message, "wasm_module", module)
		}
	}
	return l
}

// ensureRuntime returns the runtime, creating it on first use. l.mu is held.
func (l *Loader) ensureRuntime(ctx context.Context) (wazero.Runtime, error) {
	if l.closed {
		return nil, ErrClosed
	}
	if l.runtime != nil {
		return l.runtime, nil
	}

	cfg := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(l.memoryPages).
		WithCloseOnContextDone(true)
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("instantiate wasi: %w", err)
	}
	if err := l.registerHostModule(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("instantiate %s host module: %w", HostModuleName, err)
	}
	l.runtime = rt
	return rt, nil
}

// Load compiles and instantiates the module at path. Unreadable files are
// IOErrors; bytes that are not a valid module are DecodeErrors with format
// "wasm".
func (l *Loader) Load(ctx context.Context, path string) (*ModuleObject, error) {
	if l.baseDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(l.baseDir, path)
	}
	binary, err := os.ReadFile(path)
	if err != nil {
		return nil, domainerrors.NewIOError("open", path, err)
	}
	return l.LoadBytes(ctx, path, binary)
}

// LoadBytes instantiates binary under a name derived from path.
func (l *Loader) LoadBytes(ctx context.Context, path string, binary []byte) (*ModuleObject, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rt, err := l.ensureRuntime(ctx)
	if err != nil {
		return nil, err
	}

	compiled, err := rt.CompileModule(ctx, binary)
	if err != nil {
		return nil, &domainerrors.DecodeError{Source: path, Format: "wasm", Err: err}
	}

	l.seq++
	name := fmt.Sprintf("%s#%d", filepath.Base(path), l.seq)
	// Command modules run _start during instantiation and exit; only the
	// reactor initializer is run here.
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions("_initialize"))
	if err != nil {
		_ = compiled.Close(ctx)
		l.logger.ErrorContext(ctx, "wasm instantiation failed", "path", path, "error", err)
		return nil, fmt.Errorf("instantiate %s: %w", path, err)
	}
	l.logger.DebugContext(ctx, "wasm module loaded", "path", path, "name", name)
	return &ModuleObject{mod: mod, path: path}, nil
}

// Close releases the runtime and every module loaded through it. Later
// loads fail with ErrClosed.
func (l *Loader) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	if l.runtime == nil {
		return nil
	}
	err := l.runtime.Close(ctx)
	l.runtime = nil
	return err
}

// registerHostModule exports the scripthost import module into rt.
func (l *Loader) registerHostModule(ctx context.Context, rt wazero.Runtime) error {
	_, err := rt.NewHostModuleBuilder(HostModuleName).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(l.hostLog), []api.ValueType{api.ValueTypeI64}, []api.ValueType{}).
		Export("log").
		Instantiate(ctx)
	return err
}

// hostLog reads a packed ptr+len message from guest memory.
func (l *Loader) hostLog(ctx context.Context, mod api.Module, stack []uint64) {
	ptr, length := unpackPtrLen(stack[0])
	if length > l.maxMessageSize {
		l.logger.ErrorContext(ctx, "wasm log message too large",
			"wasm_module", mod.Name(), "size", length, "max", l.maxMessageSize)
		return
	}
	mem := mod.Memory()
	if mem == nil {
		l.logger.ErrorContext(ctx, "wasm module has no memory for log message", "wasm_module", mod.Name())
		return
	}
	msg, ok := mem.Read(ptr, length)
	if !ok {
		l.logger.ErrorContext(ctx, "wasm log message out of bounds",
			"wasm_module", mod.Name(), "ptr", ptr, "size", length)
		return
	}
	l.logFn(ctx, mod.Name(), string(msg))
}

// packPtrLen packs a pointer and length into a single i64.
// Upper 32 bits: pointer, lower 32 bits: length.
func packPtrLen(ptr, length uint32) uint64 {
	return (uint64(ptr) << 32) | uint64(length)
}

// unpackPtrLen unpacks a pointer and length from a packed i64.
func unpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> 32)           //nolint:gosec // G115: Packed format stores 32-bit values
	length = uint32(packed & 0xFFFFFFFF) //nolint:gosec // G115: Packed format stores 32-bit values
	return ptr, length
}
