package wazero

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/reglet-dev/scripthost/domain/entities"
	domainerrors "github.com/reglet-dev/scripthost/domain/errors"
	"github.com/reglet-dev/scripthost/hostfuncs"
	"github.com/reglet-dev/scripthost/internal/testutil"
	"github.com/reglet-dev/scripthost/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mathWasm exports add(i64, i64) i64, half(f64) f64, neg(i32) i32 and
// boom(), which traps.
var mathWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0x14, 0x04, 0x60,
	0x02, 0x7e, 0x7e, 0x01, 0x7e, 0x60, 0x01, 0x7c, 0x01, 0x7c, 0x60, 0x01,
	0x7f, 0x01, 0x7f, 0x60, 0x00, 0x00, 0x03, 0x05, 0x04, 0x00, 0x01, 0x02,
	0x03, 0x07, 0x1b, 0x04, 0x03, 0x61, 0x64, 0x64, 0x00, 0x00, 0x04, 0x68,
	0x61, 0x6c, 0x66, 0x00, 0x01, 0x03, 0x6e, 0x65, 0x67, 0x00, 0x02, 0x04,
	0x62, 0x6f, 0x6f, 0x6d, 0x00, 0x03, 0x0a, 0x24, 0x04, 0x07, 0x00, 0x20,
	0x00, 0x20, 0x01, 0x7c, 0x0b, 0x0e, 0x00, 0x20, 0x00, 0x44, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xe0, 0x3f, 0xa2, 0x0b, 0x07, 0x00, 0x41, 0x00,
	0x20, 0x00, 0x6b, 0x0b, 0x03, 0x00, 0x00, 0x0b,
}

// greetWasm imports scripthost.log and exports greet(), which logs "hello"
// from offset 8 of its memory.
var greetWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0x08, 0x02, 0x60,
	0x01, 0x7e, 0x00, 0x60, 0x00, 0x00, 0x02, 0x12, 0x01, 0x0a, 0x73, 0x63,
	0x72, 0x69, 0x70, 0x74, 0x68, 0x6f, 0x73, 0x74, 0x03, 0x6c, 0x6f, 0x67,
	0x00, 0x00, 0x03, 0x02, 0x01, 0x01, 0x05, 0x03, 0x01, 0x00, 0x01, 0x07,
	0x12, 0x02, 0x05, 0x67, 0x72, 0x65, 0x65, 0x74, 0x00, 0x01, 0x06, 0x6d,
	0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00, 0x0a, 0x0d, 0x01, 0x0b, 0x00,
	0x42, 0x85, 0x80, 0x80, 0x80, 0x80, 0x01, 0x10, 0x00, 0x0b, 0x0b, 0x0b,
	0x01, 0x00, 0x41, 0x08, 0x0b, 0x05, 0x68, 0x65, 0x6c, 0x6c, 0x6f,
}

func writeWasm(t *testing.T, dir, name string, binary []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, binary, 0o600))
	return path
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type wasmEnv struct {
	eng    *script.Engine
	loader *Loader
	dir    string
}

func newWasmEnv(t *testing.T, opts ...Option) *wasmEnv {
	t.Helper()
	dir := t.TempDir()
	writeWasm(t, dir, "math.wasm", mathWasm)
	writeWasm(t, dir, "greet.wasm", greetWasm)

	opts = append([]Option{WithLogger(quietLogger()), WithBaseDir(dir)}, opts...)
	loader := NewLoader(opts...)
	t.Cleanup(func() { _ = loader.Close(context.Background()) })

	reg, err := hostfuncs.NewRegistry(hostfuncs.WithModule(loader.Module()), hostfuncs.WithFeatures("wasm"))
	require.NoError(t, err)
	eng, err := script.New(script.WithCapabilities(reg), script.WithOutput(io.Discard))
	require.NoError(t, err)
	return &wasmEnv{eng: eng, loader: loader, dir: dir}
}

func (e *wasmEnv) run(t *testing.T, src string) (entities.Value, error) {
	t.Helper()
	return e.eng.Run(context.Background(), "wasm_test", src)
}

func TestWasmModule_Call(t *testing.T) {
	env := newWasmEnv(t)

	tests := []struct {
		src  string
		want entities.Value
	}{
		{`let m = wasm::load("math.wasm"); wasm::call(m, "add", 2, 40)`, entities.Int(42)},
		{`let m = wasm::load("math.wasm"); m.call("add", -5, 3)`, entities.Int(-2)},
		{`wasm::load("math.wasm").call("half", 3)`, entities.Float(1.5)},
		{`wasm::load("math.wasm").call("neg", 5)`, entities.Int(-5)},
		{`wasm::load("math.wasm").call("neg", 4294967295)`, entities.Int(1)},
		{`wasm::load("math.wasm").path`, entities.Str(filepath.Join(env.dir, "math.wasm"))},
		{`type_of(wasm::load("math.wasm"))`, entities.Str(ModuleTypeName)},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := env.run(t, tt.src)
			require.NoError(t, err)
			testutil.AssertValue(t, tt.want, got)
		})
	}
}

func TestWasmModule_Exports(t *testing.T) {
	env := newWasmEnv(t)

	got, err := env.run(t, `
		let e = wasm::load("math.wasm").exports();
		[e.add.params, e.add.results, e.half.params, e.boom.results]
	`)
	require.NoError(t, err)
	want := entities.Arr(
		entities.Arr(entities.Str("i64"), entities.Str("i64")),
		entities.Arr(entities.Str("i64")),
		entities.Arr(entities.Str("f64")),
		entities.Arr(),
	)
	testutil.AssertValue(t, want, got)
}

func TestWasmModule_CallErrors(t *testing.T) {
	env := newWasmEnv(t)

	tests := []struct {
		name string
		src  string
		code string
		msg  string
	}{
		{"trap", `wasm::load("math.wasm").call("boom")`, domainerrors.CodeCapability, "unreachable"},
		{"unknown export", `wasm::load("math.wasm").call("nope")`, domainerrors.CodeCapability, "function nope is not exported"},
		{"arity", `wasm::load("math.wasm").call("add", 1)`, domainerrors.CodeCapability, "expects 2 arguments, got 1"},
		{"argument type", `wasm::load("math.wasm").call("add", 1, "x")`, domainerrors.CodeTypeMismatch, "argument 4"},
		{"i32 range", `wasm::load("math.wasm").call("neg", 4294967296)`, domainerrors.CodeCapability, "does not fit in i32"},
		{"not a module", `wasm::call(1, "add")`, domainerrors.CodeTypeMismatch, "argument 1"},
		{"too few", `wasm::call()`, domainerrors.CodeCapability, "expects a module and a function name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.run(t, tt.src)
			re := testutil.RequireRuntimeError(t, err, tt.code)
			assert.Contains(t, re.Error(), tt.msg)
		})
	}
}

func TestWasmModule_LoadErrors(t *testing.T) {
	env := newWasmEnv(t)
	writeWasm(t, env.dir, "junk.wasm", []byte("not wasm"))

	got, err := env.run(t, `
		let out = [];
		try { wasm::load("missing.wasm"); } catch (e) { out += [e.type + "/" + e.code]; }
		try { wasm::load("junk.wasm"); } catch (e) { out += [e.type + "/" + e.code]; }
		out
	`)
	require.NoError(t, err)
	want := entities.Arr(entities.Str("io/open"), entities.Str("decode/wasm"))
	testutil.AssertValue(t, want, got)
}

func TestWasmModule_HostLog(t *testing.T) {
	type logged struct{ module, message string }
	var got []logged
	env := newWasmEnv(t, WithLogFunc(func(_ context.Context, module, message string) {
		got = append(got, logged{module, message})
	}))

	_, err := env.run(t, `let g = wasm::load("greet.wasm"); g.call("greet"); g.call("greet")`)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hello", got[0].message)
	assert.Equal(t, "greet.wasm#1", got[0].module)
}

func TestWasmModule_HostLogTooLarge(t *testing.T) {
	var calls int
	env := newWasmEnv(t,
		WithMaxMessageSize(4),
		WithLogFunc(func(context.Context, string, string) { calls++ }),
	)

	_, err := env.run(t, `wasm::load("greet.wasm").call("greet")`)
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestWasmModule_FeatureGate(t *testing.T) {
	loader := NewLoader(WithLogger(quietLogger()))
	reg, err := hostfuncs.NewRegistry(hostfuncs.WithModule(loader.Module()))
	require.NoError(t, err)
	eng, err := script.New(script.WithCapabilities(reg), script.WithOutput(io.Discard))
	require.NoError(t, err)

	_, err = eng.Run(context.Background(), "gate", `wasm::load("x.wasm")`)
	var re *domainerrors.RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, domainerrors.CodeFunctionNotFound, re.Code)
}

func TestLoader_Close(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader(WithLogger(quietLogger()))

	require.NoError(t, loader.Close(ctx), "closing before any load is a no-op")

	loader = NewLoader(WithLogger(quietLogger()))
	mod, err := loader.LoadBytes(ctx, "math.wasm", mathWasm)
	require.NoError(t, err)
	v, err := mod.Call(ctx, "add", []entities.Value{entities.Int(1), entities.Int(2)})
	require.NoError(t, err)
	assert.Equal(t, entities.Int(3), v)

	require.NoError(t, loader.Close(ctx))
	_, err = loader.LoadBytes(ctx, "math.wasm", mathWasm)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLoader_UniqueInstanceNames(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader(WithLogger(quietLogger()))
	t.Cleanup(func() { _ = loader.Close(ctx) })

	for i := 1; i <= 3; i++ {
		mod, err := loader.LoadBytes(ctx, "/x/math.wasm", mathWasm)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("math.wasm#%d", i), mod.mod.Name())
	}
}

func TestPackUnpackPtrLen(t *testing.T) {
	tests := []struct {
		ptr    uint32
		length uint32
	}{
		{0, 0},
		{1, 1},
		{0xFFFFFFFF, 0xFFFFFFFF},
		{0x12345678, 0x9ABCDEF0},
		{8, 5},
	}

	for _, tt := range tests {
		packed := packPtrLen(tt.ptr, tt.length)
		gotPtr, gotLen := unpackPtrLen(packed)
		assert.Equal(t, tt.ptr, gotPtr, "ptr of %x", packed)
		assert.Equal(t, tt.length, gotLen, "len of %x", packed)
	}
	assert.Equal(t, uint64(8<<32|5), packPtrLen(8, 5))
}
