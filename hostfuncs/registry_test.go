package hostfuncs

import (
	"context"
	"io"
	"testing"

	"github.com/reglet-dev/scripthost/domain/entities"
	domainerrors "github.com/reglet-dev/scripthost/domain/errors"
	"github.com/reglet-dev/scripthost/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, opts ...RegistryOption) *script.Engine {
	t.Helper()
	reg, err := NewRegistry(opts...)
	require.NoError(t, err)
	eng, err := script.New(script.WithCapabilities(reg), script.WithOutput(io.Discard))
	require.NoError(t, err)
	return eng
}

func eval(t *testing.T, eng *script.Engine, src string) entities.Value {
	t.Helper()
	v, err := eng.Run(context.Background(), "test", src)
	require.NoError(t, err)
	return v
}

func evalErr(t *testing.T, eng *script.Engine, src string) *domainerrors.RuntimeError {
	t.Helper()
	_, err := eng.Run(context.Background(), "test", src)
	require.Error(t, err)
	var re *domainerrors.RuntimeError
	require.ErrorAs(t, err, &re)
	return re
}

func constFunc(name string, v entities.Value) entities.Descriptor {
	return Func0(name, func(context.Context) (entities.Value, error) { return v, nil })
}

// assertUndefined checks that calling name fails exactly like a name that
// was never registered.
func assertUndefined(t *testing.T, eng *script.Engine, call, name string) {
	t.Helper()
	got := evalErr(t, eng, call)
	assert.Equal(t, domainerrors.CodeFunctionNotFound, got.Code)
	assert.Equal(t, "function not found: "+name, got.Msg)
}

func TestNewRegistry_Empty(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	assert.Empty(t, reg.Surface().Entries)
	assert.Empty(t, reg.Modules())
}

func TestRegistry_NamespacedRequiresQualifier(t *testing.T) {
	eng := newEngine(t, WithModule(Module{
		Name: "ns",
		Mode: ModeNamespaced,
		Entries: []entities.Descriptor{
			constFunc("secret", entities.Int(7)),
			Const("LIMIT", entities.Int(3)),
		},
	}))

	assert.Equal(t, entities.Int(7), eval(t, eng, "ns::secret()"))
	assert.Equal(t, entities.Int(3), eval(t, eng, "ns::LIMIT"))

	assertUndefined(t, eng, "secret()", "secret")
	assertUndefined(t, eng, "never_defined()", "never_defined")
	assert.Equal(t, domainerrors.CodeVariableNotFound, evalErr(t, eng, "LIMIT").Code)
}

func TestRegistry_GlobalFlag(t *testing.T) {
	eng := newEngine(t, WithModule(Module{
		Name: "ns",
		Mode: ModeNamespaced,
		Entries: []entities.Descriptor{
			constFunc("both", entities.Str("x")).AsGlobal(),
		},
		Groups: []Module{{
			Name:    "inner",
			Entries: []entities.Descriptor{constFunc("deep", entities.Int(1)).AsGlobal()},
		}},
	}))

	assert.Equal(t, entities.Str("x"), eval(t, eng, "ns::both()"))
	assert.Equal(t, entities.Str("x"), eval(t, eng, "both()"))
	assert.Equal(t, entities.Int(1), eval(t, eng, "ns::inner::deep()"))
	assert.Equal(t, entities.Int(1), eval(t, eng, "deep()"))
}

func TestRegistry_FeatureGate(t *testing.T) {
	gated := Module{
		Name:    "extra",
		Mode:    ModeGlobal,
		Feature: "extra",
		Entries: []entities.Descriptor{constFunc("gated", entities.Int(1))},
	}

	off := newEngine(t, WithModule(gated))
	assertUndefined(t, off, "gated()", "gated")

	reg, err := NewRegistry(WithModule(gated))
	require.NoError(t, err)
	assert.False(t, reg.Has("gated"))
	assert.Empty(t, reg.Modules())

	on := newEngine(t, WithModule(gated), WithFeatures("extra"))
	assert.Equal(t, entities.Int(1), eval(t, on, "gated()"))
}

func TestRegistry_GatedGroup(t *testing.T) {
	mod := Module{
		Name: "ns",
		Mode: ModeNamespaced,
		Groups: []Module{
			{Name: "open", Entries: []entities.Descriptor{constFunc("f", entities.Int(1))}},
			{Name: "shut", Feature: "shut", Entries: []entities.Descriptor{constFunc("f", entities.Int(2))}},
		},
	}
	eng := newEngine(t, WithModule(mod))

	assert.Equal(t, entities.Int(1), eval(t, eng, "ns::open::f()"))
	assertUndefined(t, eng, "ns::shut::f()", "ns::shut::f")
}

func TestRegistry_HiddenDescriptor(t *testing.T) {
	eng := newEngine(t, WithModule(RecordModule()), WithFeatures("record"))

	assertUndefined(t, eng, "set_raw_field(create_abc(1), 5)", "set_raw_field")

	reg, err := NewRegistry(WithModule(RecordModule()), WithFeatures("record"))
	require.NoError(t, err)
	for _, e := range reg.Surface().Entries {
		assert.NotEqual(t, "set_raw_field", e.Path)
	}
}

func TestRegistry_NestedGroupsInertUnderGlobal(t *testing.T) {
	mod := Module{
		Name:    "flat",
		Mode:    ModeGlobal,
		Entries: []entities.Descriptor{constFunc("top", entities.Int(1))},
		Groups: []Module{{
			Name:    "inner",
			Entries: []entities.Descriptor{constFunc("deep", entities.Int(2)).AsGlobal()},
		}},
	}

	eng := newEngine(t, WithModule(mod))
	assert.Equal(t, entities.Int(1), eval(t, eng, "top()"))
	assertUndefined(t, eng, "deep()", "deep")
	assertUndefined(t, eng, "inner::deep()", "inner::deep")
	assertUndefined(t, eng, "flat::inner::deep()", "flat::inner::deep")

	mod.Mode = ModeNamespaced
	eng = newEngine(t, WithModule(mod))
	assert.Equal(t, entities.Int(2), eval(t, eng, "flat::inner::deep()"))
}

func TestRegistry_ModeOverride(t *testing.T) {
	eng := newEngine(t, WithModule(CoreModule()), WithModeOverride("core", ModeNamespaced))

	assert.Equal(t, entities.Int(2), eval(t, eng, `core::len("ab")`))
	assertUndefined(t, eng, `len("ab")`, "len")

	_, err := NewRegistry(WithModule(CoreModule()), WithModeOverride("nope", ModeGlobal))
	require.Error(t, err)
	assert.True(t, domainerrors.IsConfig(err))
}

func TestRegistry_Collisions(t *testing.T) {
	one := func(name string, d ...entities.Descriptor) Module {
		return Module{Name: name, Mode: ModeGlobal, Entries: d}
	}
	noop := func(context.Context, entities.Value, entities.Value) (entities.Value, error) {
		return entities.Null, nil
	}

	tests := []struct {
		name    string
		modules []Module
	}{
		{"same global name", []Module{
			one("a", constFunc("dup", entities.Null)),
			one("b", constFunc("dup", entities.Null)),
		}},
		{"function and constant", []Module{
			one("a", constFunc("dup", entities.Null), Const("dup", entities.Null)),
		}},
		{"global flag onto global name", []Module{
			one("a", constFunc("x", entities.Null)),
			{Name: "ns", Mode: ModeNamespaced, Entries: []entities.Descriptor{constFunc("x", entities.Null).AsGlobal()}},
		}},
		{"duplicate module", []Module{one("a"), one("a")}},
		{"empty module name", []Module{one("")}},
		{"alias twice", []Module{
			one("a", TypeAlias("T", "A1"), TypeAlias("T", "A2")),
		}},
		{"alias reused", []Module{
			one("a", TypeAlias("T", "A"), TypeAlias("U", "A")),
		}},
		{"property twice through alias", []Module{
			one("a",
				TypeAlias("TestStruct", "ABC"),
				Property("TestStruct", "value", func(*TestStruct) (int64, error) { return 0, nil }),
				Property("ABC", "value", func(*TestStruct) (int64, error) { return 0, nil }),
			),
		}},
		{"operator twice", []Module{
			one("a", Operator("<>", 100, entities.AssocLeft, noop)),
			one("b", Operator("<>", 120, entities.AssocLeft, noop)),
		}},
		{"function without implementation", []Module{
			one("a", Func("nil", 0, nil)),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(WithModule(tt.modules...))
			require.Error(t, err)
			assert.True(t, domainerrors.IsConfig(err), "got %T: %v", err, err)
		})
	}
}

func TestRegistry_SameNameInDifferentNamespaces(t *testing.T) {
	eng := newEngine(t,
		WithModule(
			Module{Name: "a", Mode: ModeNamespaced, Entries: []entities.Descriptor{constFunc("f", entities.Int(1))}},
			Module{Name: "b", Mode: ModeNamespaced, Entries: []entities.Descriptor{constFunc("f", entities.Int(2))}},
		),
	)
	assert.Equal(t, entities.Int(3), eval(t, eng, "a::f() + b::f()"))
}

func TestRegistry_CrossRegistryCollision(t *testing.T) {
	a, err := NewRegistry(WithModule(CoreModule()))
	require.NoError(t, err)
	b, err := NewRegistry(WithModule(Module{Name: "mine", Entries: []entities.Descriptor{constFunc("len", entities.Null)}}))
	require.NoError(t, err)

	_, err = script.New(script.WithCapabilities(a, b))
	require.Error(t, err)
	assert.True(t, domainerrors.IsConfig(err))
}

func TestRegistry_Operator(t *testing.T) {
	eng := newEngine(t, WithModule(OpsModule()), WithFeatures("operator"))

	assert.Equal(t, entities.Int(14), eval(t, eng, "2 @ 3 + 1"))
	assert.Equal(t, entities.Int(8), eval(t, eng, "2 * 1 @ 2"))
	assert.Equal(t, entities.Float(2.5), eval(t, eng, "0.5 @ 1.5"))
	assert.Equal(t, domainerrors.CodeTypeMismatch, evalErr(t, eng, `1 @ "x"`).Code)
	assert.Equal(t, domainerrors.CodeCapability, evalErr(t, eng, "4294967296 @ 1").Code)

	off := newEngine(t, WithModule(OpsModule()))
	assert.Equal(t, domainerrors.CodeParse, evalErr(t, off, "2 @ 3").Code)
}

func TestRegistry_OperatorCollidesWithBuiltin(t *testing.T) {
	reg, err := NewRegistry(WithModule(Module{
		Name: "bad",
		Entries: []entities.Descriptor{
			Operator("+", 150, entities.AssocLeft, func(context.Context, entities.Value, entities.Value) (entities.Value, error) {
				return entities.Null, nil
			}),
		},
	}))
	require.NoError(t, err)

	_, err = script.New(script.WithCapabilities(reg))
	require.Error(t, err)
	assert.True(t, domainerrors.IsConfig(err))
}

func TestRegistry_Surface(t *testing.T) {
	reg, err := NewRegistry(
		WithModule(RecordModule(), OpsModule(), CodecModule()),
		WithFeatures("record", "operator", "codec"),
	)
	require.NoError(t, err)

	s := reg.Surface()
	assert.Equal(t, []string{"record", "ops", "codec"}, s.Modules)

	byPath := make(map[string]entities.SurfaceEntry)
	for _, e := range s.Entries {
		byPath[e.Path] = e
	}

	assert.Equal(t, entities.KindTypeAlias, byPath["ABC"].Kind)
	assert.Equal(t, "TestStruct", byPath["ABC"].Target)
	assert.Equal(t, entities.KindProperty, byPath["ABC.value"].Kind)
	assert.Equal(t, 1, byPath["create_abc"].Arity)

	op := byPath["@"]
	require.NotNil(t, op.Operator)
	assert.Equal(t, SumOfSquaresPrecedence, op.Operator.Precedence)
	assert.Equal(t, entities.AssocLeft, op.Operator.Assoc)

	assert.Equal(t, entities.VisibilityNamespaced, byPath["codec::to_json"].Visibility)
	assert.Equal(t, entities.VisibilityGlobal, byPath["to_json"].Visibility)
	assert.Contains(t, byPath, "codec::json::encode")
	assert.NotContains(t, byPath, "codec::toml::encode", "toml group needs its own feature")
	assert.True(t, reg.Has("codec::yaml::decode"))
}

func TestRegistry_MiddlewareOrderAndContext(t *testing.T) {
	var calls []string
	record := func(tag string) Middleware {
		return func(next entities.NativeFunc) entities.NativeFunc {
			return func(ctx context.Context, args []entities.Value) (entities.Value, error) {
				calls = append(calls, tag+":"+CapabilityName(ctx))
				return next(ctx, args)
			}
		}
	}
	var module string
	probe := Module{
		Name: "probe",
		Mode: ModeNamespaced,
		Entries: []entities.Descriptor{
			Func0("who", func(ctx context.Context) (string, error) {
				module = ctx.(HostContext).Module()
				return CapabilityName(ctx), nil
			}).AsGlobal(),
		},
	}

	eng := newEngine(t, WithModule(probe), WithMiddleware(record("outer"), record("inner")))

	assert.Equal(t, entities.Str("probe::who"), eval(t, eng, "probe::who()"))
	assert.Equal(t, "probe", module)
	assert.Equal(t, entities.Str("who"), eval(t, eng, "who()"))
	assert.Equal(t, []string{
		"outer:probe::who", "inner:probe::who",
		"outer:who", "inner:who",
	}, calls)
}

func TestRegistry_PanicRecovery(t *testing.T) {
	boom := Module{
		Name: "boom",
		Entries: []entities.Descriptor{
			Func0("boom", func(context.Context) (entities.Value, error) { panic("kaboom") }),
		},
	}
	eng := newEngine(t, WithModule(boom), WithMiddleware(PanicRecoveryMiddleware()))

	v := eval(t, eng, `
		let code = "";
		try { boom(); } catch (e) { code = e.type + "/" + e.code; }
		code
	`)
	assert.Equal(t, entities.Str("internal/panic"), v)

	re := evalErr(t, eng, "boom()")
	var pe *PanicError
	require.ErrorAs(t, re, &pe)
	assert.Equal(t, "boom", pe.Capability)
	assert.Contains(t, pe.Error(), "kaboom")
}

func TestRegistry_ArgumentErrors(t *testing.T) {
	eng := newEngine(t, WithModule(CoreModule()))

	re := evalErr(t, eng, "trim(5)")
	assert.Equal(t, domainerrors.CodeTypeMismatch, re.Code)
	var ae *ArgumentError
	require.ErrorAs(t, re, &ae)
	assert.Equal(t, 0, ae.Index)
	assert.Contains(t, re.Error(), "argument 1: type mismatch: expected string, got int")

	assert.Equal(t, domainerrors.CodeArity, evalErr(t, eng, `trim("a", "b")`).Code)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Namespaced ")
	require.NoError(t, err)
	assert.Equal(t, ModeNamespaced, m)
	assert.Equal(t, "global", ModeGlobal.String())

	_, err = ParseMode("flat")
	require.Error(t, err)
}
