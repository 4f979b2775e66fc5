package wazero

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/reglet-dev/scripthost/domain/entities"
	"github.com/reglet-dev/scripthost/hostfuncs"
	"github.com/tetratelabs/wazero/api"
)

// ModuleTypeName is the script type name of a loaded module.
const ModuleTypeName = "WasmModule"

// ModuleObject is the script value wrapping an instantiated module. Copies
// share the instance and its memory.
type ModuleObject struct {
	mod  api.Module
	path string
}

// TypeName implements entities.Object.
func (o *ModuleObject) TypeName() string { return ModuleTypeName }

// Path returns the file the module was loaded from.
func (o *ModuleObject) Path() string { return o.path }

// Call invokes the exported function name with script arguments.
func (o *ModuleObject) Call(ctx context.Context, name string, args []entities.Value) (entities.Value, error) {
	fn := o.mod.ExportedFunction(name)
	if fn == nil {
		return entities.Null, fmt.Errorf("function %s is not exported by %s", name, o.path)
	}
	def := fn.Definition()
	params := def.ParamTypes()
	if len(args) != len(params) {
		return entities.Null, fmt.Errorf("function %s expects %d arguments, got %d", name, len(params), len(args))
	}

	stack := make([]uint64, len(params))
	for i, t := range params {
		raw, err := encodeValue(t, args[i])
		if err != nil {
			return entities.Null, &hostfuncs.ArgumentError{Index: i + 2, Err: err}
		}
		stack[i] = raw
	}

	results, err := fn.Call(ctx, stack...)
	if err != nil {
		return entities.Null, fmt.Errorf("call %s: %w", name, err)
	}

	out := make([]entities.Value, len(results))
	for i, t := range def.ResultTypes() {
		v, err := decodeValue(t, results[i])
		if err != nil {
			return entities.Null, fmt.Errorf("result of %s: %w", name, err)
		}
		out[i] = v
	}
	switch len(out) {
	case 0:
		return entities.Null, nil
	case 1:
		return out[0], nil
	default:
		return entities.Arr(out...), nil
	}
}

// Exports describes every exported function as #{params, results}, keyed by
// export name.
func (o *ModuleObject) Exports() *entities.Map {
	defs := o.mod.ExportedFunctionDefinitions()
	names := make([]string, 0, len(defs))
	for n := range defs {
		names = append(names, n)
	}
	slices.Sort(names)

	out := entities.NewMap()
	for _, n := range names {
		sig := entities.NewMap()
		sig.Set("params", typeNames(defs[n].ParamTypes()))
		sig.Set("results", typeNames(defs[n].ResultTypes()))
		out.Set(n, entities.MapOf(sig))
	}
	return out
}

func typeNames(types []api.ValueType) entities.Value {
	items := make([]entities.Value, len(types))
	for i, t := range types {
		items[i] = entities.Str(api.ValueTypeName(t))
	}
	return entities.Arr(items...)
}

func encodeValue(t api.ValueType, v entities.Value) (uint64, error) {
	switch t {
	case api.ValueTypeI32:
		n, ok := v.AsInt()
		if !ok {
			return 0, &entities.TypeMismatch{Want: "int", Got: v.TypeName()}
		}
		if n < math.MinInt32 || n > math.MaxUint32 {
			return 0, fmt.Errorf("%d does not fit in i32", n)
		}
		return api.EncodeU32(uint32(n)), nil //nolint:gosec // G115: range checked above
	case api.ValueTypeI64:
		n, ok := v.AsInt()
		if !ok {
			return 0, &entities.TypeMismatch{Want: "int", Got: v.TypeName()}
		}
		return api.EncodeI64(n), nil
	case api.ValueTypeF32:
		f, ok := v.AsFloat()
		if !ok {
			return 0, &entities.TypeMismatch{Want: "float64", Got: v.TypeName()}
		}
		return api.EncodeF32(float32(f)), nil
	case api.ValueTypeF64:
		f, ok := v.AsFloat()
		if !ok {
			return 0, &entities.TypeMismatch{Want: "float64", Got: v.TypeName()}
		}
		return api.EncodeF64(f), nil
	}
	return 0, fmt.Errorf("unsupported wasm parameter type %s", api.ValueTypeName(t))
}

func decodeValue(t api.ValueType, raw uint64) (entities.Value, error) {
	switch t {
	case api.ValueTypeI32:
		return entities.Int(int64(api.DecodeI32(raw))), nil
	case api.ValueTypeI64:
		return entities.Int(int64(raw)), nil //nolint:gosec // G115: i64 is two's complement
	case api.ValueTypeF32:
		return entities.Float(float64(api.DecodeF32(raw))), nil
	case api.ValueTypeF64:
		return entities.Float(api.DecodeF64(raw)), nil
	}
	return entities.Null, fmt.Errorf("unsupported wasm result type %s", api.ValueTypeName(t))
}

// Module returns the wasm capability module, gated by the "wasm" feature.
func (l *Loader) Module() hostfuncs.Module {
	return hostfuncs.Module{
		Name:    "wasm",
		Mode:    hostfuncs.ModeNamespaced,
		Feature: "wasm",
		Entries: []entities.Descriptor{
			hostfuncs.Func1("load", func(ctx context.Context, path string) (*ModuleObject, error) {
				return l.Load(ctx, path)
			}),
			hostfuncs.Variadic("call", func(ctx context.Context, args []entities.Value) (entities.Value, error) {
				if len(args) < 2 {
					return entities.Null, fmt.Errorf("call expects a module and a function name, got %d arguments", len(args))
				}
				mod, err := entities.Decode[*ModuleObject](args[0])
				if err != nil {
					return entities.Null, &hostfuncs.ArgumentError{Index: 0, Err: err}
				}
				name, err := entities.Decode[string](args[1])
				if err != nil {
					return entities.Null, &hostfuncs.ArgumentError{Index: 1, Err: err}
				}
				return mod.Call(ctx, name, args[2:])
			}),
			hostfuncs.Func1("exports", func(_ context.Context, mod *ModuleObject) (*entities.Map, error) {
				return mod.Exports(), nil
			}),
			hostfuncs.Property(ModuleTypeName, "path", func(mod *ModuleObject) (string, error) {
				return mod.Path(), nil
			}),
		},
	}
}
