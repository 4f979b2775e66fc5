package hostfuncs

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/reglet-dev/scripthost/domain/entities"
)

// MaxRangeLen caps the array built by range().
const MaxRangeLen = 1 << 20

// CoreModule returns the always-present global helpers for strings, arrays
// and maps.
func CoreModule() Module {
	return Module{
		Name: "core",
		Mode: ModeGlobal,
		Entries: []entities.Descriptor{
			Func1("len", coreLen),
			Func2("push", func(_ context.Context, a *entities.Array, v entities.Value) (entities.Value, error) {
				a.Append(v.Clone())
				return entities.Null, nil
			}),
			Func1("pop", func(_ context.Context, a *entities.Array) (entities.Value, error) {
				if a.Len() == 0 {
					return entities.Null, nil
				}
				last := a.Items[a.Len()-1]
				a.Items = a.Items[:a.Len()-1]
				return last, nil
			}),
			Func1("keys", func(_ context.Context, m *entities.Map) ([]entities.Value, error) {
				keys := m.Keys()
				out := make([]entities.Value, len(keys))
				for i, k := range keys {
					out[i] = entities.Str(k)
				}
				return out, nil
			}),
			Func2("contains", coreContains),
			Func2("range", coreRange),
			Func1("to_string", func(_ context.Context, v entities.Value) (string, error) {
				return v.String(), nil
			}),
			Func1("parse_int", func(_ context.Context, s string) (int64, error) {
				n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
				if err != nil {
					return 0, fmt.Errorf("invalid integer %q", s)
				}
				return n, nil
			}),
			Func1("parse_float", func(_ context.Context, s string) (float64, error) {
				f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
				if err != nil {
					return 0, fmt.Errorf("invalid number %q", s)
				}
				return f, nil
			}),
			Func1("trim", func(_ context.Context, s string) (string, error) {
				return strings.TrimSpace(s), nil
			}),
			Func2("split", func(_ context.Context, s, sep string) ([]entities.Value, error) {
				parts := strings.Split(s, sep)
				out := make([]entities.Value, len(parts))
				for i, p := range parts {
					out[i] = entities.Str(p)
				}
				return out, nil
			}),
			Func2("join", func(_ context.Context, items []entities.Value, sep string) (string, error) {
				parts := make([]string, len(items))
				for i, it := range items {
					parts[i] = it.String()
				}
				return strings.Join(parts, sep), nil
			}),
		},
	}
}

func coreLen(_ context.Context, v entities.Value) (int64, error) {
	switch v.Kind {
	case entities.KindString:
		s, _ := v.AsString()
		return int64(utf8.RuneCountInString(s)), nil
	case entities.KindArray:
		a, _ := v.AsArray()
		return int64(a.Len()), nil
	case entities.KindMap:
		m, _ := v.AsMap()
		return int64(m.Len()), nil
	}
	return 0, &entities.TypeMismatch{Want: "string, array or map", Got: v.TypeName()}
}

func coreContains(_ context.Context, container, needle entities.Value) (bool, error) {
	switch container.Kind {
	case entities.KindArray:
		a, _ := container.AsArray()
		for _, it := range a.Items {
			if it.Equal(needle) {
				return true, nil
			}
		}
		return false, nil
	case entities.KindMap:
		m, _ := container.AsMap()
		key, ok := needle.AsString()
		if !ok {
			return false, &entities.TypeMismatch{Want: "string", Got: needle.TypeName()}
		}
		_, found := m.Get(key)
		return found, nil
	case entities.KindString:
		s, _ := container.AsString()
		sub, ok := needle.AsString()
		if !ok {
			return false, &entities.TypeMismatch{Want: "string", Got: needle.TypeName()}
		}
		return strings.Contains(s, sub), nil
	}
	return false, &entities.TypeMismatch{Want: "string, array or map", Got: container.TypeName()}
}

func coreRange(_ context.Context, from, to int64) ([]entities.Value, error) {
	if to <= from {
		return []entities.Value{}, nil
	}
	if to-from > MaxRangeLen || to-from < 0 {
		return nil, fmt.Errorf("range of %d..%d exceeds %d elements", from, to, MaxRangeLen)
	}
	out := make([]entities.Value, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, entities.Int(i))
	}
	return out, nil
}
