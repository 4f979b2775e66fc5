package entities

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// FromGo converts a plain Go value into a Value. It accepts the shapes produced
// by encoding/json (with or without UseNumber), gopkg.in/yaml.v3 and
// go-toml, plus Values, Objects and the common integer widths.
func FromGo(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null, nil
	case Value:
		return t, nil
	case Object:
		return Obj(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Float(float64(t)), nil
		}
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return Int(n), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Null, fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return Float(f), nil
	case string:
		return Str(t), nil
	case []byte:
		return Str(string(t)), nil
	case []Value:
		return Arr(t...), nil
	case *Array:
		return Value{Kind: KindArray, Data: t}, nil
	case *Map:
		return MapOf(t), nil
	case []any:
		items := make([]Value, len(t))
		for i, it := range t {
			v, err := FromGo(it)
			if err != nil {
				return Null, err
			}
			items[i] = v
		}
		return Arr(items...), nil
	case map[string]Value:
		m := NewMap()
		for _, k := range sortedKeys(t) {
			m.Set(k, t[k])
		}
		return MapOf(m), nil
	case map[string]any:
		m := NewMap()
		for _, k := range sortedKeys(t) {
			v, err := FromGo(t[k])
			if err != nil {
				return Null, err
			}
			m.Set(k, v)
		}
		return MapOf(m), nil
	case map[any]any:
		plain := make(map[string]any, len(t))
		for k, v := range t {
			plain[fmt.Sprint(k)] = v
		}
		return FromGo(plain)
	default:
		return Null, fmt.Errorf("unsupported host value of type %T", x)
	}
}

// ToGo converts v into plain Go data suitable for encoders: nil, bool,
// int64, float64, string, []any and map[string]any. Objects are returned
// as-is.
func ToGo(v Value) any {
	switch v.Kind {
	case KindArray:
		a := v.Data.(*Array)
		out := make([]any, len(a.Items))
		for i, it := range a.Items {
			out[i] = ToGo(it)
		}
		return out
	case KindMap:
		m := v.Data.(*Map)
		out := make(map[string]any, m.Len())
		for _, k := range m.keys {
			out[k] = ToGo(m.entries[k])
		}
		return out
	default:
		return v.Data
	}
}

// Decode extracts a typed Go value from v. It is the argument-side half of the
// typed native wrappers; T may be Value, a scalar, []Value, *Array, *Map,
// map[string]Value, or a concrete Object type.
func Decode[T any](v Value) (T, error) {
	var out T
	switch p := any(&out).(type) {
	case *Value:
		*p = v
		return out, nil
	case *bool:
		if b, ok := v.AsBool(); ok {
			*p = b
			return out, nil
		}
	case *int64:
		if n, ok := v.AsInt(); ok {
			*p = n
			return out, nil
		}
	case *int:
		if n, ok := v.AsInt(); ok {
			*p = int(n)
			return out, nil
		}
	case *float64:
		if f, ok := v.AsFloat(); ok {
			*p = f
			return out, nil
		}
	case *string:
		if s, ok := v.AsString(); ok {
			*p = s
			return out, nil
		}
	case *[]Value:
		if a, ok := v.AsArray(); ok {
			*p = a.Items
			return out, nil
		}
	case **Array:
		if a, ok := v.AsArray(); ok {
			*p = a
			return out, nil
		}
	case **Map:
		if m, ok := v.AsMap(); ok {
			*p = m
			return out, nil
		}
	case *map[string]Value:
		if m, ok := v.AsMap(); ok {
			plain := make(map[string]Value, m.Len())
			for _, k := range m.keys {
				plain[k] = m.entries[k]
			}
			*p = plain
			return out, nil
		}
	default:
		if o, ok := v.Data.(T); ok && v.Kind == KindObject {
			return o, nil
		}
	}
	return out, &TypeMismatch{Want: fmt.Sprintf("%T", out), Got: v.TypeName()}
}

// TypeMismatch reports a value whose kind does not fit the expected Go type.
type TypeMismatch struct {
	Want string
	Got  string
}

func (e *TypeMismatch) Error() string {
	return fmt.Sprintf("type mismatch: expected %s, got %s", goTypeToScript(e.Want), e.Got)
}

func goTypeToScript(t string) string {
	switch t {
	case "bool":
		return "bool"
	case "int64", "int":
		return "int"
	case "float64":
		return "number"
	case "string":
		return "string"
	case "[]entities.Value", "*entities.Array":
		return "array"
	case "*entities.Map", "map[string]entities.Value":
		return "map"
	}
	return t
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
