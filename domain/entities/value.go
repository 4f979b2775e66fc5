package entities

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind enumerates the runtime kinds a Value may hold.
// The kind determines which Go type Value.Data carries.
type Kind int

const (
	KindNull   Kind = iota // no payload
	KindBool               // bool
	KindInt                // int64
	KindFloat              // float64
	KindString             // string
	KindArray              // *Array
	KindMap                // *Map
	KindObject             // Object (host-defined record)
)

// String returns the script-facing name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Object is a host-defined value carried through scripts opaquely.
// TypeName is the host name; the runtime may present it under an alias.
type Object interface {
	TypeName() string
}

// Cloner is implemented by objects that need a custom copy when a script
// duplicates the value (let-binding, assignment, argument passing).
// Objects without it are shared between copies.
type Cloner interface {
	CloneObject() Object
}

// Value is the universal runtime carrier exchanged between scripts and host
// capabilities. Data holds the Go value appropriate for Kind:
//
//	KindNull   nil
//	KindBool   bool
//	KindInt    int64
//	KindFloat  float64
//	KindString string
//	KindArray  *Array
//	KindMap    *Map
//	KindObject Object
type Value struct {
	Data any
	Kind Kind
}

// Null is the null Value.
var Null = Value{Kind: KindNull}

func Bool(b bool) Value     { return Value{Kind: KindBool, Data: b} }
func Int(n int64) Value     { return Value{Kind: KindInt, Data: n} }
func Float(f float64) Value { return Value{Kind: KindFloat, Data: f} }
func Str(s string) Value    { return Value{Kind: KindString, Data: s} }
func Obj(o Object) Value    { return Value{Kind: KindObject, Data: o} }

// Arr builds an array value from the given items (the slice is not copied).
func Arr(items ...Value) Value {
	return Value{Kind: KindArray, Data: &Array{Items: items}}
}

// MapOf wraps an existing Map.
func MapOf(m *Map) Value { return Value{Kind: KindMap, Data: m} }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// AsBool returns the bool payload.
func (v Value) AsBool() (bool, bool) {
	b, ok := v.Data.(bool)
	return b, ok && v.Kind == KindBool
}

// AsInt returns the int payload.
func (v Value) AsInt() (int64, bool) {
	n, ok := v.Data.(int64)
	return n, ok && v.Kind == KindInt
}

// AsFloat returns the numeric payload as float64, promoting ints.
func (v Value) AsFloat() (float64, bool) {
	switch v.Kind {
	case KindFloat:
		return v.Data.(float64), true
	case KindInt:
		return float64(v.Data.(int64)), true
	}
	return 0, false
}

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	s, ok := v.Data.(string)
	return s, ok && v.Kind == KindString
}

// AsArray returns the array payload.
func (v Value) AsArray() (*Array, bool) {
	a, ok := v.Data.(*Array)
	return a, ok && v.Kind == KindArray
}

// AsMap returns the map payload.
func (v Value) AsMap() (*Map, bool) {
	m, ok := v.Data.(*Map)
	return m, ok && v.Kind == KindMap
}

// AsObject returns the object payload.
func (v Value) AsObject() (Object, bool) {
	o, ok := v.Data.(Object)
	return o, ok && v.Kind == KindObject
}

// IsNumber reports whether v is an int or a float.
func (v Value) IsNumber() bool { return v.Kind == KindInt || v.Kind == KindFloat }

// TypeName returns the runtime type name of v. Objects report their host name.
func (v Value) TypeName() string {
	if o, ok := v.AsObject(); ok {
		return o.TypeName()
	}
	return v.Kind.String()
}

// Clone returns a copy with value semantics: arrays and maps are copied
// deeply, objects are cloned when they implement Cloner.
func (v Value) Clone() Value {
	switch v.Kind {
	case KindArray:
		src := v.Data.(*Array)
		items := make([]Value, len(src.Items))
		for i, it := range src.Items {
			items[i] = it.Clone()
		}
		return Value{Kind: KindArray, Data: &Array{Items: items}}
	case KindMap:
		src := v.Data.(*Map)
		dst := NewMap()
		for _, k := range src.keys {
			dst.Set(k, src.entries[k].Clone())
		}
		return MapOf(dst)
	case KindObject:
		if c, ok := v.Data.(Cloner); ok {
			return Obj(c.CloneObject())
		}
	}
	return v
}

// Equal reports structural equality. Ints and floats compare numerically;
// objects compare by identity.
func (v Value) Equal(o Value) bool {
	if v.IsNumber() && o.IsNumber() {
		if v.Kind == KindInt && o.Kind == KindInt {
			return v.Data.(int64) == o.Data.(int64)
		}
		a, _ := v.AsFloat()
		b, _ := o.AsFloat()
		return a == b
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindArray:
		a, b := v.Data.(*Array), o.Data.(*Array)
		if len(a.Items) != len(b.Items) {
			return false
		}
		for i := range a.Items {
			if !a.Items[i].Equal(b.Items[i]) {
				return false
			}
		}
		return true
	case KindMap:
		a, b := v.Data.(*Map), o.Data.(*Map)
		if a.Len() != b.Len() {
			return false
		}
		for _, k := range a.keys {
			bv, ok := b.Get(k)
			if !ok || !a.entries[k].Equal(bv) {
				return false
			}
		}
		return true
	default:
		return v.Data == o.Data
	}
}

// String renders the print form of v. Strings are not quoted.
func (v Value) String() string {
	if s, ok := v.AsString(); ok {
		return s
	}
	return v.Debug()
}

// Debug renders v with strings quoted, as shown by debug() and the REPL.
func (v Value) Debug() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.Data.(bool))
	case KindInt:
		return strconv.FormatInt(v.Data.(int64), 10)
	case KindFloat:
		return formatFloat(v.Data.(float64))
	case KindString:
		return strconv.Quote(v.Data.(string))
	case KindArray:
		a := v.Data.(*Array)
		parts := make([]string, len(a.Items))
		for i, it := range a.Items {
			parts[i] = it.Debug()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		m := v.Data.(*Map)
		parts := make([]string, 0, m.Len())
		for _, k := range m.keys {
			parts = append(parts, strconv.Quote(k)+": "+m.entries[k].Debug())
		}
		return "#{" + strings.Join(parts, ", ") + "}"
	case KindObject:
		if s, ok := v.Data.(fmt.Stringer); ok {
			return s.String()
		}
		return "<" + v.TypeName() + ">"
	default:
		return "<unknown>"
	}
}

func formatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// Array is the mutable backing store of an array value.
type Array struct {
	Items []Value
}

// Len returns the number of items.
func (a *Array) Len() int { return len(a.Items) }

// Append adds items at the end.
func (a *Array) Append(items ...Value) { a.Items = append(a.Items, items...) }
