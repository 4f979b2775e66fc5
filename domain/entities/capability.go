package entities

import "context"

// NativeFunc is the calling convention shared by every host capability:
// positional script arguments in, one script value out. A returned error
// becomes a script-visible failure.
type NativeFunc func(ctx context.Context, args []Value) (Value, error)

// Variadic marks a native that accepts any number of arguments.
const Variadic = -1

// CapabilityKind enumerates what a descriptor binds.
type CapabilityKind string

const (
	KindTypeAlias CapabilityKind = "type-alias"
	KindConstant  CapabilityKind = "constant"
	KindFunction  CapabilityKind = "function"
	KindProperty  CapabilityKind = "property-getter"
	KindOperator  CapabilityKind = "operator"
)

// Visibility tells how a bound entry is reached from scripts.
type Visibility string

const (
	VisibilityGlobal     Visibility = "global"
	VisibilityNamespaced Visibility = "namespaced"
)

// Descriptor declares one capability. Descriptors are plain data built before
// any script runs and are never mutated once handed to a registry.
type Descriptor struct {
	// Value is the payload of a constant.
	Value Value

	// Func implements functions, property getters and operators.
	Func NativeFunc

	// Name is the script-facing name. For operators it is the token, for
	// type aliases the alias, for properties the property name.
	Name string

	// Kind selects what is bound.
	Kind CapabilityKind

	// Target is the host type name a property getter or type alias applies to.
	Target string

	// Operator carries precedence and associativity for operator descriptors.
	Operator OperatorSpec

	// Arity is the number of script arguments Func takes, or Variadic.
	Arity int

	// Exported gates registration; unexported descriptors stay invisible.
	Exported bool

	// Global makes a function in a namespaced module reachable unqualified too.
	Global bool
}

// AsGlobal returns a copy of d carrying the global-exposure flag.
func (d Descriptor) AsGlobal() Descriptor {
	d.Global = true
	return d
}

// Hidden returns a copy of d that will not be registered.
func (d Descriptor) Hidden() Descriptor {
	d.Exported = false
	return d
}
