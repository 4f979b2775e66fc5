package ports

import (
	"context"

	"github.com/reglet-dev/scripthost/domain/entities"
)

// Binder is the installation surface a script runtime exposes to capability
// registries. Every method fails with a ConfigError when the entry collides
// with one already bound or is otherwise invalid.
type Binder interface {
	// BindFunction makes fn callable at path, e.g. ["len"] or ["codec", "json", "encode"].
	BindFunction(path []string, fn entities.NativeFunc, arity int) error

	// BindConstant makes v resolvable at path.
	BindConstant(path []string, v entities.Value) error

	// BindTypeAlias presents objects whose host type name is hostType as alias.
	BindTypeAlias(hostType, alias string) error

	// BindProperty attaches a read-only property to a host type.
	BindProperty(hostType, name string, getter entities.NativeFunc) error

	// BindOperator registers an infix operator token at a precedence tier.
	BindOperator(spec entities.OperatorSpec, fn entities.NativeFunc) error
}

// CapabilitySource is anything that can install capabilities into a runtime.
type CapabilitySource interface {
	Bind(b Binder) error
}

// ScriptRuntime executes script source to completion.
type ScriptRuntime interface {
	// Run parses and evaluates src. name is used in diagnostics.
	Run(ctx context.Context, name, src string) (entities.Value, error)
}
