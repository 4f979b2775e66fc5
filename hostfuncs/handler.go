package hostfuncs

import (
	"context"

	"github.com/reglet-dev/scripthost/domain/entities"
)

// Func declares a function taking exactly arity script arguments.
func Func(name string, arity int, fn entities.NativeFunc) entities.Descriptor {
	return entities.Descriptor{
		Name:     name,
		Kind:     entities.KindFunction,
		Func:     fn,
		Arity:    arity,
		Exported: true,
	}
}

// Variadic declares a function accepting any number of arguments.
func Variadic(name string, fn entities.NativeFunc) entities.Descriptor {
	return Func(name, entities.Variadic, fn)
}

// Func0 declares a typed function without arguments. The result is converted
// with entities.FromGo.
func Func0[R any](name string, fn func(context.Context) (R, error)) entities.Descriptor {
	return Func(name, 0, func(ctx context.Context, _ []entities.Value) (entities.Value, error) {
		return result(fn(ctx))
	})
}

// Func1 declares a typed function of one argument. Arguments are decoded with
// entities.Decode; a mismatch becomes an ArgumentError.
//
// Example usage:
//
//	Func1("trim", func(_ context.Context, s string) (string, error) {
//	    return strings.TrimSpace(s), nil
//	})
func Func1[A, R any](name string, fn func(context.Context, A) (R, error)) entities.Descriptor {
	return Func(name, 1, func(ctx context.Context, args []entities.Value) (entities.Value, error) {
		a, err := arg[A](args, 0)
		if err != nil {
			return entities.Null, err
		}
		return result(fn(ctx, a))
	})
}

// Func2 declares a typed function of two arguments.
func Func2[A, B, R any](name string, fn func(context.Context, A, B) (R, error)) entities.Descriptor {
	return Func(name, 2, func(ctx context.Context, args []entities.Value) (entities.Value, error) {
		a, err := arg[A](args, 0)
		if err != nil {
			return entities.Null, err
		}
		b, err := arg[B](args, 1)
		if err != nil {
			return entities.Null, err
		}
		return result(fn(ctx, a, b))
	})
}

// Func3 declares a typed function of three arguments.
func Func3[A, B, C, R any](name string, fn func(context.Context, A, B, C) (R, error)) entities.Descriptor {
	return Func(name, 3, func(ctx context.Context, args []entities.Value) (entities.Value, error) {
		a, err := arg[A](args, 0)
		if err != nil {
			return entities.Null, err
		}
		b, err := arg[B](args, 1)
		if err != nil {
			return entities.Null, err
		}
		c, err := arg[C](args, 2)
		if err != nil {
			return entities.Null, err
		}
		return result(fn(ctx, a, b, c))
	})
}

// Const declares a named constant.
func Const(name string, v entities.Value) entities.Descriptor {
	return entities.Descriptor{
		Name:     name,
		Kind:     entities.KindConstant,
		Value:    v,
		Exported: true,
	}
}

// TypeAlias presents objects whose host type name is hostType under alias.
func TypeAlias(hostType, alias string) entities.Descriptor {
	return entities.Descriptor{
		Name:     alias,
		Kind:     entities.KindTypeAlias,
		Target:   hostType,
		Exported: true,
	}
}

// Property declares a read-only property on objects of type T, where target
// is T's host type name or its alias.
func Property[T, R any](target, name string, get func(T) (R, error)) entities.Descriptor {
	return entities.Descriptor{
		Name:   name,
		Kind:   entities.KindProperty,
		Target: target,
		Arity:  1,
		Func: func(_ context.Context, args []entities.Value) (entities.Value, error) {
			recv, err := arg[T](args, 0)
			if err != nil {
				return entities.Null, err
			}
			return result(get(recv))
		},
		Exported: true,
	}
}

// Operator declares an infix operator. Precedence and associativity are
// always explicit; see entities.OperatorSpec for the built-in tiers.
func Operator(token string, precedence int, assoc entities.Associativity,
	fn func(ctx context.Context, l, r entities.Value) (entities.Value, error),
) entities.Descriptor {
	return entities.Descriptor{
		Name: token,
		Kind: entities.KindOperator,
		Operator: entities.OperatorSpec{
			Token:      token,
			Precedence: precedence,
			Assoc:      assoc,
		},
		Arity: 2,
		Func: func(ctx context.Context, args []entities.Value) (entities.Value, error) {
			return fn(ctx, args[0], args[1])
		},
		Exported: true,
	}
}

func arg[T any](args []entities.Value, i int) (T, error) {
	v, err := entities.Decode[T](args[i])
	if err != nil {
		return v, &ArgumentError{Index: i, Err: err}
	}
	return v, nil
}

func result[R any](r R, err error) (entities.Value, error) {
	if err != nil {
		return entities.Null, err
	}
	return entities.FromGo(r)
}
