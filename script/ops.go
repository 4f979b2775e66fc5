package script

import (
	"fmt"
	"math"
	"strings"

	"github.com/reglet-dev/scripthost/domain/entities"
	domainerrors "github.com/reglet-dev/scripthost/domain/errors"
)

// opError is an operator failure before a source position is attached.
type opError struct {
	code string
	msg  string
}

func (e *opError) Error() string { return e.msg }

func arithmeticError(format string, args ...any) *opError {
	return &opError{code: domainerrors.CodeArithmetic, msg: fmt.Sprintf(format, args...)}
}

// binaryOp applies a built-in non-logical infix operator. typeName renders
// operand types in error messages.
func binaryOp(op string, l, r entities.Value, typeName func(entities.Value) string) (entities.Value, *opError) {
	switch op {
	case "==":
		return entities.Bool(l.Equal(r)), nil
	case "!=":
		return entities.Bool(!l.Equal(r)), nil
	case "<", "<=", ">", ">=":
		c, ok := compare(l, r)
		if !ok {
			return entities.Null, &opError{
				code: domainerrors.CodeTypeMismatch,
				msg:  fmt.Sprintf("cannot compare %s with %s", typeName(l), typeName(r)),
			}
		}
		switch op {
		case "<":
			return entities.Bool(c < 0), nil
		case "<=":
			return entities.Bool(c <= 0), nil
		case ">":
			return entities.Bool(c > 0), nil
		default:
			return entities.Bool(c >= 0), nil
		}
	}

	if op == "+" {
		if l.Kind == entities.KindString || r.Kind == entities.KindString {
			return entities.Str(l.String() + r.String()), nil
		}
		if la, ok := l.AsArray(); ok {
			if ra, ok := r.AsArray(); ok {
				items := make([]entities.Value, 0, la.Len()+ra.Len())
				for _, it := range la.Items {
					items = append(items, it.Clone())
				}
				for _, it := range ra.Items {
					items = append(items, it.Clone())
				}
				return entities.Arr(items...), nil
			}
		}
	}

	if a, ok := l.AsInt(); ok {
		if b, ok := r.AsInt(); ok {
			n, err := intArith(op, a, b)
			if err != nil {
				return entities.Null, err
			}
			return entities.Int(n), nil
		}
	}
	if l.IsNumber() && r.IsNumber() {
		a, _ := l.AsFloat()
		b, _ := r.AsFloat()
		f, err := floatArith(op, a, b)
		if err != nil {
			return entities.Null, err
		}
		return entities.Float(f), nil
	}

	return entities.Null, &opError{
		code: domainerrors.CodeTypeMismatch,
		msg:  fmt.Sprintf("operator %s does not apply to %s and %s", op, typeName(l), typeName(r)),
	}
}

// compare orders numbers numerically and strings lexically.
func compare(l, r entities.Value) (int, bool) {
	if a, ok := l.AsInt(); ok {
		if b, ok := r.AsInt(); ok {
			switch {
			case a < b:
				return -1, true
			case a > b:
				return 1, true
			}
			return 0, true
		}
	}
	if l.IsNumber() && r.IsNumber() {
		a, _ := l.AsFloat()
		b, _ := r.AsFloat()
		switch {
		case a < b:
			return -1, true
		case a > b:
			return 1, true
		}
		return 0, true
	}
	if a, ok := l.AsString(); ok {
		if b, ok := r.AsString(); ok {
			return strings.Compare(a, b), true
		}
	}
	return 0, false
}

func intArith(op string, a, b int64) (int64, *opError) {
	switch op {
	case "+":
		s := a + b
		if (a > 0 && b > 0 && s < 0) || (a < 0 && b < 0 && s >= 0) {
			return 0, arithmeticError("integer overflow: %d + %d", a, b)
		}
		return s, nil
	case "-":
		d := a - b
		if (a >= 0 && b < 0 && d < 0) || (a < 0 && b > 0 && d >= 0) {
			return 0, arithmeticError("integer overflow: %d - %d", a, b)
		}
		return d, nil
	case "*":
		p, ok := mulChecked(a, b)
		if !ok {
			return 0, arithmeticError("integer overflow: %d * %d", a, b)
		}
		return p, nil
	case "/":
		if b == 0 {
			return 0, arithmeticError("division by zero")
		}
		if a == math.MinInt64 && b == -1 {
			return 0, arithmeticError("integer overflow: %d / %d", a, b)
		}
		return a / b, nil
	case "%":
		if b == 0 {
			return 0, arithmeticError("division by zero")
		}
		if b == -1 {
			return 0, nil
		}
		return a % b, nil
	case "**":
		if b < 0 {
			return 0, arithmeticError("negative exponent %d for integer power", b)
		}
		result, base, exp := int64(1), a, b
		for exp > 0 {
			var ok bool
			if exp&1 == 1 {
				if result, ok = mulChecked(result, base); !ok {
					return 0, arithmeticError("integer overflow: %d ** %d", a, b)
				}
			}
			exp >>= 1
			if exp > 0 {
				if base, ok = mulChecked(base, base); !ok {
					return 0, arithmeticError("integer overflow: %d ** %d", a, b)
				}
			}
		}
		return result, nil
	}
	return 0, &opError{code: domainerrors.CodeTypeMismatch, msg: fmt.Sprintf("unknown operator %s", op)}
}

func mulChecked(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	p := a * b
	if p/b != a {
		return 0, false
	}
	return p, true
}

func floatArith(op string, a, b float64) (float64, *opError) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return 0, arithmeticError("division by zero")
		}
		return a / b, nil
	case "%":
		if b == 0 {
			return 0, arithmeticError("division by zero")
		}
		return math.Mod(a, b), nil
	case "**":
		return math.Pow(a, b), nil
	}
	return 0, &opError{code: domainerrors.CodeTypeMismatch, msg: fmt.Sprintf("unknown operator %s", op)}
}

// unaryOp applies - or !.
func unaryOp(op string, x entities.Value, typeName func(entities.Value) string) (entities.Value, *opError) {
	switch op {
	case "-":
		if n, ok := x.AsInt(); ok {
			if n == math.MinInt64 {
				return entities.Null, arithmeticError("integer overflow: -(%d)", n)
			}
			return entities.Int(-n), nil
		}
		if x.Kind == entities.KindFloat {
			f, _ := x.AsFloat()
			return entities.Float(-f), nil
		}
	case "!":
		if b, ok := x.AsBool(); ok {
			return entities.Bool(!b), nil
		}
	}
	return entities.Null, &opError{
		code: domainerrors.CodeTypeMismatch,
		msg:  fmt.Sprintf("operator %s does not apply to %s", op, typeName(x)),
	}
}
