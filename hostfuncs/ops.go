package hostfuncs

import (
	"context"
	"fmt"
	"math"
	"math/bits"

	"github.com/reglet-dev/scripthost/domain/entities"
)

// SumOfSquaresPrecedence sits between the additive and multiplicative tiers.
const SumOfSquaresPrecedence = 160

// OpsModule returns the @ operator: x @ y = x*x + y*y.
func OpsModule() Module {
	return Module{
		Name:    "ops",
		Mode:    ModeGlobal,
		Feature: "operator",
		Entries: []entities.Descriptor{
			Operator("@", SumOfSquaresPrecedence, entities.AssocLeft, sumOfSquares),
		},
	}
}

func sumOfSquares(_ context.Context, l, r entities.Value) (entities.Value, error) {
	x, xok := l.AsInt()
	y, yok := r.AsInt()
	if xok && yok {
		sx, ok1 := square(x)
		sy, ok2 := square(y)
		if ok1 && ok2 {
			if sum, carry := bits.Add64(sx, sy, 0); carry == 0 && sum <= math.MaxInt64 {
				return entities.Int(int64(sum)), nil
			}
		}
		return entities.Null, fmt.Errorf("%d @ %d overflows", x, y)
	}
	if !l.IsNumber() || !r.IsNumber() {
		return entities.Null, &entities.TypeMismatch{Want: "number", Got: mismatched(l, r)}
	}
	fx, _ := l.AsFloat()
	fy, _ := r.AsFloat()
	return entities.Float(fx*fx + fy*fy), nil
}

func square(n int64) (uint64, bool) {
	u := uint64(n)
	if n < 0 {
		u = uint64(-n)
		if n == math.MinInt64 {
			return 0, false
		}
	}
	hi, lo := bits.Mul64(u, u)
	return lo, hi == 0
}

func mismatched(l, r entities.Value) string {
	if !l.IsNumber() {
		return l.TypeName()
	}
	return r.TypeName()
}
