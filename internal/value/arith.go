package value

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
)

// DefaultDecimalScale is the scale decimal multiplication/division rounds
// to when the caller does not specify one, per §3.
const DefaultDecimalScale = 2

func init() {
	decimal.DivisionPrecision = 34
}

// Add implements `+` across numeric kinds: Int64+Int64 stays Int64,
// anything mixing Float64 promotes to Float64, Decimal stays Decimal and
// preserves scale, and Decimal never implicitly mixes with Float64.
func Add(op string, a, b Value) (Value, error) {
	return arith(op, a, b, func(x, y int64) (Value, error) { return Int64(x + y), nil },
		func(x, y float64) (Value, error) { return Float64(x + y), nil },
		func(x, y decimal.Decimal) (Value, error) {
			scale := maxScale(x, y)
			return Decimal(x.Add(y).Round(scale)), nil
		})
}

// Sub implements `-`.
func Sub(op string, a, b Value) (Value, error) {
	return arith(op, a, b, func(x, y int64) (Value, error) { return Int64(x - y), nil },
		func(x, y float64) (Value, error) { return Float64(x - y), nil },
		func(x, y decimal.Decimal) (Value, error) {
			scale := maxScale(x, y)
			return Decimal(x.Sub(y).Round(scale)), nil
		})
}

// Mul implements `*`; decimal multiplication rounds to DefaultDecimalScale
// using banker's (half-to-even) rounding, per shopspring/decimal's
// RoundBank and §3's requirement.
func Mul(op string, a, b Value) (Value, error) {
	return arith(op, a, b, func(x, y int64) (Value, error) { return Int64(x * y), nil },
		func(x, y float64) (Value, error) { return Float64(x * y), nil },
		func(x, y decimal.Decimal) (Value, error) {
			return Decimal(x.Mul(y).RoundBank(DefaultDecimalScale)), nil
		})
}

// Div implements `/`; integer and decimal division by zero fail, float
// division by zero yields NaN/Inf per IEEE754 and is left alone.
func Div(op string, a, b Value) (Value, error) {
	return arith(op, a, b, func(x, y int64) (Value, error) {
		if y == 0 {
			return Value{}, apexerr.New(apexerr.KindDivisionByZero, op, "integer division by zero")
		}
		return Int64(x / y), nil
	}, func(x, y float64) (Value, error) {
		return Float64(x / y), nil
	}, func(x, y decimal.Decimal) (Value, error) {
		if y.IsZero() {
			return Value{}, apexerr.New(apexerr.KindDivisionByZero, op, "decimal division by zero")
		}
		return Decimal(x.DivRound(y, DefaultDecimalScale)), nil
	})
}

// Mod implements `%`: Int64 % Int64 stays Int64; any other numeric pair,
// Decimal operands included, is computed in float64 and yields a Float64.
func Mod(op string, a, b Value) (Value, error) {
	ai, aok := a.AsInt64()
	bi, bok := b.AsInt64()
	if aok && bok {
		if bi == 0 {
			return Value{}, apexerr.New(apexerr.KindDivisionByZero, op, "modulo by zero")
		}
		return Int64(ai % bi), nil
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return Float64(mod(af, bf)), nil
	}
	return Value{}, apexerr.New(apexerr.KindTypeMismatch, op, "% requires numeric operands")
}

func mod(a, b float64) float64 {
	return math.Mod(a, b)
}

func asFloat(v Value) (float64, bool) {
	switch v.kind {
	case KindInt64:
		return float64(v.i), true
	case KindFloat64:
		return v.f, true
	case KindDecimal:
		f, _ := v.dec.Float64()
		return f, true
	default:
		return 0, false
	}
}

func maxScale(a, b decimal.Decimal) int32 {
	as, bs := a.Exponent(), b.Exponent()
	if as < bs {
		return -as
	}
	return -bs
}

func arith(op string, a, b Value,
	intFn func(int64, int64) (Value, error),
	floatFn func(float64, float64) (Value, error),
	decFn func(decimal.Decimal, decimal.Decimal) (Value, error),
) (Value, error) {
	if a.kind == KindDecimal || b.kind == KindDecimal {
		if a.kind == KindFloat64 || b.kind == KindFloat64 {
			return Value{}, apexerr.New(apexerr.KindTypeMismatch, op, "Decimal does not implicitly coerce with Float64")
		}
		return decFn(toDecimal(a), toDecimal(b))
	}
	if a.kind == KindInt64 && b.kind == KindInt64 {
		return intFn(a.i, b.i)
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return floatFn(af, bf)
	}
	return Value{}, apexerr.New(apexerr.KindTypeMismatch, op, "arithmetic requires numeric operands")
}
