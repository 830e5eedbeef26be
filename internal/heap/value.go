// Package heap implements the object model and memory graph described
// in spec.md §3–§4.3: the Element/Value tagged union, Objects with
// their fixed-slot LTable, and the reference-counted Node/Edge graph
// that reclaims unreachable Objects. These three concerns are kept in
// one package because they are mutually referential in the same way
// the original C implementation's element.h and graph/memory.h are:
// an Object carries a back-pointer to its owning Node, and a Node's
// edges exist to keep an Object's fields reachable.
package heap

import (
	"fmt"
	"math"

	"jlvm/internal/vmerrors"
)

// ValueKind tags the primitive payload of a Value (spec.md §3,
// Element's Value variant: Int64 | Float64 | Char8).
type ValueKind byte

const (
	KInt ValueKind = iota
	KFloat
	KChar
)

func (k ValueKind) String() string {
	switch k {
	case KInt:
		return "Int64"
	case KFloat:
		return "Float64"
	case KChar:
		return "Char8"
	default:
		return "UnknownValue"
	}
}

// Value is a primitive scalar: an Int64, Float64, or Char8.
type Value struct {
	Kind ValueKind
	I    int64
	F    float64
	C    int8
}

func IntValue(v int64) Value   { return Value{Kind: KInt, I: v} }
func FloatValue(v float64) Value { return Value{Kind: KFloat, F: v} }
func CharValue(v int8) Value   { return Value{Kind: KChar, C: v} }

// numeric returns v's payload widened to float64, and whether v itself
// is integral (Int or Char), for use in promotion decisions.
func (v Value) numeric() (float64, bool) {
	switch v.Kind {
	case KInt:
		return float64(v.I), true
	case KChar:
		return float64(v.C), true
	case KFloat:
		return v.F, false
	}
	return 0, true
}

// asInt64 widens v to an int64, used where both operands are integral.
func (v Value) asInt64() int64 {
	switch v.Kind {
	case KInt:
		return v.I
	case KChar:
		return int64(v.C)
	default:
		return int64(v.F)
	}
}

func bothIntegral(a, b Value) bool {
	return a.Kind != KFloat && b.Kind != KFloat
}

// Arith applies a binary arithmetic operator to two Values following
// spec.md §4.1's promotion rule: Int⊕Float→Float, Char participates
// via its integer value. Division and modulo by zero on an all-integer
// pair raise ArithmeticError; float division follows IEEE-754 (so
// 1.0/0.0 is +Inf, not an error).
func Arith(op string, a, b Value) (Value, error) {
	if bothIntegral(a, b) {
		x, y := a.asInt64(), b.asInt64()
		switch op {
		case "+":
			return IntValue(x + y), nil
		case "-":
			return IntValue(x - y), nil
		case "*":
			return IntValue(x * y), nil
		case "/":
			if y == 0 {
				return Value{}, vmerrors.New(vmerrors.ArithmeticError, "integer division by zero")
			}
			return IntValue(x / y), nil
		case "%":
			if y == 0 {
				return Value{}, vmerrors.New(vmerrors.ArithmeticError, "integer modulo by zero")
			}
			return IntValue(x % y), nil
		}
	}
	x, _ := a.numeric()
	y, _ := b.numeric()
	switch op {
	case "+":
		return FloatValue(x + y), nil
	case "-":
		return FloatValue(x - y), nil
	case "*":
		return FloatValue(x * y), nil
	case "/":
		return FloatValue(x / y), nil
	case "%":
		return FloatValue(math.Mod(x, y)), nil
	}
	return Value{}, vmerrors.New(vmerrors.InternalError, "unknown arithmetic operator %q", op)
}

// Negate returns the arithmetic negation of val, preserving its kind
// (Char negation widens to Int, matching the original's value_negate).
func Negate(val Value) Value {
	switch val.Kind {
	case KInt:
		return IntValue(-val.I)
	case KFloat:
		return FloatValue(-val.F)
	default:
		return IntValue(-int64(val.C))
	}
}

// Compare orders two Values numerically (with promotion), returning
// -1, 0, or 1.
func Compare(a, b Value) int {
	if bothIntegral(a, b) {
		x, y := a.asInt64(), b.asInt64()
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	}
	x, _ := a.numeric()
	y, _ := b.numeric()
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// ValueEqual compares tag+payload with numeric promotion, per
// spec.md §4.1.
func ValueEqual(a, b Value) bool {
	return Compare(a, b) == 0
}

// Truthy implements spec.md §4.1's truthiness rule for a bare Value:
// None and integer 0 are false; every other value -- including 0.0
// and the NUL char -- is true. Only the Int64 zero is special-cased.
func (v Value) Truthy() bool {
	if v.Kind == KInt {
		return v.I != 0
	}
	return true
}

func (v Value) String() string {
	switch v.Kind {
	case KInt:
		return fmt.Sprintf("%d", v.I)
	case KFloat:
		return fmt.Sprintf("%g", v.F)
	case KChar:
		return string(rune(v.C))
	default:
		return "<value>"
	}
}
