package ir

import (
	"strconv"
)

// Value is a sealed interface for constant values.
// Only Nil, Int, Dbl, Str and Bit implement it.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Nil is the null constant. Its meaning depends on the variable's type:
// a nil column constant stands for "no candidate list".
type Nil struct{}

func (Nil) irValue() {}

// Int is an integral constant (int, lng and oid kinds).
type Int int64

func (Int) irValue() {}

// Dbl is a floating point constant.
type Dbl float64

func (Dbl) irValue() {}

// Str is a string constant.
type Str string

func (Str) irValue() {}

// Bit is a boolean constant.
type Bit bool

func (Bit) irValue() {}

// IsNil reports whether v is absent or the null constant.
func IsNil(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Nil)
	return ok
}

// FormatValue renders a constant the way it appears in a listing, without
// its type annotation.
func FormatValue(v Value) string {
	switch x := v.(type) {
	case nil, Nil:
		return "nil"
	case Int:
		return strconv.FormatInt(int64(x), 10)
	case Dbl:
		s := strconv.FormatFloat(float64(x), 'g', -1, 64)
		for _, c := range s {
			if c == '.' || c == 'e' || c == 'n' || c == 'I' {
				return s
			}
		}
		return s + ".0"
	case Str:
		return strconv.Quote(string(x))
	case Bit:
		return strconv.FormatBool(bool(x))
	}
	return "?"
}

// EqualValues reports whether two constants are identical.
func EqualValues(a, b Value) bool {
	if IsNil(a) || IsNil(b) {
		return IsNil(a) && IsNil(b)
	}
	return a == b
}
