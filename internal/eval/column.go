package eval

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/roach88/qopt/internal/ir"
)

// Column is an in-memory column. Row i has the row id (oid) Base+i, so
// columns cut from one table keep globally unique row ids.
type Column struct {
	Kind ir.Kind
	Base int64
	Vals []ir.Value
}

// NewColumn returns a column of the given kind with head base 0.
func NewColumn(kind ir.Kind, vals ...ir.Value) *Column {
	return &Column{Kind: kind, Vals: vals}
}

// Len returns the number of rows.
func (c *Column) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Vals)
}

// Oid returns the row id of row i.
func (c *Column) Oid(i int) ir.Int { return ir.Int(c.Base + int64(i)) }

// Pos maps a row id to a row index; ok is false outside the column.
func (c *Column) Pos(oid ir.Value) (int, bool) {
	o, isInt := oid.(ir.Int)
	if !isInt {
		return 0, false
	}
	i := int64(o) - c.Base
	if i < 0 || i >= int64(len(c.Vals)) {
		return 0, false
	}
	return int(i), true
}

func (c *Column) String() string {
	parts := make([]string, len(c.Vals))
	for i, v := range c.Vals {
		parts[i] = ir.FormatValue(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Datum is an evaluated variable: an ir.Value for scalars, a *Column for
// columns. A nil *Column stands for "no candidate list".
type Datum any

// Format renders a datum for diagnostics.
func Format(d Datum) string {
	switch x := d.(type) {
	case *Column:
		if x == nil {
			return "nil"
		}
		return x.String()
	case ir.Value:
		return ir.FormatValue(x)
	}
	return fmt.Sprintf("%v", d)
}

// Equivalent reports whether two data denote the same result. Scalars
// must be equal (doubles within a small relative tolerance); columns must
// hold the same multiset of values, since plans without an explicit order
// may produce rows in any order.
func Equivalent(a, b Datum) bool {
	ca, aCol := a.(*Column)
	cb, bCol := b.(*Column)
	if aCol != bCol {
		return false
	}
	if !aCol {
		va, _ := a.(ir.Value)
		vb, _ := b.(ir.Value)
		return sameValue(va, vb)
	}
	if ca.Len() != cb.Len() {
		return false
	}
	xs := sortedValues(ca)
	ys := sortedValues(cb)
	for i := range xs {
		if !sameValue(xs[i], ys[i]) {
			return false
		}
	}
	return true
}

func sortedValues(c *Column) []ir.Value {
	if c == nil {
		return nil
	}
	vs := slices.Clone(c.Vals)
	slices.SortStableFunc(vs, func(a, b ir.Value) int {
		return order(a, b, true, false)
	})
	return vs
}

func sameValue(a, b ir.Value) bool {
	if ir.IsNil(a) || ir.IsNil(b) {
		return ir.IsNil(a) && ir.IsNil(b)
	}
	x, xok := number(a)
	y, yok := number(b)
	if xok && yok {
		if x == y {
			return true
		}
		return math.Abs(x-y) <= 1e-9*math.Max(math.Abs(x), math.Abs(y))
	}
	return a == b
}

// Values returns the values of a column datum, or the scalar as a
// one-element slice.
func Values(d Datum) []ir.Value {
	switch x := d.(type) {
	case *Column:
		if x == nil {
			return nil
		}
		return x.Vals
	case ir.Value:
		return []ir.Value{x}
	}
	return nil
}

func number(v ir.Value) (float64, bool) {
	switch x := v.(type) {
	case ir.Int:
		return float64(x), true
	case ir.Dbl:
		return float64(x), true
	}
	return 0, false
}

// compare orders two non-nil values. Numbers compare numerically across
// int and dbl; other kinds compare within their kind.
func compare(a, b ir.Value) int {
	if x, ok := a.(ir.Int); ok {
		if y, ok := b.(ir.Int); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	switch x := a.(type) {
	case ir.Str:
		if y, ok := b.(ir.Str); ok {
			return strings.Compare(string(x), string(y))
		}
	case ir.Bit:
		if y, ok := b.(ir.Bit); ok {
			switch {
			case x == y:
				return 0
			case !bool(x):
				return -1
			}
			return 1
		}
	}
	return strings.Compare(ir.FormatValue(a), ir.FormatValue(b))
}

// order is compare extended with nils, placed first or last, and a sort
// direction that applies to non-nil values only.
func order(a, b ir.Value, asc, nilsLast bool) int {
	an, bn := ir.IsNil(a), ir.IsNil(b)
	switch {
	case an && bn:
		return 0
	case an:
		if nilsLast {
			return 1
		}
		return -1
	case bn:
		if nilsLast {
			return -1
		}
		return 1
	}
	c := compare(a, b)
	if !asc {
		c = -c
	}
	return c
}

func truth(v ir.Value) (bool, bool) {
	b, ok := v.(ir.Bit)
	return bool(b), ok
}
