package eval

import (
	"math"

	"github.com/cockroachdb/errors"

	"github.com/roach88/qopt/internal/ir"
)

// scalarFunc computes one value of a calc operator. Nil operands yield nil
// unless the operator says otherwise.
type scalarFunc func(args []ir.Value) (ir.Value, error)

var scalarFuncs = map[string]scalarFunc{
	"+":   arith('+'),
	"-":   arith('-'),
	"*":   arith('*'),
	"/":   arith('/'),
	"%":   arith('%'),
	"==":  comparison(func(c int) bool { return c == 0 }),
	"!=":  comparison(func(c int) bool { return c != 0 }),
	"<":   comparison(func(c int) bool { return c < 0 }),
	"<=":  comparison(func(c int) bool { return c <= 0 }),
	">":   comparison(func(c int) bool { return c > 0 }),
	">=":  comparison(func(c int) bool { return c >= 0 }),
	"and": logic(func(a, b bool) bool { return a && b }),
	"or":  logic(func(a, b bool) bool { return a || b }),
	"not": not,

	"isnil":         isnil,
	ir.FnIfthenelse: ifthenelse,
	ir.FnDbl:        castDbl,
	"int":           castInt,
	"lng":           castInt,
	"oid":           castInt,
	"str":           castStr,
}

func arith(op byte) scalarFunc {
	return func(args []ir.Value) (ir.Value, error) {
		if len(args) != 2 {
			return nil, errors.Newf("%c needs two operands", op)
		}
		a, b := args[0], args[1]
		if ir.IsNil(a) || ir.IsNil(b) {
			return ir.Nil{}, nil
		}
		x, xi := a.(ir.Int)
		y, yi := b.(ir.Int)
		if xi && yi {
			switch op {
			case '+':
				return x + y, nil
			case '-':
				return x - y, nil
			case '*':
				return x * y, nil
			case '/':
				if y == 0 {
					return ir.Nil{}, nil
				}
				return x / y, nil
			case '%':
				if y == 0 {
					return ir.Nil{}, nil
				}
				return x % y, nil
			}
		}
		f, fok := number(a)
		g, gok := number(b)
		if !fok || !gok {
			return nil, errors.Newf("%c over %s and %s", op, ir.FormatValue(a), ir.FormatValue(b))
		}
		switch op {
		case '+':
			return ir.Dbl(f + g), nil
		case '-':
			return ir.Dbl(f - g), nil
		case '*':
			return ir.Dbl(f * g), nil
		case '/':
			if g == 0 {
				return ir.Nil{}, nil
			}
			return ir.Dbl(f / g), nil
		case '%':
			if g == 0 {
				return ir.Nil{}, nil
			}
			return ir.Dbl(math.Mod(f, g)), nil
		}
		return nil, errors.AssertionFailedf("unknown operator %c", op)
	}
}

func comparison(test func(int) bool) scalarFunc {
	return func(args []ir.Value) (ir.Value, error) {
		if len(args) != 2 {
			return nil, errors.New("comparison needs two operands")
		}
		if ir.IsNil(args[0]) || ir.IsNil(args[1]) {
			return ir.Nil{}, nil
		}
		return ir.Bit(test(compare(args[0], args[1]))), nil
	}
}

func logic(op func(a, b bool) bool) scalarFunc {
	return func(args []ir.Value) (ir.Value, error) {
		if len(args) != 2 {
			return nil, errors.New("logical operator needs two operands")
		}
		a, aok := truth(args[0])
		b, bok := truth(args[1])
		if !aok || !bok {
			return ir.Nil{}, nil
		}
		return ir.Bit(op(a, b)), nil
	}
}

func not(args []ir.Value) (ir.Value, error) {
	if len(args) != 1 {
		return nil, errors.New("not needs one operand")
	}
	a, ok := truth(args[0])
	if !ok {
		return ir.Nil{}, nil
	}
	return ir.Bit(!a), nil
}

func isnil(args []ir.Value) (ir.Value, error) {
	if len(args) != 1 {
		return nil, errors.New("isnil needs one operand")
	}
	return ir.Bit(ir.IsNil(args[0])), nil
}

// ifthenelse picks its second operand when the first is true and its third
// otherwise; a nil condition yields nil.
func ifthenelse(args []ir.Value) (ir.Value, error) {
	if len(args) != 3 {
		return nil, errors.New("ifthenelse needs three operands")
	}
	cond, ok := truth(args[0])
	if !ok {
		return ir.Nil{}, nil
	}
	if cond {
		return args[1], nil
	}
	return args[2], nil
}

func castDbl(args []ir.Value) (ir.Value, error) {
	if len(args) < 1 {
		return nil, errors.New("dbl needs an operand")
	}
	if ir.IsNil(args[0]) {
		return ir.Nil{}, nil
	}
	f, ok := number(args[0])
	if !ok {
		return nil, errors.Newf("cannot convert %s to dbl", ir.FormatValue(args[0]))
	}
	return ir.Dbl(f), nil
}

func castInt(args []ir.Value) (ir.Value, error) {
	if len(args) < 1 {
		return nil, errors.New("integer cast needs an operand")
	}
	switch x := args[0].(type) {
	case ir.Int:
		return x, nil
	case ir.Dbl:
		return ir.Int(int64(x)), nil
	case ir.Bit:
		if x {
			return ir.Int(1), nil
		}
		return ir.Int(0), nil
	}
	if ir.IsNil(args[0]) {
		return ir.Nil{}, nil
	}
	return nil, errors.Newf("cannot convert %s to an integer", ir.FormatValue(args[0]))
}

func castStr(args []ir.Value) (ir.Value, error) {
	if len(args) < 1 {
		return nil, errors.New("str needs an operand")
	}
	switch x := args[0].(type) {
	case ir.Str:
		return x, nil
	case nil, ir.Nil:
		return ir.Nil{}, nil
	}
	return ir.Str(ir.FormatValue(args[0])), nil
}

// scalarCall evaluates calc.f over scalars.
func scalarCall(name string) opFunc {
	f := scalarFuncs[name]
	return func(_ *call, args []Datum) ([]Datum, error) {
		vals := make([]ir.Value, len(args))
		for i, a := range args {
			v, err := asScalar(a)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		v, err := f(vals)
		if err != nil {
			return nil, err
		}
		return []Datum{v}, nil
	}
}

// columnCall evaluates batcalc.f row by row. Scalar operands apply to every
// row; nil candidate lists are dropped.
func columnCall(name string) opFunc {
	f := scalarFuncs[name]
	return func(c *call, args []Datum) ([]Datum, error) {
		operands := make([]Datum, 0, len(args))
		for _, a := range args {
			if col, ok := a.(*Column); ok && col == nil {
				continue
			}
			operands = append(operands, a)
		}
		out, err := mapRows(c.kind(0), operands, f)
		if err != nil {
			return nil, errors.Wrapf(err, "batcalc.%s", name)
		}
		return []Datum{out}, nil
	}
}

// multiplex evaluates mal.multiplex(module, function, operands...) by
// applying the scalar function row by row.
func multiplex(c *call, args []Datum) ([]Datum, error) {
	if len(args) < 3 {
		return nil, errors.New("mal.multiplex needs a function and operands")
	}
	fn, err := asString(args[1])
	if err != nil {
		return nil, err
	}
	f, ok := scalarFuncs[fn]
	if !ok {
		return nil, errors.Mark(errors.Newf("multiplex of %s", fn), ErrUnsupported)
	}
	out, err := mapRows(c.kind(0), args[2:], f)
	if err != nil {
		return nil, err
	}
	return []Datum{out}, nil
}

// mapRows applies f to each row of its column operands. All columns must
// have the same length; the result takes the row ids of the first one.
func mapRows(kind ir.Kind, args []Datum, f scalarFunc) (*Column, error) {
	var first *Column
	for _, a := range args {
		if col, ok := a.(*Column); ok {
			if first == nil {
				first = col
			} else if col.Len() != first.Len() {
				return nil, errors.Newf("operands of %d and %d rows", first.Len(), col.Len())
			}
		}
	}
	if first == nil {
		return nil, errors.New("no column operand")
	}
	out := &Column{Kind: kind, Base: first.Base, Vals: make([]ir.Value, first.Len())}
	row := make([]ir.Value, len(args))
	for i := range out.Vals {
		for j, a := range args {
			switch x := a.(type) {
			case *Column:
				row[j] = x.Vals[i]
			case ir.Value:
				row[j] = x
			}
		}
		v, err := f(row)
		if err != nil {
			return nil, err
		}
		out.Vals[i] = v
	}
	return out, nil
}
