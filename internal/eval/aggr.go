package eval

import (
	"github.com/cockroachdb/errors"

	"github.com/roach88/qopt/internal/ir"
)

// reduce aggregates vals with fn. Nils are ignored; without non-nil values
// the result is nil.
func reduce(fn string, vals []ir.Value) (ir.Value, error) {
	var acc ir.Value = ir.Nil{}
	n := 0
	var total float64
	for _, v := range vals {
		if ir.IsNil(v) {
			continue
		}
		n++
		switch fn {
		case ir.FnAvg:
			f, ok := number(v)
			if !ok {
				return nil, errors.Newf("avg over %s", ir.FormatValue(v))
			}
			total += f
			continue
		case ir.FnMin, ir.FnMax:
			if n == 1 {
				acc = v
				continue
			}
			c := compare(v, acc)
			if fn == ir.FnMin && c < 0 || fn == ir.FnMax && c > 0 {
				acc = v
			}
			continue
		}
		if n == 1 {
			acc = v
			continue
		}
		op := byte('+')
		if fn == ir.FnProd {
			op = '*'
		}
		var err error
		if acc, err = arith(op)([]ir.Value{acc, v}); err != nil {
			return nil, err
		}
	}
	if fn == ir.FnAvg && n > 0 {
		return ir.Dbl(total / float64(n)), nil
	}
	return acc, nil
}

func countValues(vals []ir.Value, skipNils bool) ir.Int {
	if !skipNils {
		return ir.Int(len(vals))
	}
	n := 0
	for _, v := range vals {
		if !ir.IsNil(v) {
			n++
		}
	}
	return ir.Int(n)
}

// aggrScalar evaluates aggr.f(b) for sum, prod, min, max and avg.
func aggrScalar(fn string) opFunc {
	return func(_ *call, args []Datum) ([]Datum, error) {
		b, err := asColumn(args[0])
		if err != nil {
			return nil, err
		}
		v, err := reduce(fn, Values(b))
		if err != nil {
			return nil, err
		}
		return []Datum{v}, nil
	}
}

// aggrCount evaluates aggr.count(b[, ignore_nils]).
func aggrCount(_ *call, args []Datum) ([]Datum, error) {
	b, err := asColumn(args[0])
	if err != nil {
		return nil, err
	}
	skip := false
	if len(args) > 1 {
		if skip, err = asBool(args[1]); err != nil {
			return nil, err
		}
	}
	return []Datum{countValues(Values(b), skip)}, nil
}

// aggrCountNoNil evaluates aggr.count_no_nil(b).
func aggrCountNoNil(_ *call, args []Datum) ([]Datum, error) {
	b, err := asColumn(args[0])
	if err != nil {
		return nil, err
	}
	return []Datum{countValues(Values(b), true)}, nil
}

// columnAvg evaluates batcalc.avg(b): the average of b and the number of
// values it was taken over.
func columnAvg(_ *call, args []Datum) ([]Datum, error) {
	b, err := asColumn(args[0])
	if err != nil {
		return nil, err
	}
	v, err := reduce(ir.FnAvg, Values(b))
	if err != nil {
		return nil, err
	}
	return []Datum{v, countValues(Values(b), true)}, nil
}

// aggrGrouped evaluates aggr.subf(b, g, e, skip_nils): one value per group,
// the number of groups being the length of e. Without skip_nils a group
// holding a nil aggregates to nil; subcount then counts every row.
func aggrGrouped(fn string) opFunc {
	return func(c *call, args []Datum) ([]Datum, error) {
		if len(args) < 3 {
			return nil, errors.Newf("aggr.sub%s needs values, groups and extents", fn)
		}
		cols, err := columns(args[:3])
		if err != nil {
			return nil, err
		}
		b, g, e := cols[0], cols[1], cols[2]
		if g.Len() != b.Len() {
			return nil, errors.Newf("%d values in %d groups", b.Len(), g.Len())
		}
		skip := false
		if len(args) > 3 {
			if skip, err = asBool(args[3]); err != nil {
				return nil, err
			}
		}

		buckets := make([][]ir.Value, e.Len())
		hasNil := make([]bool, e.Len())
		for i, v := range b.Vals {
			id, ok := g.Vals[i].(ir.Int)
			if !ok || int(id) < 0 || int(id) >= len(buckets) {
				return nil, errors.Newf("group id %s out of range", ir.FormatValue(g.Vals[i]))
			}
			buckets[id] = append(buckets[id], v)
			hasNil[id] = hasNil[id] || ir.IsNil(v)
		}

		out := &Column{Kind: c.kind(0), Vals: make([]ir.Value, len(buckets))}
		for i, vals := range buckets {
			switch {
			case fn == ir.FnCount:
				out.Vals[i] = countValues(vals, skip)
			case hasNil[i] && !skip:
				out.Vals[i] = ir.Nil{}
			default:
				v, err := reduce(fn, vals)
				if err != nil {
					return nil, err
				}
				out.Vals[i] = v
			}
		}
		return []Datum{out}, nil
	}
}
