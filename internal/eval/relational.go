package eval

import (
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/roach88/qopt/internal/ir"
)

// bounds returns the row range [lo, hi) of partition k out of n over rows
// rows. Without partitioning arguments the whole range is returned.
func bounds(rows int, args []Datum) (int, int, error) {
	if len(args) < 2 {
		return 0, rows, nil
	}
	k, err := asInt(args[0])
	if err != nil {
		return 0, 0, err
	}
	n, err := asInt(args[1])
	if err != nil {
		return 0, 0, err
	}
	if n <= 0 || k < 0 || k >= n {
		return 0, 0, errors.Newf("partition %d of %d", k, n)
	}
	return int(int64(rows) * k / n), int(int64(rows) * (k + 1) / n), nil
}

// sqlBind evaluates sql.bind(schema, table, column[, part, nparts]).
func sqlBind(c *call, args []Datum) ([]Datum, error) {
	if len(args) < 3 {
		return nil, errors.New("sql.bind needs schema, table and column")
	}
	names := make([]string, 3)
	for i := range names {
		s, err := asString(args[i])
		if err != nil {
			return nil, err
		}
		names[i] = s
	}
	vals, ok := c.env.cat.Column(names[0], names[1], names[2])
	if !ok {
		return nil, errors.Newf("no column %s.%s.%s", names[0], names[1], names[2])
	}
	lo, hi, err := bounds(len(vals), args[3:])
	if err != nil {
		return nil, err
	}
	return []Datum{&Column{Kind: c.kind(0), Base: int64(lo), Vals: slices.Clone(vals[lo:hi])}}, nil
}

// sqlTid evaluates sql.tid(schema, table[, part, nparts]): the row ids of
// the table or of one partition of it.
func sqlTid(c *call, args []Datum) ([]Datum, error) {
	if len(args) < 2 {
		return nil, errors.New("sql.tid needs schema and table")
	}
	schema, err := asString(args[0])
	if err != nil {
		return nil, err
	}
	table, err := asString(args[1])
	if err != nil {
		return nil, err
	}
	rows, ok := c.env.cat.Rows(schema, table)
	if !ok {
		return nil, errors.Newf("no table %s.%s", schema, table)
	}
	lo, hi, err := bounds(rows, args[2:])
	if err != nil {
		return nil, err
	}
	out := &Column{Kind: ir.KindOid, Base: int64(lo), Vals: make([]ir.Value, 0, hi-lo)}
	for o := lo; o < hi; o++ {
		out.Vals = append(out.Vals, ir.Int(o))
	}
	return []Datum{out}, nil
}

// applyDelta returns col with the rows named in uid replaced by uval.
func applyDelta(col, uid, uval *Column) (*Column, error) {
	out := &Column{Kind: col.Kind, Base: col.Base, Vals: slices.Clone(col.Vals)}
	if uid == nil {
		return out, nil
	}
	if uval.Len() != uid.Len() {
		return nil, errors.Newf("delta with %d row ids and %d values", uid.Len(), uval.Len())
	}
	for i, o := range uid.Vals {
		if pos, ok := out.Pos(o); ok {
			out.Vals[pos] = uval.Vals[i]
		}
	}
	return out, nil
}

// sqlDelta evaluates sql.delta(col, uid, uval).
func sqlDelta(_ *call, args []Datum) ([]Datum, error) {
	if len(args) < 3 {
		return nil, errors.New("sql.delta needs a column and its updates")
	}
	cols, err := columns(args[:3])
	if err != nil {
		return nil, err
	}
	out, err := applyDelta(cols[0], cols[1], cols[2])
	if err != nil {
		return nil, err
	}
	return []Datum{out}, nil
}

// sqlProjectdelta evaluates sql.projectdelta(cand, col, uid, uval).
func sqlProjectdelta(c *call, args []Datum) ([]Datum, error) {
	if len(args) < 4 {
		return nil, errors.New("sql.projectdelta needs candidates, a column and its updates")
	}
	cols, err := columns(args[:4])
	if err != nil {
		return nil, err
	}
	col, err := applyDelta(cols[1], cols[2], cols[3])
	if err != nil {
		return nil, err
	}
	return projection(c, []Datum{cols[0], col})
}

func columns(args []Datum) ([]*Column, error) {
	out := make([]*Column, len(args))
	for i, a := range args {
		c, err := asColumn(a)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// matPack concatenates its parts. Scalar parts contribute one row. The
// result keeps the row ids of the first part.
func matPack(c *call, args []Datum) ([]Datum, error) {
	out := &Column{Kind: c.kind(0), Vals: []ir.Value{}}
	for i, a := range args {
		switch x := a.(type) {
		case *Column:
			if i == 0 && x != nil {
				out.Base = x.Base
			}
			out.Vals = append(out.Vals, Values(x)...)
		case ir.Value:
			out.Vals = append(out.Vals, x)
		default:
			return nil, errors.Newf("cannot pack %s", Format(a))
		}
	}
	return []Datum{out}, nil
}

// projection evaluates algebra.projection(cand, col): the values of col at
// the candidate row ids, carrying the candidates' row ids.
func projection(c *call, args []Datum) ([]Datum, error) {
	cols, err := columns(args[:2])
	if err != nil {
		return nil, err
	}
	cand, col := cols[0], cols[1]
	if col == nil {
		return nil, errors.New("projection of a nil column")
	}
	if cand == nil {
		return []Datum{&Column{Kind: col.Kind, Base: col.Base, Vals: slices.Clone(col.Vals)}}, nil
	}
	out := &Column{Kind: col.Kind, Base: cand.Base, Vals: make([]ir.Value, len(cand.Vals))}
	for i, o := range cand.Vals {
		if ir.IsNil(o) {
			out.Vals[i] = ir.Nil{}
			continue
		}
		pos, ok := col.Pos(o)
		if !ok {
			return nil, errors.Newf("projection: row id %s outside %d..%d",
				ir.FormatValue(o), col.Base, col.Base+int64(col.Len())-1)
		}
		out.Vals[i] = col.Vals[pos]
	}
	return []Datum{out}, nil
}

// project evaluates algebra.project(b, v): v repeated once per row of b.
func project(c *call, args []Datum) ([]Datum, error) {
	b, err := asColumn(args[0])
	if err != nil {
		return nil, err
	}
	v, err := asScalar(args[1])
	if err != nil {
		return nil, err
	}
	out := &Column{Kind: c.kind(0), Base: b.Base, Vals: make([]ir.Value, b.Len())}
	for i := range out.Vals {
		out.Vals[i] = v
	}
	return []Datum{out}, nil
}

// selectRange evaluates algebra.select(b, [s,] lo, hi, li, hi_incl, anti
// [, unknown]). Nil bounds are open.
func selectRange(c *call, args []Datum) ([]Datum, error) {
	b, err := asColumn(args[0])
	if err != nil {
		return nil, err
	}
	var s *Column
	rest := args[1:]
	if c.isColumnParam(1) {
		if s, err = asColumn(args[1]); err != nil {
			return nil, err
		}
		rest = args[2:]
	}
	if len(rest) < 5 {
		return nil, errors.New("algebra.select needs bounds and flags")
	}
	lo, err := asScalar(rest[0])
	if err != nil {
		return nil, err
	}
	hi, err := asScalar(rest[1])
	if err != nil {
		return nil, err
	}
	flags := make([]bool, 3)
	for i := range flags {
		if flags[i], err = asBool(rest[2+i]); err != nil {
			return nil, err
		}
	}
	li, hinc, anti := flags[0], flags[1], flags[2]

	var out []ir.Value
	for _, pos := range positions(b, s) {
		v := b.Vals[pos]
		if ir.IsNil(v) {
			continue
		}
		in := true
		if !ir.IsNil(lo) {
			cmp := compare(v, lo)
			in = cmp > 0 || (cmp == 0 && li)
		}
		if in && !ir.IsNil(hi) {
			cmp := compare(v, hi)
			in = cmp < 0 || (cmp == 0 && hinc)
		}
		if in != anti {
			out = append(out, b.Oid(pos))
		}
	}
	return []Datum{oids(out)}, nil
}

// thetaselect evaluates algebra.thetaselect(b, [s,] v, op).
func thetaselect(c *call, args []Datum) ([]Datum, error) {
	b, err := asColumn(args[0])
	if err != nil {
		return nil, err
	}
	var s *Column
	rest := args[1:]
	if c.isColumnParam(1) {
		if s, err = asColumn(args[1]); err != nil {
			return nil, err
		}
		rest = args[2:]
	}
	if len(rest) < 2 {
		return nil, errors.New("algebra.thetaselect needs a value and an operator")
	}
	v, err := asScalar(rest[0])
	if err != nil {
		return nil, err
	}
	op, err := theta(rest[1])
	if err != nil {
		return nil, err
	}
	var out []ir.Value
	if ir.IsNil(v) {
		return []Datum{oids(out)}, nil
	}
	for _, pos := range positions(b, s) {
		x := b.Vals[pos]
		if !ir.IsNil(x) && op(compare(x, v)) {
			out = append(out, b.Oid(pos))
		}
	}
	return []Datum{oids(out)}, nil
}

// theta maps a comparison operator, by name or numeric code, to a test on
// a compare result.
func theta(d Datum) (func(int) bool, error) {
	v, err := asScalar(d)
	if err != nil {
		return nil, err
	}
	name := ""
	switch x := v.(type) {
	case ir.Str:
		name = string(x)
	case ir.Int:
		name = map[ir.Int]string{0: "==", -1: "<", -2: "<=", 1: ">", 2: ">=", 6: "!="}[x]
	}
	switch name {
	case "==", "=":
		return func(c int) bool { return c == 0 }, nil
	case "!=", "<>":
		return func(c int) bool { return c != 0 }, nil
	case "<":
		return func(c int) bool { return c < 0 }, nil
	case "<=":
		return func(c int) bool { return c <= 0 }, nil
	case ">":
		return func(c int) bool { return c > 0 }, nil
	case ">=":
		return func(c int) bool { return c >= 0 }, nil
	}
	return nil, errors.Newf("unknown comparison %s", Format(d))
}

// selectNotNil evaluates algebra.selectNotNil(b): the non-nil values of b.
func selectNotNil(c *call, args []Datum) ([]Datum, error) {
	b, err := asColumn(args[0])
	if err != nil {
		return nil, err
	}
	out := &Column{Kind: c.kind(0), Vals: []ir.Value{}}
	for _, v := range b.Vals {
		if !ir.IsNil(v) {
			out.Vals = append(out.Vals, v)
		}
	}
	return []Datum{out}, nil
}

// joinWith emits the row-id pairs of l and r rows matching on match, left
// rows in candidate order and, for each, right rows in candidate order.
// With outer set, unmatched left rows pair with nil.
func joinWith(l, r, lc, rc *Column, outer bool, match func(a, b ir.Value) bool) []Datum {
	var lo, ro []ir.Value
	rpos := positions(r, rc)
	for _, i := range positions(l, lc) {
		matched := false
		for _, j := range rpos {
			if match(l.Vals[i], r.Vals[j]) {
				lo = append(lo, l.Oid(i))
				ro = append(ro, r.Oid(j))
				matched = true
			}
		}
		if outer && !matched {
			lo = append(lo, l.Oid(i))
			ro = append(ro, ir.Nil{})
		}
	}
	return []Datum{oids(lo), oids(ro)}
}

func equalMatch(nilMatches bool) func(a, b ir.Value) bool {
	return func(a, b ir.Value) bool {
		an, bn := ir.IsNil(a), ir.IsNil(b)
		if an || bn {
			return nilMatches && an && bn
		}
		return compare(a, b) == 0
	}
}

// join evaluates algebra.join and algebra.leftjoin(l, r, lc, rc,
// nil_matches, estimate). A join with more leading column operands is the
// multi-column form join(l_1..l_n, r_1..r_n, lc, rc, nil_matches, ...).
func join(c *call, args []Datum) ([]Datum, error) {
	if n := c.leadingColumns(); n > 4 {
		return multiJoin(args, n)
	}
	cols, err := columns(args[:4])
	if err != nil {
		return nil, err
	}
	nilMatches := false
	if len(args) > 4 {
		if nilMatches, err = asBool(args[4]); err != nil {
			return nil, err
		}
	}
	return joinWith(cols[0], cols[1], cols[2], cols[3], false, equalMatch(nilMatches)), nil
}

// multiJoin matches rows whose n left values equal the n right values
// pairwise. The left columns share row ids, as do the right ones.
func multiJoin(args []Datum, ncols int) ([]Datum, error) {
	data := ncols - 2
	if data%2 != 0 {
		return nil, errors.Newf("algebra.join over %d data columns", data)
	}
	cols, err := columns(args[:ncols])
	if err != nil {
		return nil, err
	}
	half := data / 2
	l, r := cols[:half], cols[half:data]
	lc, rc := cols[data], cols[data+1]
	for _, side := range [][]*Column{l, r} {
		for _, col := range side[1:] {
			if col.Len() != side[0].Len() || col.Base != side[0].Base {
				return nil, errors.New("algebra.join columns are not aligned")
			}
		}
	}
	nilMatches := false
	if len(args) > ncols {
		if nilMatches, err = asBool(args[ncols]); err != nil {
			return nil, err
		}
	}
	match := equalMatch(nilMatches)

	var lo, ro []ir.Value
	rpos := positions(r[0], rc)
	for _, i := range positions(l[0], lc) {
		for _, j := range rpos {
			all := true
			for x := range l {
				if !match(l[x].Vals[i], r[x].Vals[j]) {
					all = false
					break
				}
			}
			if all {
				lo = append(lo, l[0].Oid(i))
				ro = append(ro, r[0].Oid(j))
			}
		}
	}
	return []Datum{oids(lo), oids(ro)}, nil
}

// outerjoin evaluates algebra.outerjoin(l, r, lc, rc, nil_matches, ...).
func outerjoin(_ *call, args []Datum) ([]Datum, error) {
	cols, err := columns(args[:4])
	if err != nil {
		return nil, err
	}
	nilMatches := false
	if len(args) > 4 {
		if nilMatches, err = asBool(args[4]); err != nil {
			return nil, err
		}
	}
	return joinWith(cols[0], cols[1], cols[2], cols[3], true, equalMatch(nilMatches)), nil
}

// thetajoin evaluates algebra.thetajoin(l, r, lc, rc, op, nil_matches,
// estimate).
func thetajoin(_ *call, args []Datum) ([]Datum, error) {
	if len(args) < 5 {
		return nil, errors.New("algebra.thetajoin needs an operator")
	}
	cols, err := columns(args[:4])
	if err != nil {
		return nil, err
	}
	op, err := theta(args[4])
	if err != nil {
		return nil, err
	}
	return joinWith(cols[0], cols[1], cols[2], cols[3], false, func(a, b ir.Value) bool {
		return !ir.IsNil(a) && !ir.IsNil(b) && op(compare(a, b))
	}), nil
}

// rangejoin evaluates algebra.rangejoin(l, r1, r2, lc, rc, li, hi, anti,
// symmetric, estimate): l rows falling between the bounds of r rows.
func rangejoin(_ *call, args []Datum) ([]Datum, error) {
	if len(args) < 7 {
		return nil, errors.New("algebra.rangejoin needs bounds and flags")
	}
	cols, err := columns(args[:5])
	if err != nil {
		return nil, err
	}
	l, r1, r2, lc, rc := cols[0], cols[1], cols[2], cols[3], cols[4]
	if r1.Len() != r2.Len() {
		return nil, errors.New("rangejoin bounds differ in length")
	}
	li, err := asBool(args[5])
	if err != nil {
		return nil, err
	}
	hinc, err := asBool(args[6])
	if err != nil {
		return nil, err
	}
	var lo, ro []ir.Value
	rpos := positions(r1, rc)
	for _, i := range positions(l, lc) {
		v := l.Vals[i]
		if ir.IsNil(v) {
			continue
		}
		for _, j := range rpos {
			a, b := r1.Vals[j], r2.Vals[j]
			if ir.IsNil(a) || ir.IsNil(b) {
				continue
			}
			ca, cb := compare(v, a), compare(v, b)
			if (ca > 0 || (ca == 0 && li)) && (cb < 0 || (cb == 0 && hinc)) {
				lo = append(lo, l.Oid(i))
				ro = append(ro, r1.Oid(j))
			}
		}
	}
	return []Datum{oids(lo), oids(ro)}, nil
}

// crossproduct evaluates algebra.crossproduct(l, r, lc, rc, max_one).
func crossproduct(_ *call, args []Datum) ([]Datum, error) {
	cols, err := columns(args[:4])
	if err != nil {
		return nil, err
	}
	if len(args) > 4 {
		maxOne, err := asBool(args[4])
		if err != nil {
			return nil, err
		}
		if maxOne && len(positions(cols[1], cols[3])) > 1 {
			return nil, errors.New("crossproduct: more than one row on the right")
		}
	}
	return joinWith(cols[0], cols[1], cols[2], cols[3], false, func(ir.Value, ir.Value) bool { return true }), nil
}

// setMembers returns the set of non-nil values addressed in r, and whether
// a nil is among them.
func setMembers(r, rc *Column) (map[ir.Value]bool, bool) {
	set := make(map[ir.Value]bool)
	hasNil := false
	for _, j := range positions(r, rc) {
		v := r.Vals[j]
		if ir.IsNil(v) {
			hasNil = true
			continue
		}
		set[key(v)] = true
	}
	return set, hasNil
}

// key normalizes numbers so that equal ints and dbls share a map key.
func key(v ir.Value) ir.Value {
	if d, ok := v.(ir.Dbl); ok && d == ir.Dbl(int64(d)) {
		return ir.Int(int64(d))
	}
	return v
}

// difference evaluates algebra.difference(l, r, lc, rc, nil_matches,
// nil_clears, estimate): the row ids of l rows without a match in r.
func difference(_ *call, args []Datum) ([]Datum, error) {
	return setOp(args, false)
}

// intersect evaluates algebra.intersect(l, r, lc, rc, nil_matches,
// max_one, estimate): the row ids of l rows with a match in r.
func intersect(_ *call, args []Datum) ([]Datum, error) {
	return setOp(args, true)
}

func setOp(args []Datum, keep bool) ([]Datum, error) {
	cols, err := columns(args[:4])
	if err != nil {
		return nil, err
	}
	nilMatches := false
	if len(args) > 4 {
		if nilMatches, err = asBool(args[4]); err != nil {
			return nil, err
		}
	}
	l, lc := cols[0], cols[2]
	set, hasNil := setMembers(cols[1], cols[3])
	var out []ir.Value
	for _, i := range positions(l, lc) {
		v := l.Vals[i]
		found := false
		if ir.IsNil(v) {
			found = nilMatches && hasNil
		} else {
			found = set[key(v)]
		}
		if found == keep {
			out = append(out, l.Oid(i))
		}
	}
	return []Datum{oids(out)}, nil
}

// mirror evaluates bat.mirror(b): every row id mapped to itself.
func mirror(_ *call, args []Datum) ([]Datum, error) {
	b, err := asColumn(args[0])
	if err != nil {
		return nil, err
	}
	out := &Column{Kind: ir.KindOid, Base: b.Base, Vals: make([]ir.Value, b.Len())}
	for i := range out.Vals {
		out.Vals[i] = b.Oid(i)
	}
	return []Datum{out}, nil
}

// identity evaluates batcalc.identity(b[, start]): consecutive numbers
// from start, and the number following the last one.
func identity(_ *call, args []Datum) ([]Datum, error) {
	b, err := asColumn(args[0])
	if err != nil {
		return nil, err
	}
	var start int64
	if len(args) > 1 {
		if start, err = asInt(args[1]); err != nil {
			return nil, err
		}
	}
	out := &Column{Kind: ir.KindOid, Base: b.Base, Vals: make([]ir.Value, b.Len())}
	for i := range out.Vals {
		out.Vals[i] = ir.Int(start + int64(i))
	}
	return []Datum{out, ir.Int(start + int64(b.Len()))}, nil
}

// slice evaluates algebra.slice(b, lo, hi): rows lo through hi inclusive.
func slice(c *call, args []Datum) ([]Datum, error) {
	b, lo, hi, err := sliceArgs(args)
	if err != nil {
		return nil, err
	}
	return []Datum{&Column{Kind: c.kind(0), Base: b.Base + int64(lo), Vals: slices.Clone(b.Vals[lo:hi])}}, nil
}

// subslice evaluates algebra.subslice(b, lo, hi): the row ids of slice.
func subslice(_ *call, args []Datum) ([]Datum, error) {
	b, lo, hi, err := sliceArgs(args)
	if err != nil {
		return nil, err
	}
	out := make([]ir.Value, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, b.Oid(i))
	}
	return []Datum{oids(out)}, nil
}

// sliceArgs clips [lo, hi] to b and returns it as a half-open range.
func sliceArgs(args []Datum) (*Column, int, int, error) {
	b, err := asColumn(args[0])
	if err != nil {
		return nil, 0, 0, err
	}
	lo, err := asInt(args[1])
	if err != nil {
		return nil, 0, 0, err
	}
	hi, err := asInt(args[2])
	if err != nil {
		return nil, 0, 0, err
	}
	n := int64(b.Len())
	lo = max(lo, 0)
	hi = min(hi+1, n)
	if lo > hi {
		lo = hi
	}
	return b, int(lo), int(hi), nil
}

type ranked struct {
	pos int
	grp ir.Value
	val ir.Value
}

// firstn evaluates algebra.firstn(b, [s, g,] n, asc, nilslast, distinct).
// Rows are ordered by group then value, ties kept in candidate order. The
// first n rows are returned along with every row tying with the last of
// them; with distinct set, the rows holding the first n distinct keys. The
// optional second result numbers the keys densely.
func firstn(c *call, args []Datum) ([]Datum, error) {
	b, err := asColumn(args[0])
	if err != nil {
		return nil, err
	}
	var s, g *Column
	rest := args[1:]
	if len(args) == 7 {
		if s, err = asColumn(args[1]); err != nil {
			return nil, err
		}
		if g, err = asColumn(args[2]); err != nil {
			return nil, err
		}
		rest = args[3:]
	}
	if len(rest) != 4 {
		return nil, errors.New("algebra.firstn needs n, asc, nilslast and distinct")
	}
	n, err := asInt(rest[0])
	if err != nil {
		return nil, err
	}
	flags := make([]bool, 3)
	for i := range flags {
		if flags[i], err = asBool(rest[1+i]); err != nil {
			return nil, err
		}
	}
	asc, nilsLast, distinct := flags[0], flags[1], flags[2]

	var rows []ranked
	if s == nil {
		for i, v := range b.Vals {
			rows = append(rows, ranked{pos: i, grp: ir.Int(0), val: v})
		}
	} else {
		if g.Len() != s.Len() {
			return nil, errors.New("firstn groups and candidates differ in length")
		}
		for i, o := range s.Vals {
			pos, ok := b.Pos(o)
			if !ok {
				continue
			}
			rows = append(rows, ranked{pos: pos, grp: g.Vals[i], val: b.Vals[pos]})
		}
	}
	cmp := func(x, y ranked) int {
		if d := order(x.grp, y.grp, true, false); d != 0 {
			return d
		}
		return order(x.val, y.val, asc, nilsLast)
	}
	slices.SortStableFunc(rows, cmp)

	var sel, grp []ir.Value
	keys := int64(0)
	for i, r := range rows {
		if i == 0 || cmp(rows[i-1], r) != 0 {
			if distinct && keys >= n || !distinct && int64(i) >= n {
				break
			}
			keys++
		}
		sel = append(sel, b.Oid(r.pos))
		grp = append(grp, ir.Int(keys-1))
	}
	return []Datum{oids(sel), oids(grp)}, nil
}

type groupKey struct {
	parent ir.Value
	val    ir.Value
}

// group evaluates group.group(b) and group.subgroup(b, g[, e, h]) with
// their done variants. Group ids are assigned in order of first occurrence.
// The results are the group id of every row, the row id of every group's
// first row, and every group's size.
func group(c *call, args []Datum) ([]Datum, error) {
	b, err := asColumn(args[0])
	if err != nil {
		return nil, err
	}
	var parent *Column
	if len(args) > 1 {
		if parent, err = asColumn(args[1]); err != nil {
			return nil, err
		}
		if parent.Len() != b.Len() {
			return nil, errors.New("subgroup over groups of a different length")
		}
	}

	ids := make(map[groupKey]int)
	grp := &Column{Kind: ir.KindOid, Base: b.Base, Vals: make([]ir.Value, b.Len())}
	ext := oids([]ir.Value{})
	cnt := &Column{Kind: ir.KindLng, Vals: []ir.Value{}}
	for i, v := range b.Vals {
		k := groupKey{parent: ir.Int(0), val: key(v)}
		if ir.IsNil(v) {
			k.val = ir.Nil{}
		}
		if parent != nil {
			k.parent = parent.Vals[i]
		}
		id, ok := ids[k]
		if !ok {
			id = len(ids)
			ids[k] = id
			ext.Vals = append(ext.Vals, b.Oid(i))
			cnt.Vals = append(cnt.Vals, ir.Int(0))
		}
		grp.Vals[i] = ir.Int(id)
		cnt.Vals[id] = cnt.Vals[id].(ir.Int) + 1
	}
	return []Datum{grp, ext, cnt}, nil
}
