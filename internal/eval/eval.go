// Package eval interprets plans over an in-memory catalog.
//
// It is a reference interpreter: every operator is evaluated directly and
// without shortcuts, so a plan and its rewritten form can be executed side
// by side and their results compared. Row ids follow the usual convention
// that a column cut from a table keeps the table's row numbers, which makes
// candidate lists from different partitions of one table interchangeable.
package eval

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/qopt/internal/ir"
)

// ErrUnsupported is returned for operators the interpreter does not know.
var ErrUnsupported = errors.New("unsupported operator")

// Catalog holds table columns keyed by "schema.table.column".
type Catalog map[string][]ir.Value

// Column returns the values of schema.table.column.
func (c Catalog) Column(schema, table, column string) ([]ir.Value, bool) {
	vals, ok := c[schema+"."+table+"."+column]
	return vals, ok
}

// Rows returns the row count of schema.table, taken from any of its
// columns.
func (c Catalog) Rows(schema, table string) (int, bool) {
	prefix := schema + "." + table + "."
	keys := make([]string, 0, len(c))
	for k := range c {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return 0, false
	}
	sort.Strings(keys)
	return len(c[keys[0]]), true
}

// Env holds the values computed for a block's variables.
type Env struct {
	b    *ir.Block
	cat  Catalog
	vals map[ir.VarID]Datum
}

// Run evaluates b against cat. Evaluation stops at the end statement.
// Control-flow statements are evaluated as straight-line code: barriers
// bind their variable and are always entered.
func Run(b *ir.Block, cat Catalog) (*Env, error) {
	e := &Env{b: b, cat: cat, vals: make(map[ir.VarID]Datum)}
	for i, p := range b.Instrs {
		switch p.Token {
		case ir.TokEnd:
			return e, nil
		case ir.TokNoop, ir.TokExit, ir.TokCatch, ir.TokReturn:
			continue
		}
		if err := e.exec(p); err != nil {
			return nil, errors.Wrapf(err, "instruction %d (%s)", i, b.Format(p))
		}
	}
	return e, nil
}

// Lookup returns the value of the named variable.
func (e *Env) Lookup(name string) (Datum, bool) {
	v, ok := e.b.Lookup(name)
	if !ok {
		return nil, false
	}
	d, err := e.Value(v)
	if err != nil {
		return nil, false
	}
	return d, true
}

// Value returns the value of v: its constant, or what an instruction
// bound to it.
func (e *Env) Value(v ir.VarID) (Datum, error) {
	if e.b.IsConst(v) {
		c := e.b.ConstValue(v)
		if e.b.Type(v).Column {
			if ir.IsNil(c) {
				return (*Column)(nil), nil
			}
			return nil, errors.Newf("column constant %s is not nil", e.b.VarName(v))
		}
		return c, nil
	}
	d, ok := e.vals[v]
	if !ok {
		return nil, errors.Newf("variable %s is undefined", e.b.VarName(v))
	}
	return d, nil
}

func (e *Env) exec(p *ir.Instruction) error {
	args := make([]Datum, p.NumParams())
	for i, v := range p.Params() {
		d, err := e.Value(v)
		if err != nil {
			return err
		}
		args[i] = d
	}
	if p.IsAssignment() {
		e.vals[p.Ret(0)] = args[0]
		return nil
	}

	fn, ok := lookupOp(p.Module, p.Function)
	if !ok {
		return errors.Mark(errors.Newf("%s", p.Name()), ErrUnsupported)
	}
	outs, err := fn(&call{env: e, p: p}, args)
	if err != nil {
		return err
	}
	if len(outs) < p.Retc {
		return errors.AssertionFailedf("%s produced %d results, want %d", p.Name(), len(outs), p.Retc)
	}
	for i, r := range p.Results() {
		e.vals[r] = outs[i]
	}
	return nil
}

// call is the context an operator is evaluated in.
type call struct {
	env *Env
	p   *ir.Instruction
}

// kind returns the declared element kind of result i.
func (c *call) kind(i int) ir.Kind {
	if i >= c.p.Retc {
		return ir.KindAny
	}
	return c.env.b.Type(c.p.Ret(i)).Kind
}

// isColumnParam reports whether parameter i is declared as a column.
func (c *call) isColumnParam(i int) bool {
	return i < c.p.NumParams() && c.env.b.Type(c.p.Param(i)).Column
}

// leadingColumns returns how many parameters, from the first, are
// declared as columns.
func (c *call) leadingColumns() int {
	n := 0
	for n < c.p.NumParams() && c.isColumnParam(n) {
		n++
	}
	return n
}

type opFunc func(c *call, args []Datum) ([]Datum, error)

var ops = map[string]opFunc{
	"sql.bind":         sqlBind,
	"sql.tid":          sqlTid,
	"sql.delta":        sqlDelta,
	"sql.projectdelta": sqlProjectdelta,
	"mat.pack":         matPack,
	"mat.new":          matPack,

	"algebra.projection":   projection,
	"algebra.project":      project,
	"algebra.select":       selectRange,
	"algebra.thetaselect":  thetaselect,
	"algebra.selectNotNil": selectNotNil,
	"algebra.join":         join,
	"algebra.leftjoin":     join,
	"algebra.outerjoin":    outerjoin,
	"algebra.thetajoin":    thetajoin,
	"algebra.rangejoin":    rangejoin,
	"algebra.crossproduct": crossproduct,
	"algebra.difference":   difference,
	"algebra.intersect":    intersect,
	"algebra.firstn":       firstn,
	"algebra.slice":        slice,
	"algebra.subslice":     subslice,

	"bat.mirror":         mirror,
	"batcalc.identity":   identity,
	"batcalc.avg":        columnAvg,
	"group.group":        group,
	"group.groupdone":    group,
	"group.subgroup":     group,
	"group.subgroupdone": group,

	"aggr.count":        aggrCount,
	"aggr.count_no_nil": aggrCountNoNil,
	"aggr.sum":          aggrScalar(ir.FnSum),
	"aggr.prod":         aggrScalar(ir.FnProd),
	"aggr.min":          aggrScalar(ir.FnMin),
	"aggr.max":          aggrScalar(ir.FnMax),
	"aggr.avg":          aggrScalar(ir.FnAvg),
	"aggr.subcount":     aggrGrouped(ir.FnCount),
	"aggr.subsum":       aggrGrouped(ir.FnSum),
	"aggr.subprod":      aggrGrouped(ir.FnProd),
	"aggr.submin":       aggrGrouped(ir.FnMin),
	"aggr.submax":       aggrGrouped(ir.FnMax),
	"aggr.subavg":       aggrGrouped(ir.FnAvg),

	"language.pass":     func(*call, []Datum) ([]Datum, error) { return nil, nil },
	"language.dataflow": func(*call, []Datum) ([]Datum, error) { return []Datum{ir.Bit(true)}, nil },
	"mal.multiplex":     multiplex,
}

func lookupOp(module, function string) (opFunc, bool) {
	if fn, ok := ops[module+"."+function]; ok {
		return fn, true
	}
	if _, ok := scalarFuncs[function]; !ok {
		return nil, false
	}
	switch module {
	case ir.ModCalc:
		return scalarCall(function), true
	case ir.ModBatcalc:
		return columnCall(function), true
	}
	return nil, false
}

func asColumn(d Datum) (*Column, error) {
	c, ok := d.(*Column)
	if !ok {
		return nil, errors.Newf("expected a column, got %s", Format(d))
	}
	return c, nil
}

func asScalar(d Datum) (ir.Value, error) {
	v, ok := d.(ir.Value)
	if !ok {
		return nil, errors.Newf("expected a scalar, got %s", Format(d))
	}
	return v, nil
}

func asInt(d Datum) (int64, error) {
	v, err := asScalar(d)
	if err != nil {
		return 0, err
	}
	i, ok := v.(ir.Int)
	if !ok {
		return 0, errors.Newf("expected an integer, got %s", Format(d))
	}
	return int64(i), nil
}

// asBool reads a flag; nil counts as false.
func asBool(d Datum) (bool, error) {
	v, err := asScalar(d)
	if err != nil {
		return false, err
	}
	if ir.IsNil(v) {
		return false, nil
	}
	b, ok := truth(v)
	if !ok {
		return false, errors.Newf("expected a bit, got %s", Format(d))
	}
	return b, nil
}

func asString(d Datum) (string, error) {
	v, err := asScalar(d)
	if err != nil {
		return "", err
	}
	s, ok := v.(ir.Str)
	if !ok {
		return "", errors.Newf("expected a string, got %s", Format(d))
	}
	return string(s), nil
}

// positions returns the rows of b addressed by candidate list s, in
// candidate order. A nil s addresses every row. Candidates outside b are
// ignored.
func positions(b, s *Column) []int {
	if s == nil {
		pos := make([]int, b.Len())
		for i := range pos {
			pos[i] = i
		}
		return pos
	}
	pos := make([]int, 0, s.Len())
	for _, o := range s.Vals {
		if i, ok := b.Pos(o); ok {
			pos = append(pos, i)
		}
	}
	return pos
}

// oids returns a fresh oid column.
func oids(vals []ir.Value) *Column {
	if vals == nil {
		vals = []ir.Value{}
	}
	return &Column{Kind: ir.KindOid, Vals: vals}
}
