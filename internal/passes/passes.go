// Package passes holds the peer optimizer passes and the builtin registry.
//
// Each pass is one linear scan over a block with a local rewrite. Passes
// report the number of rewrites they made; a pass with nothing to do
// returns 0 and leaves the block untouched.
package passes

import (
	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/mergetable"
	"github.com/roach88/qopt/internal/optimizer"
)

// NewRegistry returns a registry holding every builtin pass in pipeline
// order.
func NewRegistry() *optimizer.Registry {
	r := optimizer.NewRegistry()
	r.MustRegister(optimizer.PassInline, Inline)
	r.MustRegister(optimizer.PassBincopyfrom, Bincopyfrom)
	r.MustRegister(optimizer.PassCoercion, Coercion)
	r.MustRegister(optimizer.PassCandidates, Candidates)
	r.MustRegister(optimizer.PassCommonterms, Commonterms)
	r.MustRegister(optimizer.PassPushselect, Pushselect)
	r.MustRegister(optimizer.PassCostmodel, Costmodel)
	r.MustRegister(optimizer.PassMitosis, Mitosis)
	r.MustRegister(optimizer.PassMergetable, mergetable.New())
	r.MustRegister(optimizer.PassDeadcode, Deadcode)
	r.MustRegister(optimizer.PassGenerator, Generator)
	r.MustRegister(optimizer.PassMultiplex, Multiplex)
	r.MustRegister(optimizer.PassPostfix, Postfix)
	return r
}

func pass(id optimizer.PassID, fn func(ctx *optimizer.Context, b *ir.Block) (int, error)) optimizer.PassFunc {
	return optimizer.PassFunc{
		PassName: id.String(),
		Fn: func(ctx *optimizer.Context, b *ir.Block, _ *ir.Instruction) (int, error) {
			return fn(ctx, b)
		},
	}
}

// sideEffectFree reports whether p may be removed or shared when its
// results are unused or recomputed.
func sideEffectFree(p *ir.Instruction) bool {
	if p.Token != ir.TokAssign {
		return false
	}
	if p.IsAssignment() {
		return true
	}
	switch p.Module {
	case ir.ModAlgebra, ir.ModAggr, ir.ModBatcalc, ir.ModCalc, ir.ModGroup, ir.ModMat:
		return p.Retc > 0
	case ir.ModBat:
		return p.Retc > 0 && p.Function != "append" && p.Function != "replace"
	case ir.ModSQL:
		return p.Function == ir.FnBind || p.Function == ir.FnTid
	}
	return false
}

// constStr returns the string constant held by v.
func constStr(b *ir.Block, v ir.VarID) (string, bool) {
	s, ok := b.ConstValue(v).(ir.Str)
	return string(s), ok
}

// isColumnBind reports whether p binds a whole table column or the row
// ids of a whole table.
func isColumnBind(p *ir.Instruction) bool {
	switch {
	case p.Is(ir.ModSQL, ir.FnBind):
		return p.Retc == 1 && p.NumParams() == 3
	case p.Is(ir.ModSQL, ir.FnTid):
		return p.Retc == 1 && p.NumParams() == 2
	}
	return false
}

// bindTable returns the schema and table named by a bind or tid.
func bindTable(b *ir.Block, p *ir.Instruction) (schema, table string, ok bool) {
	if p.NumParams() < 2 {
		return "", "", false
	}
	schema, ok1 := constStr(b, p.Param(0))
	table, ok2 := constStr(b, p.Param(1))
	return schema, table, ok1 && ok2
}
