package passes

import (
	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/optimizer"
)

// Costmodel annotates result variables with row estimates. Binds take the
// catalog row count (their share of it when partitioned), selections
// halve their input and scalar aggregates yield one row. The estimates are
// advisory, so the pass reports no actions.
var Costmodel = pass(optimizer.PassCostmodel, costmodel)

const unknownRows = -1

func costmodel(ctx *optimizer.Context, b *ir.Block) (int, error) {
	rows := func(v ir.VarID) int64 { return b.Var(v).Rows }
	for _, p := range b.Instrs {
		if p.Retc == 0 {
			continue
		}
		est := int64(unknownRows)
		switch {
		case p.Is(ir.ModSQL, ir.FnBind) || p.Is(ir.ModSQL, ir.FnTid):
			est = bindRows(ctx, b, p)
		case p.IsAssignment():
			est = rows(p.Param(0))
		case p.Is(ir.ModMat, ir.FnPack):
			est = 0
			for _, a := range p.Params() {
				if !b.Type(a).IsColumn() {
					est++
					continue
				}
				if rows(a) < 0 {
					est = unknownRows
					break
				}
				est += rows(a)
			}
		case p.Module == ir.ModAlgebra && p.NumParams() > 0:
			est = algebraRows(p, rows)
		case p.Module == ir.ModAggr && !b.Type(p.Ret(0)).IsColumn():
			est = 1
		case p.Module == ir.ModBatcalc && p.NumParams() > 0:
			est = rows(p.Param(0))
		}
		for _, r := range p.Results() {
			if b.Type(r).IsColumn() {
				b.Var(r).Rows = est
			} else {
				b.Var(r).Rows = 1
			}
		}
	}
	ctx.Log().Debug("costmodel", "block", b.Name)
	return 0, nil
}

func algebraRows(p *ir.Instruction, rows func(ir.VarID) int64) int64 {
	in := rows(p.Param(0))
	switch p.Function {
	case ir.FnSelect, ir.FnThetaselect, ir.FnSelectNotNil:
		if in < 0 {
			return unknownRows
		}
		return (in + 1) / 2
	case ir.FnProjection, ir.FnProject:
		return in
	case ir.FnJoin, ir.FnLeftjoin, ir.FnThetajoin:
		if p.NumParams() > 1 {
			return max(in, rows(p.Param(1)))
		}
	}
	return unknownRows
}

// bindRows estimates a bind from the catalog: the whole table, or the
// rows of partition k of n.
func bindRows(ctx *optimizer.Context, b *ir.Block, p *ir.Instruction) int64 {
	if ctx.Catalog == nil {
		return unknownRows
	}
	schema, table, ok := bindTable(b, p)
	if !ok {
		return unknownRows
	}
	n, ok := ctx.Catalog.Rows(schema, table)
	if !ok {
		return unknownRows
	}
	total := int64(n)
	fixed := 3
	if p.Function == ir.FnTid {
		fixed = 2
	}
	if p.NumParams() < fixed+2 {
		return total
	}
	k, ok1 := b.ConstValue(p.Param(fixed)).(ir.Int)
	parts, ok2 := b.ConstValue(p.Param(fixed + 1)).(ir.Int)
	if !ok1 || !ok2 || parts <= 0 {
		return total
	}
	return total*int64(k+1)/int64(parts) - total*int64(k)/int64(parts)
}
