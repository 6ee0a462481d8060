package passes

import (
	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/optimizer"
)

// Coercion removes casts to the type a value already has:
// X := calc.int(Y) with Y an int becomes X := Y, and likewise for
// batcalc casts of columns.
var Coercion = pass(optimizer.PassCoercion, coercion)

func coercion(ctx *optimizer.Context, b *ir.Block) (int, error) {
	actions := 0
	for i, p := range b.Instrs {
		if !isNoopCast(b, p) {
			continue
		}
		b.Instrs[i] = ir.NewAssignment(p.Ret(0), p.Param(0))
		actions++
	}
	if actions > 0 {
		ctx.Log().Debug("coercion", "block", b.Name, "removed", actions)
	}
	return actions, nil
}

func isNoopCast(b *ir.Block, p *ir.Instruction) bool {
	if p.Token != ir.TokAssign || p.Retc != 1 || p.NumParams() != 1 {
		return false
	}
	if p.Module != ir.ModCalc && p.Module != ir.ModBatcalc {
		return false
	}
	kind, ok := ir.ParseKind(p.Function)
	if !ok || kind == ir.KindAny || kind == ir.KindVoid {
		return false
	}
	src, dst := b.Type(p.Param(0)), b.Type(p.Ret(0))
	return src == dst && src.Kind == kind && src.IsColumn() == (p.Module == ir.ModBatcalc)
}
