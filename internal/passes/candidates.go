package passes

import (
	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/optimizer"
)

// Candidates marks the results of selections and set operators as
// candidate lists: sorted row ids of a table rather than values.
var Candidates = pass(optimizer.PassCandidates, candidates)

func candidates(ctx *optimizer.Context, b *ir.Block) (int, error) {
	actions := 0
	for _, p := range b.Instrs {
		if !producesCandidates(p) || p.Retc == 0 {
			continue
		}
		v := b.Var(p.Ret(0))
		if v.Candidate || !v.Type.IsColumn() || v.Type.Kind != ir.KindOid {
			continue
		}
		v.Candidate = true
		actions++
	}
	if actions > 0 {
		ctx.Log().Debug("candidates", "block", b.Name, "marked", actions)
	}
	return actions, nil
}

func producesCandidates(p *ir.Instruction) bool {
	switch {
	case p.Is(ir.ModSQL, ir.FnTid):
		return true
	case p.Module != ir.ModAlgebra:
		return false
	}
	switch p.Function {
	case ir.FnSelect, ir.FnThetaselect, ir.FnSelectNotNil, ir.FnDifference, ir.FnIntersect:
		return true
	}
	return false
}
