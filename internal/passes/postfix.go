package passes

import (
	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/optimizer"
)

// Postfix drops noop statements and self-assignments.
var Postfix = pass(optimizer.PassPostfix, postfix)

func postfix(ctx *optimizer.Context, b *ir.Block) (int, error) {
	out := make([]*ir.Instruction, 0, len(b.Instrs))
	for _, p := range b.Instrs {
		if p.Token == ir.TokNoop || p.IsAssignment() && p.Ret(0) == p.Param(0) {
			continue
		}
		out = append(out, p)
	}
	removed := len(b.Instrs) - len(out)
	if removed == 0 {
		return 0, nil
	}
	b.Swap(out)
	ctx.Log().Debug("postfix", "block", b.Name, "removed", removed)
	return removed, nil
}
