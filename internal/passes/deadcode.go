package passes

import (
	"slices"

	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/optimizer"
)

// Deadcode removes side-effect-free instructions none of whose results
// are used later. Liveness is computed in one backward scan, so a chain of
// dead instructions disappears in a single run.
var Deadcode = pass(optimizer.PassDeadcode, deadcode)

func deadcode(ctx *optimizer.Context, b *ir.Block) (int, error) {
	live := make(map[ir.VarID]bool)
	keep := make([]bool, len(b.Instrs))
	removed := 0
	for i := len(b.Instrs) - 1; i >= 0; i-- {
		p := b.Instrs[i]
		if sideEffectFree(p) && !slices.ContainsFunc(p.Results(), func(v ir.VarID) bool { return live[v] }) {
			removed++
			continue
		}
		keep[i] = true
		for _, a := range p.Params() {
			live[a] = true
		}
		if p.Token != ir.TokAssign {
			// exit, catch and return name their variables as results.
			for _, r := range p.Results() {
				live[r] = true
			}
		}
	}
	if removed == 0 {
		return 0, nil
	}
	out := make([]*ir.Instruction, 0, len(b.Instrs)-removed)
	for i, p := range b.Instrs {
		if keep[i] {
			out = append(out, p)
		}
	}
	b.Swap(out)
	ctx.Log().Debug("deadcode", "block", b.Name, "removed", removed)
	return removed, nil
}
