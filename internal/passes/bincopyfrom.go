package passes

import (
	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/optimizer"
)

// Bincopyfrom expands a bulk import of k columns,
//
//	(C_0, ..., C_k-1) := sql.importTable(args...)
//
// into one sql.importColumn(args..., i) per column.
var Bincopyfrom = pass(optimizer.PassBincopyfrom, bincopyfrom)

func bincopyfrom(ctx *optimizer.Context, b *ir.Block) (int, error) {
	mark := b.NumVars()
	out := make([]*ir.Instruction, 0, len(b.Instrs))
	actions := 0
	for _, p := range b.Instrs {
		if !p.Is(ir.ModSQL, ir.FnImportTable) || p.Retc == 0 {
			out = append(out, p)
			continue
		}
		for i, r := range p.Results() {
			idx, err := b.NewConst(ir.TypeInt, ir.Int(int64(i)))
			if err != nil {
				b.Truncate(mark)
				return 0, err
			}
			q := ir.NewInstruction(ir.ModSQL, ir.FnImportColumn).PushReturn(r)
			for _, a := range p.Params() {
				q.PushArg(a)
			}
			out = append(out, q.PushArg(idx))
		}
		actions++
	}
	if actions == 0 {
		return 0, nil
	}
	b.Swap(out)
	ctx.Log().Debug("bincopyfrom", "block", b.Name, "imports", actions)
	return actions, nil
}
