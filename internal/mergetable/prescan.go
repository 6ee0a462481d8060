package mergetable

import (
	"github.com/roach88/qopt/internal/ir"
)

// thetaNotEqual is the numeric code of the "!=" comparison in thetajoins.
const thetaNotEqual = 6

// prescan returns why the block must not be rewritten, or "" when it may.
func prescan(b *ir.Block) string {
	if !b.Applied("mitosis") {
		return "mitosis has not run"
	}
	grouped := make(map[ir.VarID]bool)
	for _, p := range b.Instrs {
		switch {
		case p.Is(ir.ModAlgebra, ir.FnSelectNotNil),
			p.Is(ir.ModAlgebra, ir.FnSemijoin),
			p.Is(ir.ModSample, ir.FnSubuniform):
			return "plan uses " + p.Name()
		case p.Is(ir.ModAlgebra, ir.FnThetajoin) && p.NumParams() > 4 && notEqual(b, p.Param(4)):
			return "inequality thetajoin"
		case isGroupBy(p) && p.NumParams() > 0:
			in := p.Param(0)
			if grouped[in] {
				return "group input " + b.VarName(in) + " is grouped twice"
			}
			grouped[in] = true
		}
	}
	return ""
}

func notEqual(b *ir.Block, v ir.VarID) bool {
	switch c := b.ConstValue(v).(type) {
	case ir.Str:
		return c == "!=" || c == "<>"
	case ir.Int:
		return c == thetaNotEqual
	}
	return false
}

func isGroupBy(p *ir.Instruction) bool {
	if p.Module != ir.ModGroup {
		return false
	}
	switch p.Function {
	case ir.FnGroup, ir.FnGroupdone, ir.FnSubgroup, ir.FnSubgroupdone:
		return true
	}
	return false
}

// groupsDone reports whether some group-by continues from a finished
// grouping, or groups feed a grouped top-N. Group-bys are then left
// unsplit.
func groupsDone(b *ir.Block) bool {
	defs := b.Definitions()
	for _, p := range b.Instrs {
		if p.Is(ir.ModAlgebra, ir.FnGroupedFirst) {
			return true
		}
		if !isGroupBy(p) || p.Argc() != 5 {
			continue
		}
		last := p.Param(p.NumParams() - 1)
		if i, ok := defs[last]; ok {
			d := b.Instrs[i]
			if d.Is(ir.ModGroup, ir.FnGroupdone) || d.Is(ir.ModGroup, ir.FnSubgroupdone) {
				return true
			}
		}
	}
	return false
}
