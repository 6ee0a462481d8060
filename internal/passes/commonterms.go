package passes

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dchest/siphash"

	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/optimizer"
)

// Commonterms replaces a side-effect-free instruction that repeats an
// earlier one (same module, function and arguments) with an assignment
// from the earlier result. Instructions whose arguments are assigned more
// than once are not shared.
var Commonterms = pass(optimizer.PassCommonterms, commonterms)

// siphash keys; signatures are only compared within one block.
const (
	termKey0 = 0x716f70742d636f6d
	termKey1 = 0x6d6f6e7465726d73
)

func commonterms(ctx *optimizer.Context, b *ir.Block) (int, error) {
	assigned := make(map[ir.VarID]int)
	for _, p := range b.Instrs {
		for _, r := range p.Results() {
			assigned[r]++
		}
	}

	seen := make(map[uint64][]*ir.Instruction)
	out := make([]*ir.Instruction, 0, len(b.Instrs))
	actions := 0
	for _, p := range b.Instrs {
		if !shareable(b, p, assigned) {
			out = append(out, p)
			continue
		}
		sig := signature(b, p)
		h := siphash.Hash(termKey0, termKey1, []byte(sig))
		if prev := findTerm(b, seen[h], p); prev != nil {
			out = append(out, ir.NewAssignment(p.Ret(0), prev.Ret(0)))
			actions++
			continue
		}
		seen[h] = append(seen[h], p)
		out = append(out, p)
	}
	if actions == 0 {
		return 0, nil
	}
	b.Swap(out)
	ctx.Log().Debug("commonterms", "block", b.Name, "shared", actions)
	return actions, nil
}

func shareable(b *ir.Block, p *ir.Instruction, assigned map[ir.VarID]int) bool {
	if !sideEffectFree(p) || p.IsAssignment() || p.Retc != 1 {
		return false
	}
	if assigned[p.Ret(0)] > 1 {
		return false
	}
	for _, a := range p.Params() {
		if assigned[a] > 1 {
			return false
		}
	}
	return true
}

// signature renders the operation and arguments of p. Constants are
// rendered by value so equal literals match.
func signature(b *ir.Block, p *ir.Instruction) string {
	var sb strings.Builder
	sb.WriteString(p.Name())
	for _, a := range p.Params() {
		sb.WriteByte(',')
		if b.IsConst(a) {
			fmt.Fprintf(&sb, "%s%s", ir.FormatValue(b.ConstValue(a)), b.Type(a))
			continue
		}
		fmt.Fprintf(&sb, "#%d", a)
	}
	return sb.String()
}

func findTerm(b *ir.Block, candidates []*ir.Instruction, p *ir.Instruction) *ir.Instruction {
	for _, q := range candidates {
		if q.Module != p.Module || q.Function != p.Function || q.NumParams() != p.NumParams() {
			continue
		}
		if b.Type(q.Ret(0)) != b.Type(p.Ret(0)) {
			continue
		}
		if slices.EqualFunc(q.Params(), p.Params(), func(x, y ir.VarID) bool {
			return x == y || b.IsConst(x) && b.IsConst(y) &&
				b.Type(x) == b.Type(y) && ir.EqualValues(b.ConstValue(x), b.ConstValue(y))
		}) {
			return q
		}
	}
	return nil
}
