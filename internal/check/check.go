// Package check validates rewritten blocks.
//
// Oracle implements optimizer.Validator with three independent checks:
// types, control flow and declarations. Each reports the first problem it
// finds with the offending instruction.
package check

import (
	"github.com/cockroachdb/errors"

	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/optimizer"
)

// Oracle is the validation oracle run after every pass that rewrote a
// block.
type Oracle struct{}

var _ optimizer.Validator = Oracle{}

// aggregates returning one value for a whole column.
var scalarAggregates = map[string]bool{
	ir.FnSum: true, ir.FnProd: true, ir.FnMin: true, ir.FnMax: true,
	ir.FnAvg: true, ir.FnCount: true, ir.FnCountNoNil: true,
}

func instrErrorf(b *ir.Block, pc int, format string, args ...any) error {
	return errors.Wrapf(errors.Newf(format, args...), "instruction %d (%s)", pc, b.Format(b.Instrs[pc]))
}

// TypeCheck verifies that argument handles are in range, that plain
// assignments copy between equal types, that packs combine values of
// their result's element kind, and that scalar aggregates are not bound
// to columns.
func (Oracle) TypeCheck(b *ir.Block) error {
	for pc, p := range b.Instrs {
		for _, a := range p.Args {
			if a < 0 || int(a) >= b.NumVars() {
				return errors.Newf("instruction %d (%s): argument %d out of range", pc, p.Name(), a)
			}
		}
		switch {
		case p.IsAssignment():
			dst, src := b.Type(p.Ret(0)), b.Type(p.Param(0))
			if dst != src && !loose(dst) && !loose(src) {
				return instrErrorf(b, pc, "assigns %s to %s", src, dst)
			}
		case p.Is(ir.ModMat, ir.FnPack):
			if p.Retc != 1 {
				return instrErrorf(b, pc, "pack with %d results", p.Retc)
			}
			rt := b.Type(p.Ret(0))
			if !rt.IsColumn() {
				return instrErrorf(b, pc, "pack into scalar %s", rt)
			}
			for _, a := range p.Params() {
				at := b.Type(a)
				if at.Kind != rt.Kind && !loose(at) && !loose(rt) {
					return instrErrorf(b, pc, "packs %s into %s", at, rt)
				}
			}
		case p.Module == ir.ModAggr && scalarAggregates[p.Function] && p.Retc == 1 && p.NumParams() <= 2:
			if b.Type(p.Ret(0)).IsColumn() {
				return instrErrorf(b, pc, "binds aggregate to column %s", b.VarName(p.Ret(0)))
			}
		}
	}
	return nil
}

// loose reports whether t matches any kind.
func loose(t ir.Type) bool {
	return t.Kind == ir.KindAny || t.Kind == ir.KindVoid
}

// FlowCheck verifies that barrier and catch blocks are closed by an exit
// on the same variable, properly nested, and that a block has at most one
// end statement, in last position.
func (Oracle) FlowCheck(b *ir.Block) error {
	var open []ir.VarID
	for pc, p := range b.Instrs {
		switch p.Token {
		case ir.TokBarrier, ir.TokCatch:
			if p.Retc == 0 {
				return instrErrorf(b, pc, "%s without a control variable", p.Token)
			}
			open = append(open, p.Ret(0))
		case ir.TokExit:
			if p.Retc == 0 {
				return instrErrorf(b, pc, "exit without a control variable")
			}
			if len(open) == 0 {
				return instrErrorf(b, pc, "exit %s closes no block", b.VarName(p.Ret(0)))
			}
			if top := open[len(open)-1]; top != p.Ret(0) {
				return instrErrorf(b, pc, "exit %s while %s is open", b.VarName(p.Ret(0)), b.VarName(top))
			}
			open = open[:len(open)-1]
		case ir.TokEnd:
			if pc != len(b.Instrs)-1 {
				return instrErrorf(b, pc, "end before the last instruction")
			}
		}
	}
	if len(open) > 0 {
		return errors.Newf("block %s: %s is never closed", b.Name, b.VarName(open[len(open)-1]))
	}
	return nil
}

// DeclCheck verifies that every parameter is a constant, a block input,
// or the result of an earlier instruction.
func (Oracle) DeclCheck(b *ir.Block) error {
	defined := make([]bool, b.NumVars())
	for _, v := range b.Params {
		defined[v] = true
	}
	for pc, p := range b.Instrs {
		for _, a := range p.Params() {
			if a < 0 || int(a) >= len(defined) {
				return errors.Newf("instruction %d (%s): argument %d out of range", pc, p.Name(), a)
			}
			if !defined[a] && !b.IsConst(a) {
				return instrErrorf(b, pc, "%s used before definition", b.VarName(a))
			}
		}
		for _, r := range p.Results() {
			if r >= 0 && int(r) < len(defined) {
				defined[r] = true
			}
		}
	}
	return nil
}
