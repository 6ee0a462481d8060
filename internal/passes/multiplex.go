package passes

import (
	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/optimizer"
)

// Multiplex expands mal.multiplex("calc", "f", args...) into the bulk
// operator batcalc.f(args...).
var Multiplex = pass(optimizer.PassMultiplex, multiplex)

func multiplex(ctx *optimizer.Context, b *ir.Block) (int, error) {
	actions := 0
	for i, p := range b.Instrs {
		if !p.Is(ir.ModMal, ir.FnMultiplex) || p.Retc != 1 || p.NumParams() < 3 {
			continue
		}
		mod, ok1 := constStr(b, p.Param(0))
		fn, ok2 := constStr(b, p.Param(1))
		if !ok1 || !ok2 || mod != ir.ModCalc || fn == "" {
			continue
		}
		q := ir.NewInstruction(ir.ModBatcalc, fn).PushReturn(p.Ret(0))
		for _, a := range p.Params()[2:] {
			q.PushArg(a)
		}
		b.Instrs[i] = q
		actions++
	}
	if actions > 0 {
		ctx.Log().Debug("multiplex", "block", b.Name, "expanded", actions)
	}
	return actions, nil
}
