package passes

import (
	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/optimizer"
)

// Generator turns selections over generator.series into generator.select,
// which computes the qualifying positions without materializing the
// series.
var Generator = pass(optimizer.PassGenerator, generator)

func generator(ctx *optimizer.Context, b *ir.Block) (int, error) {
	series := make(map[ir.VarID]bool)
	actions := 0
	for _, p := range b.Instrs {
		if p.Is(ir.ModGenerator, ir.FnSeries) && p.Retc == 1 {
			series[p.Ret(0)] = true
			continue
		}
		if p.Module != ir.ModAlgebra || p.NumParams() == 0 || !series[p.Param(0)] {
			continue
		}
		if p.Function == ir.FnSelect || p.Function == ir.FnThetaselect {
			p.Module = ir.ModGenerator
			actions++
		}
	}
	if actions > 0 {
		ctx.Log().Debug("generator", "block", b.Name, "rewritten", actions)
	}
	return actions, nil
}
