package mergetable

import (
	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/partition"
)

// phase2 maps a scalar aggregate to the aggregate combining its partials.
var phase2 = map[string]string{
	ir.FnCount:      ir.FnSum,
	ir.FnCountNoNil: ir.FnSum,
	ir.FnSum:        ir.FnSum,
	ir.FnMin:        ir.FnMin,
	ir.FnMax:        ir.FnMax,
	ir.FnProd:       ir.FnProd,
	ir.FnAvg:        ir.FnSum,
}

// groupPhase2 maps a grouped aggregate to the grouped aggregate combining
// its per-partition results.
var groupPhase2 = map[string]string{
	ir.FnSubcount: ir.FnSubsum,
	ir.FnSubsum:   ir.FnSubsum,
	ir.FnSubmin:   ir.FnSubmin,
	ir.FnSubmax:   ir.FnSubmax,
	ir.FnSubprod:  ir.FnSubprod,
	ir.FnSubavg:   ir.FnSubsum,
}

// aggr rewrites x := aggr.f(b, ...) over a grouped b into one partial
// aggregate per partition, a pack of the partials with nils removed, and
// the phase-2 aggregate.
func (w *rewriter) aggr(p *ir.Instruction) (bool, error) {
	fn, ok := phase2[p.Function]
	if !ok {
		return false, w.malformed(p, "no phase-2 aggregate for %s", p.Function)
	}
	if p.Function == ir.FnAvg {
		if p.NumParams() != 1 || w.b.Type(p.Ret(0)) != ir.TypeDbl {
			return false, nil
		}
		return true, w.avg(p)
	}

	b := w.plain(p.Param(0))
	rt := w.b.Type(p.Ret(0))
	partials := make([]ir.VarID, w.parts(b))
	for k := range partials {
		q, err := w.partial(p, map[int]ir.VarID{0: w.mats.Part(b, k)})
		if err != nil {
			return false, err
		}
		partials[k] = q.Ret(0)
	}
	packed, err := w.packInto(ir.ColumnOf(rt.Kind), partials)
	if err != nil {
		return false, err
	}
	nonNil, err := w.call(ir.ColumnOf(rt.Kind), ir.ModAlgebra, ir.FnSelectNotNil, packed)
	if err != nil {
		return false, err
	}
	w.emitCall(p.Ret(0), ir.ModAggr, fn, nonNil)
	return true, nil
}

// avg combines per-partition averages weighted by their counts:
//
//	sum(avg_k * count_k / sum(count))
//
// Partitions without values have a nil average and drop out at the nil
// filter; with no values at all the weight is nil and so is the result.
func (w *rewriter) avg(p *ir.Instruction) error {
	b := w.plain(p.Param(0))
	n := w.parts(b)
	avgs := make([]ir.VarID, n)
	counts := make([]ir.VarID, n)
	for k := 0; k < n; k++ {
		a, err := w.b.NewTmp(ir.TypeDbl)
		if err != nil {
			return err
		}
		c, err := w.b.NewTmp(ir.TypeLng)
		if err != nil {
			return err
		}
		w.emit(ir.NewInstruction(ir.ModBatcalc, ir.FnAvg).
			PushReturn(a).PushReturn(c).
			PushArg(w.mats.Part(b, k)))
		avgs[k], counts[k] = a, c
	}

	avgPack, err := w.packInto(ir.TypeDbls, avgs)
	if err != nil {
		return err
	}
	cntPack, err := w.packInto(ir.TypeLngs, counts)
	if err != nil {
		return err
	}
	zero, err := w.constant(ir.TypeLng, ir.Int(0))
	if err != nil {
		return err
	}
	null, err := w.constant(ir.TypeLng, ir.Nil{})
	if err != nil {
		return err
	}

	total, err := w.call(ir.TypeLng, ir.ModAggr, ir.FnSum, cntPack)
	if err != nil {
		return err
	}
	empty, err := w.call(ir.TypeBit, ir.ModCalc, "==", total, zero)
	if err != nil {
		return err
	}
	weight, err := w.call(ir.TypeLng, ir.ModCalc, ir.FnIfthenelse, empty, null, total)
	if err != nil {
		return err
	}
	dc, err := w.call(ir.TypeDbls, ir.ModBatcalc, ir.FnDbl, cntPack)
	if err != nil {
		return err
	}
	share, err := w.call(ir.TypeDbls, ir.ModBatcalc, "/", dc, weight)
	if err != nil {
		return err
	}
	weighted, err := w.call(ir.TypeDbls, ir.ModBatcalc, "*", avgPack, share)
	if err != nil {
		return err
	}
	nonNil, err := w.call(ir.TypeDbls, ir.ModAlgebra, ir.FnSelectNotNil, weighted)
	if err != nil {
		return err
	}
	w.emitCall(p.Ret(0), ir.ModAggr, ir.FnSum, nonNil)
	return nil
}

// groupAggr rewrites r := aggr.subf(x, g, e, ...) over grouped x, g and e
// into per-partition grouped aggregates whose packed results are combined
// by a second grouped aggregate over the packed groups.
func (w *rewriter) groupAggr(p *ir.Instruction) (bool, error) {
	fn, ok := groupPhase2[p.Function]
	if !ok {
		return false, w.malformed(p, "no phase-2 aggregate for %s", p.Function)
	}
	if p.Function == ir.FnSubavg && w.b.Type(p.Ret(0)) != ir.TypeDbls {
		return false, nil
	}

	x := w.plain(p.Param(0))
	gid := w.lookup(p.Param(1), partition.Group)
	eid := w.lookup(p.Param(2), partition.Extend)
	n := w.parts(x)

	skip, err := w.constant(ir.TypeBit, ir.Bit(true))
	if err != nil {
		return false, err
	}
	partials := make([]ir.VarID, n)
	var counts []ir.VarID
	for k := 0; k < n; k++ {
		xk, gk, ek := w.mats.Part(x, k), w.mats.Part(gid, k), w.mats.Part(eid, k)
		q, err := w.partial(p, map[int]ir.VarID{0: xk, 1: gk, 2: ek})
		if err != nil {
			return false, err
		}
		partials[k] = q.Ret(0)
		if p.Function == ir.FnSubavg {
			c, err := w.call(ir.TypeLngs, ir.ModAggr, ir.FnSubcount, xk, gk, ek, skip)
			if err != nil {
				return false, err
			}
			counts = append(counts, c)
		}
	}

	rt := w.b.Type(p.Ret(0))
	packed, err := w.packInto(rt, partials)
	if err != nil {
		return false, err
	}
	if err := w.packChain(gid); err != nil {
		return false, err
	}
	g, e := w.mats.Mat(gid).Var, w.mats.Mat(eid).Var
	if p.Function == ir.FnSubavg {
		packed, err = w.weighAverages(packed, counts, g, e, skip)
		if err != nil {
			return false, err
		}
	}
	w.emitCall(p.Ret(0), ir.ModAggr, fn, packed, g, e, skip)
	return true, nil
}

// weighAverages scales per-partition group averages by the share of the
// group's values each partition holds. The caller sums the result per
// group.
func (w *rewriter) weighAverages(avgs ir.VarID, counts []ir.VarID, g, e, skip ir.VarID) (ir.VarID, error) {
	cnt, err := w.packInto(ir.TypeLngs, counts)
	if err != nil {
		return ir.NoVar, err
	}
	zero, err := w.constant(ir.TypeLng, ir.Int(0))
	if err != nil {
		return ir.NoVar, err
	}
	null, err := w.constant(ir.TypeLng, ir.Nil{})
	if err != nil {
		return ir.NoVar, err
	}

	totals, err := w.call(ir.TypeLngs, ir.ModAggr, ir.FnSubsum, cnt, g, e, skip)
	if err != nil {
		return ir.NoVar, err
	}
	empty, err := w.call(ir.TypeBits, ir.ModBatcalc, "==", totals, zero)
	if err != nil {
		return ir.NoVar, err
	}
	weights, err := w.call(ir.TypeLngs, ir.ModBatcalc, ir.FnIfthenelse, empty, null, totals)
	if err != nil {
		return ir.NoVar, err
	}
	spread, err := w.call(ir.TypeLngs, ir.ModAlgebra, ir.FnProjection, g, weights)
	if err != nil {
		return ir.NoVar, err
	}
	dn, err := w.call(ir.TypeDbls, ir.ModBatcalc, ir.FnDbl, cnt)
	if err != nil {
		return ir.NoVar, err
	}
	share, err := w.call(ir.TypeDbls, ir.ModBatcalc, "/", dn, spread)
	if err != nil {
		return ir.NoVar, err
	}
	return w.call(ir.TypeDbls, ir.ModBatcalc, "*", avgs, share)
}
