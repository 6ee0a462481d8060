package mergetable

import (
	"slices"

	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/partition"
)

// topN rewrites a level of algebra.firstn over grouped data. Each partition
// keeps its own first n rows (ties included), which is a superset of the
// rows the whole column contributes. The last level (one result) packs the
// partial candidates and re-applies every level of the chain over the
// attributes projected through them.
func (w *rewriter) topN(p *ir.Instruction) (bool, error) {
	b := w.plain(p.Param(0))
	n := w.parts(b)
	grouped := p.NumParams() == 7

	parent := -1
	var groups int
	if grouped {
		parent = w.topNLevel(p.Param(1))
		groups = w.topNLevel(p.Param(2))
	}

	outs := make([][]ir.VarID, p.Retc)
	for k := 0; k < n; k++ {
		replace := map[int]ir.VarID{0: w.mats.Part(b, k)}
		if grouped {
			replace[1] = w.mats.Part(parent, k)
			replace[2] = w.mats.Part(groups, k)
		}
		q, err := w.partial(p, replace)
		if err != nil {
			return false, err
		}
		w.mats.PropagatePartition(w.mats.Part(b, k), q.Ret(0), k)
		for i := range outs {
			outs[i] = append(outs[i], q.Ret(i))
		}
	}

	if p.Retc == 2 {
		level := w.add(p.Ret(0), outs[0], p, partition.TopN, b, parent)
		w.add(p.Ret(1), outs[1], p, partition.TopN, b, level)
		return true, nil
	}
	return true, w.finishTopN(p, b, parent, outs[0])
}

func (w *rewriter) finishTopN(p *ir.Instruction, b, parent int, cands []ir.VarID) error {
	type level struct {
		orig *ir.Instruction
		attr int
	}
	levels := []level{{p, b}}
	for id := parent; id >= 0; id = w.mats.Mat(id).Parent {
		levels = append(levels, level{w.mats.Mat(id).Orig, w.mats.Mat(id).Input})
	}
	slices.Reverse(levels)

	oids, err := w.packInto(w.b.Type(p.Ret(0)), cands)
	if err != nil {
		return err
	}

	var sel, grp ir.VarID
	for i, lv := range levels {
		at := w.b.Type(w.mats.Mat(lv.attr).Var)
		vals := make([]ir.VarID, len(cands))
		for k, c := range cands {
			v, err := w.call(at, ir.ModAlgebra, ir.FnProjection, c, w.mats.Part(lv.attr, k))
			if err != nil {
				return err
			}
			vals[k] = v
		}
		attr, err := w.packInto(at, vals)
		if err != nil {
			return err
		}

		q := ir.NewInstruction(ir.ModAlgebra, ir.FnFirstn)
		s, err := w.b.NewTmp(ir.TypeOids)
		if err != nil {
			return err
		}
		q.PushReturn(s)
		if i < len(levels)-1 {
			g, err := w.b.NewTmp(ir.TypeOids)
			if err != nil {
				return err
			}
			q.PushReturn(g)
		}
		q.PushArg(attr)
		rest := lv.orig.Params()[1:]
		if i > 0 {
			q.PushArg(sel).PushArg(grp)
			rest = lv.orig.Params()[3:]
		}
		for _, v := range rest {
			q.PushArg(v)
		}
		w.emit(q)
		sel = s
		if q.Retc == 2 {
			grp = q.Ret(1)
		}
	}

	w.emitCall(p.Ret(0), ir.ModAlgebra, ir.FnProjection, sel, oids)
	id := w.mats.Add(packOf(p.Ret(0), cands), p, p.Ret(0), partition.TopN, b, parent, true)
	w.selectors[id] = sel
	return nil
}

// topNProjection rewrites r := algebra.projection(o, x) with o a finished
// top-N and x grouped: x is projected through the partial candidates, and
// the top-N selection picks from the packed result.
func (w *rewriter) topNProjection(p *ir.Instruction) (bool, error) {
	o := w.finalTopN(p.Param(0))
	x := w.plain(p.Param(1))
	n := w.parts(o)

	pairs, ok := w.alignedPairs(o, x)
	if !ok {
		return false, nil
	}
	vals := make([]ir.VarID, n)
	for k, j := range pairs {
		q, err := w.partial(p, map[int]ir.VarID{
			0: w.mats.Part(o, k),
			1: w.mats.Part(x, j),
		})
		if err != nil {
			return false, err
		}
		vals[k] = q.Ret(0)
	}
	packed, err := w.packInto(w.b.Type(p.Ret(0)), vals)
	if err != nil {
		return false, err
	}
	w.emitCall(p.Ret(0), ir.ModAlgebra, ir.FnProjection, w.selectors[o], packed)
	return true, nil
}

// slice rewrites r := algebra.slice(b, lo, hi) over a grouped b: every
// partition keeps rows 0..hi, and the slice is re-applied to their pack.
func (w *rewriter) slice(p *ir.Instruction) (bool, error) {
	b := w.plain(p.Param(0))
	zero, err := w.constant(w.b.Type(p.Param(1)), ir.Int(0))
	if err != nil {
		return false, err
	}
	parts := make([]ir.VarID, w.parts(b))
	for k := range parts {
		q, err := w.partial(p, map[int]ir.VarID{0: w.mats.Part(b, k), 1: zero})
		if err != nil {
			return false, err
		}
		parts[k] = q.Ret(0)
	}
	packed, err := w.packInto(w.b.Type(p.Ret(0)), parts)
	if err != nil {
		return false, err
	}
	q := p.Clone()
	q.SetArg(q.Retc, packed)
	w.emit(q)
	return true, nil
}

// alignedPairs pairs every member k of cand with the first member j of col
// whose rows it can address.
func (w *rewriter) alignedPairs(cand, col int) ([]int, bool) {
	n, m := w.parts(cand), w.parts(col)
	pairs := make([]int, n)
	for k := 0; k < n; k++ {
		pairs[k] = -1
		ck := w.mats.Part(cand, k)
		for j := 0; j < m; j++ {
			if w.mats.Overlap(ck, w.mats.Part(col, j), k, j, false) {
				pairs[k] = j
				break
			}
		}
		if pairs[k] < 0 {
			return nil, false
		}
	}
	return pairs, true
}
