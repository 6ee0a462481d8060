package mergetable

import (
	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/partition"
)

// provenance selects how per-partition results inherit partition numbers.
type provenance uint8

const (
	// fresh results are new values: row partition k, value partition unknown
	fresh provenance = iota
	// propagate results are row ids of their first grouped operand
	propagate
	// mirror results have head and tail equal to the operand's rows
	mirror
)

// apply runs p once per partition, every grouped operand replaced by its
// member. All grouped operands have the same number of members.
func (w *rewriter) apply(p *ir.Instruction, prov provenance) (bool, error) {
	var grouped []int
	for i, v := range p.Params() {
		if id := w.plain(v); id >= 0 {
			grouped = append(grouped, i)
		}
	}
	if len(grouped) == 0 {
		return false, w.malformed(p, "no grouped operand")
	}
	first := w.plain(p.Param(grouped[0]))
	n := w.parts(first)

	outs := make([][]ir.VarID, p.Retc)
	for k := 0; k < n; k++ {
		replace := make(map[int]ir.VarID, len(grouped))
		for _, i := range grouped {
			replace[i] = w.mats.Part(w.plain(p.Param(i)), k)
		}
		q, err := w.partial(p, replace)
		if err != nil {
			return false, err
		}
		origin := w.mats.Part(first, k)
		for i, r := range q.Results() {
			switch prov {
			case propagate:
				w.mats.PropagatePartition(origin, r, k)
			case mirror:
				w.mats.MirrorPartition(origin, r)
			default:
				w.mats.SetPartition(ir.NoVar, r, k)
			}
			outs[i] = append(outs[i], r)
		}
	}
	for i, r := range p.Results() {
		w.add(r, outs[i], p, partition.None, -1, -1)
	}
	return true, nil
}

// identity rewrites r := batcalc.identity(b): row numbers continue across
// partitions through the (numbers, next) form of identity.
func (w *rewriter) identity(p *ir.Instruction) (bool, error) {
	b := w.plain(p.Param(0))
	start, err := w.constant(ir.TypeOid, ir.Int(0))
	if err != nil {
		return false, err
	}
	ids := make([]ir.VarID, w.parts(b))
	for k := range ids {
		r, err := w.b.NewTmp(w.b.Type(p.Ret(0)))
		if err != nil {
			return false, err
		}
		next, err := w.b.NewTmp(ir.TypeOid)
		if err != nil {
			return false, err
		}
		bk := w.mats.Part(b, k)
		w.emit(ir.NewInstruction(ir.ModBatcalc, ir.FnIdentity).
			PushReturn(r).PushReturn(next).
			PushArg(bk).PushArg(start))
		w.mats.MirrorPartition(bk, r)
		ids[k], start = r, next
	}
	w.add(p.Ret(0), ids, p, partition.None, -1, -1)
	return true, nil
}

// assign makes x := y over a grouped y a new group sharing y's members.
func (w *rewriter) assign(p *ir.Instruction) (bool, error) {
	src := w.plain(p.Param(0))
	members := make([]ir.VarID, w.parts(src))
	for k := range members {
		members[k] = w.mats.Part(src, k)
	}
	w.add(p.Ret(0), members, p, partition.None, -1, -1)
	return true, nil
}

// projection rewrites r := algebra.projection(cand, col) over grouped
// candidates. With col grouped too, every candidate member is paired with
// the first column member holding its rows.
func (w *rewriter) projection(p *ir.Instruction) (bool, error) {
	cand := w.plain(p.Param(0))
	col := w.plain(p.Param(1))

	var pairs []int
	if col >= 0 {
		var ok bool
		if pairs, ok = w.alignedPairs(cand, col); !ok {
			return false, nil
		}
	}

	res := make([]ir.VarID, w.parts(cand))
	for k := range res {
		colk := p.Param(1)
		if col >= 0 {
			colk = w.mats.Part(col, pairs[k])
		}
		q, err := w.partial(p, map[int]ir.VarID{0: w.mats.Part(cand, k), 1: colk})
		if err != nil {
			return false, err
		}
		w.mats.SetPartition(colk, q.Ret(0), k)
		res[k] = q.Ret(0)
	}
	w.add(p.Ret(0), res, p, partition.None, -1, -1)
	return true, nil
}

// setOp rewrites r := algebra.difference|intersect(l, r, lc, rc, ...) over
// a grouped l. Each left member is compared against the right members
// that can hold equal values.
func (w *rewriter) setOp(p *ir.Instruction) (bool, error) {
	l := w.plain(p.Param(0))
	r := w.plain(p.Param(1))
	lc := w.plain(p.Param(2))
	oids := w.b.Type(p.Param(1)).Kind == ir.KindOid

	res := make([]ir.VarID, w.parts(l))
	for k := range res {
		lk := w.mats.Part(l, k)
		right := p.Param(1)
		if r >= 0 {
			var members []ir.VarID
			for j := 0; j < w.parts(r); j++ {
				rj := w.mats.Part(r, j)
				if !oids || w.mats.JoinOverlap(lk, rj) {
					members = append(members, rj)
				}
			}
			if len(members) == 1 {
				right = members[0]
			} else {
				v, err := w.packInto(w.b.Type(p.Param(1)), members)
				if err != nil {
					return false, err
				}
				right = v
			}
		}
		q, err := w.partial(p, map[int]ir.VarID{
			0: lk,
			1: right,
			2: w.part(lc, p.Param(2), k),
		})
		if err != nil {
			return false, err
		}
		w.mats.SetPartition(lk, q.Ret(0), k)
		res[k] = q.Ret(0)
	}
	w.add(p.Ret(0), res, p, partition.None, -1, -1)
	return true, nil
}

// delta rewrites sql.delta, sql.projectdelta and sql.subdelta. Operands
// split alike run partition by partition. A projectdelta whose candidates
// are split differently from the column pairs each candidate member with
// the column members holding its rows.
func (w *rewriter) delta(p *ir.Instruction) (bool, error) {
	var grouped []int
	for i, v := range p.Params() {
		if w.isMat(v) {
			if w.plain(v) < 0 {
				return false, nil
			}
			grouped = append(grouped, i)
		}
	}
	first := w.plain(p.Param(0))
	aligned := true
	for _, i := range grouped {
		aligned = aligned && w.parts(w.plain(p.Param(i))) == w.parts(first)
	}
	if aligned {
		return w.apply(p, fresh)
	}
	if p.Function != ir.FnProjectdelta {
		return false, nil
	}

	col := w.plain(p.Param(1))
	if col < 0 {
		return false, nil
	}
	for _, i := range grouped[1:] {
		if w.parts(w.plain(p.Param(i))) != w.parts(col) {
			return false, nil
		}
	}

	type pair struct{ k, j int }
	var pairs []pair
	for k := 0; k < w.parts(first); k++ {
		for j := 0; j < w.parts(col); j++ {
			if w.mats.Overlap(w.mats.Part(first, k), w.mats.Part(col, j), k, j, false) {
				pairs = append(pairs, pair{k, j})
			}
		}
	}
	if len(pairs) == 0 {
		return false, nil
	}

	res := make([]ir.VarID, len(pairs))
	for nr, pr := range pairs {
		replace := map[int]ir.VarID{0: w.mats.Part(first, pr.k)}
		for _, i := range grouped[1:] {
			replace[i] = w.mats.Part(w.plain(p.Param(i)), pr.j)
		}
		q, err := w.partial(p, replace)
		if err != nil {
			return false, err
		}
		w.mats.SetPartition(w.mats.Part(col, pr.j), q.Ret(0), nr)
		res[nr] = q.Ret(0)
	}
	w.add(p.Ret(0), res, p, partition.None, -1, -1)
	return true, nil
}
