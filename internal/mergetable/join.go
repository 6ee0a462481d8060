package mergetable

import (
	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/partition"
)

// join rewrites (lo, ro) := f(l, r, lc, rc, ...) with l and/or r grouped
// into one join per pair of members. With prune set (equi-joins), pairs
// whose value spaces are known to be disjoint are skipped; at least one
// pair is always kept so both results have a member.
func (w *rewriter) join(p *ir.Instruction, prune bool) (bool, error) {
	l, r := w.plain(p.Param(0)), w.plain(p.Param(1))
	if l < 0 && r < 0 {
		return false, w.malformed(p, "join without a grouped data operand")
	}
	lc, rc := w.plain(p.Param(2)), w.plain(p.Param(3))

	type pair struct{ k, j int }
	var pairs []pair
	for k := 0; k < w.parts(l); k++ {
		for j := 0; j < w.parts(r); j++ {
			if prune && l >= 0 && r >= 0 &&
				!w.mats.JoinOverlap(w.mats.Part(l, k), w.mats.Part(r, j)) {
				continue
			}
			pairs = append(pairs, pair{k, j})
		}
	}
	if len(pairs) == 0 {
		pairs = append(pairs, pair{0, 0})
	}

	var los, ros []ir.VarID
	for nr, pr := range pairs {
		lk, rj := w.part(l, p.Param(0), pr.k), w.part(r, p.Param(1), pr.j)
		q, err := w.partial(p, map[int]ir.VarID{
			0: lk,
			1: rj,
			2: w.part(lc, p.Param(2), pr.k),
			3: w.part(rc, p.Param(3), pr.j),
		})
		if err != nil {
			return false, err
		}
		w.mats.PropagatePartition(lk, q.Ret(0), nr)
		w.mats.PropagatePartition(rj, q.Ret(1), nr)
		los = append(los, q.Ret(0))
		ros = append(ros, q.Ret(1))
	}
	w.add(p.Ret(0), los, p, partition.None, -1, -1)
	w.add(p.Ret(1), ros, p, partition.None, -1, -1)
	return true, nil
}

// rangeJoin rewrites (lo, ro) := algebra.rangejoin(l, r1, r2, lc, rc, ...)
// with both range bounds grouped alike and l concrete: one join per bound
// partition.
func (w *rewriter) rangeJoin(p *ir.Instruction) (bool, error) {
	r1, r2 := w.plain(p.Param(1)), w.plain(p.Param(2))
	rc := w.plain(p.Param(4))
	l := p.Param(0)

	n := w.parts(r1)
	los := make([]ir.VarID, n)
	ros := make([]ir.VarID, n)
	for k := 0; k < n; k++ {
		q, err := w.partial(p, map[int]ir.VarID{
			1: w.mats.Part(r1, k),
			2: w.mats.Part(r2, k),
			4: w.part(rc, p.Param(4), k),
		})
		if err != nil {
			return false, err
		}
		w.mats.PropagatePartition(l, q.Ret(0), k)
		w.mats.PropagatePartition(w.mats.Part(r1, k), q.Ret(1), k)
		los[k], ros[k] = q.Ret(0), q.Ret(1)
	}
	w.add(p.Ret(0), los, p, partition.None, -1, -1)
	w.add(p.Ret(1), ros, p, partition.None, -1, -1)
	return true, nil
}

// joinNxM rewrites a join over several column operands per side. The left
// side is the run of leading operands split like the first one; when every
// operand is split alike the operands are halved.
func (w *rewriter) joinNxM(p *ir.Instruction) (bool, error) {
	var ops []int
	for _, i := range w.columnParams(p) {
		if w.b.IsNilConst(p.Param(i)) {
			continue
		}
		if w.plain(p.Param(i)) < 0 {
			return false, nil
		}
		ops = append(ops, i)
	}
	if len(ops) < 2 {
		return false, nil
	}

	first := w.plain(p.Param(ops[0]))
	split := 1
	for split < len(ops) && w.sameLineage(first, w.plain(p.Param(ops[split]))) {
		split++
	}
	if split == len(ops) {
		split = len(ops) / 2
	}
	left, right := ops[:split], ops[split:]
	rfirst := w.plain(p.Param(right[0]))
	for _, i := range right {
		if w.parts(w.plain(p.Param(i))) != w.parts(rfirst) {
			return false, nil
		}
	}
	for _, i := range left {
		if w.parts(w.plain(p.Param(i))) != w.parts(first) {
			return false, nil
		}
	}

	var los, ros []ir.VarID
	for k := 0; k < w.parts(first); k++ {
		for j := 0; j < w.parts(rfirst); j++ {
			lk, rj := w.mats.Part(first, k), w.mats.Part(rfirst, j)
			if !w.mats.JoinOverlap(lk, rj) {
				continue
			}
			replace := make(map[int]ir.VarID, len(ops))
			for _, i := range left {
				replace[i] = w.mats.Part(w.plain(p.Param(i)), k)
			}
			for _, i := range right {
				replace[i] = w.mats.Part(w.plain(p.Param(i)), j)
			}
			q, err := w.partial(p, replace)
			if err != nil {
				return false, err
			}
			nr := len(los)
			w.mats.PropagatePartition(lk, q.Ret(0), nr)
			w.mats.PropagatePartition(rj, q.Ret(1), nr)
			los = append(los, q.Ret(0))
			ros = append(ros, q.Ret(1))
		}
	}
	if len(los) == 0 {
		return false, nil
	}
	w.add(p.Ret(0), los, p, partition.None, -1, -1)
	w.add(p.Ret(1), ros, p, partition.None, -1, -1)
	return true, nil
}

// sameLineage reports whether two groups are split the same way: equal
// member counts and members drawn from the same row partitions.
func (w *rewriter) sameLineage(a, b int) bool {
	if a < 0 || b < 0 || w.parts(a) != w.parts(b) {
		return false
	}
	for k := 0; k < w.parts(a); k++ {
		ha, _ := w.mats.Origin(w.mats.Part(a, k))
		hb, _ := w.mats.Origin(w.mats.Part(b, k))
		if ha < 0 || ha != hb {
			return false
		}
	}
	return true
}
