package mergetable

import (
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/partition"
)

// Group-bys run per partition. Each partition's (groups, extents, counts)
// triple is partition-local: group ids number the partition's own groups
// and extents point at the partition's representative rows. The three
// results are registered as Group, Extend and Count descriptors, and a
// subgroup links its Group descriptor to the level it refines.
//
// Combining happens lazily, the first time a consumer needs global groups.
// packChain groups the local representatives once more: for every level the
// grouping attribute is projected through the finest local extents and
// packed, and the chain of group/subgroup calls is replayed over those
// packs. The replayed leaf binds the original group and extent variables,
// whose meaning becomes "local group -> global group" and "global group ->
// position in the packed representatives". Only two-phase consumers
// understand that meaning; anything else reaching a Group or Extend
// descriptor abandons the rewrite.

// groupNew rewrites (g, e, c) := group.group(b) over a grouped b.
func (w *rewriter) groupNew(p *ir.Instruction) (bool, error) {
	b := w.plain(p.Param(0))
	return true, w.groupLevel(p, b, -1)
}

// groupDerive rewrites (g, e, c) := group.subgroup(b, g0) over grouped b
// and partial groups g0.
func (w *rewriter) groupDerive(p *ir.Instruction) (bool, error) {
	b := w.plain(p.Param(0))
	parent := w.lookup(p.Param(1), partition.Group)
	return true, w.groupLevel(p, b, parent)
}

func (w *rewriter) groupLevel(p *ir.Instruction, b, parent int) error {
	n := w.parts(b)
	groups := make([]ir.VarID, n)
	extents := make([]ir.VarID, n)
	counts := make([]ir.VarID, n)
	for k := 0; k < n; k++ {
		replace := map[int]ir.VarID{0: w.mats.Part(b, k)}
		if parent >= 0 {
			replace[1] = w.mats.Part(parent, k)
		}
		q, err := w.partial(p, replace)
		if err != nil {
			return err
		}
		groups[k], extents[k], counts[k] = q.Ret(0), q.Ret(1), q.Ret(2)
		w.mats.SetPartition(ir.NoVar, groups[k], k)
		w.mats.PropagatePartition(w.mats.Part(b, k), extents[k], k)
		w.mats.SetPartition(ir.NoVar, counts[k], k)
	}

	g := w.add(p.Ret(0), groups, p, partition.Group, b, parent)
	w.add(p.Ret(1), extents, p, partition.Extend, b, g)
	w.add(p.Ret(2), counts, p, partition.Count, b, g)

	if p.Function == ir.FnGroupdone || p.Function == ir.FnSubgroupdone {
		return w.packChain(g)
	}
	return nil
}

// packChain binds the group and extent variables of group descriptor gid
// to their combined values. It is idempotent.
//
// Unlike other descriptors, a packed group is only flagged Pushed and is
// not marked packed: grouped aggregates and extent projections that follow
// still resolve the group and its extents to their per-partition members.
func (w *rewriter) packChain(gid int) error {
	leaf := w.mats.Mat(gid)
	if leaf.Pushed {
		return nil
	}
	ext := w.mats.Child(gid, partition.Extend)
	if ext < 0 {
		return errors.AssertionFailedf("group %s has no extents", w.b.VarName(leaf.Var))
	}

	var levels []int
	for id := gid; id >= 0; id = w.mats.Mat(id).Parent {
		levels = append(levels, id)
	}
	slices.Reverse(levels)

	n := w.parts(gid)
	prev := ir.NoVar
	for i, id := range levels {
		attr := w.mats.Mat(id).Input
		at := w.b.Type(w.mats.Mat(attr).Var)

		reps := make([]ir.VarID, n)
		for k := 0; k < n; k++ {
			v, err := w.call(at, ir.ModAlgebra, ir.FnProjection, w.mats.Part(ext, k), w.mats.Part(attr, k))
			if err != nil {
				return err
			}
			reps[k] = v
		}
		packed, err := w.packInto(at, reps)
		if err != nil {
			return err
		}

		last := i == len(levels)-1
		fn := ir.FnGroup
		if i > 0 {
			fn = ir.FnSubgroup
		}
		if last {
			fn += "done"
		}

		q := ir.NewInstruction(ir.ModGroup, fn)
		if last {
			q.PushReturn(leaf.Var).PushReturn(w.mats.Mat(ext).Var)
		} else {
			gv, err := w.b.NewTmp(ir.TypeOids)
			if err != nil {
				return err
			}
			ev, err := w.b.NewTmp(ir.TypeOids)
			if err != nil {
				return err
			}
			q.PushReturn(gv).PushReturn(ev)
		}
		cv, err := w.b.NewTmp(ir.TypeLngs)
		if err != nil {
			return err
		}
		q.PushReturn(cv).PushArg(packed)
		if i > 0 {
			q.PushArg(prev)
		}
		w.emit(q)
		prev = q.Ret(0)
	}

	w.mats.Mat(gid).Pushed = true
	return nil
}

// packCount binds a group-size variable: the packed per-partition sizes
// summed per global group.
func (w *rewriter) packCount(cid int) error {
	gid := w.mats.Mat(cid).Parent
	if err := w.packChain(gid); err != nil {
		return err
	}
	ext := w.mats.Child(gid, partition.Extend)
	c := w.mats.Mat(cid)

	members := make([]ir.VarID, w.parts(cid))
	for k := range members {
		members[k] = w.mats.Part(cid, k)
	}
	packed, err := w.packInto(w.b.Type(c.Var), members)
	if err != nil {
		return err
	}
	skip, err := w.constant(ir.TypeBit, ir.Bit(true))
	if err != nil {
		return err
	}
	w.emitCall(c.Var, ir.ModAggr, ir.FnSubsum, packed, w.mats.Mat(gid).Var, w.mats.Mat(ext).Var, skip)
	w.mats.Mat(cid).Pushed = true
	w.mats.MarkPacked(cid)
	return nil
}

// extentProjection rewrites r := algebra.projection(e, x) with e the
// extents of a grouped group-by: x is projected through the local extents,
// packed, and the packed representatives are projected through the
// combined extents.
func (w *rewriter) extentProjection(p *ir.Instruction) (bool, error) {
	eid := w.lookup(p.Param(0), partition.Extend)
	x := w.plain(p.Param(1))
	n := w.parts(eid)

	reps := make([]ir.VarID, n)
	for k := 0; k < n; k++ {
		q, err := w.partial(p, map[int]ir.VarID{
			0: w.mats.Part(eid, k),
			1: w.part(x, p.Param(1), k),
		})
		if err != nil {
			return false, err
		}
		reps[k] = q.Ret(0)
	}
	packed, err := w.packInto(w.b.Type(p.Ret(0)), reps)
	if err != nil {
		return false, err
	}
	if err := w.packChain(w.mats.Mat(eid).Parent); err != nil {
		return false, err
	}
	w.emitCall(p.Ret(0), ir.ModAlgebra, ir.FnProjection, w.mats.Mat(eid).Var, packed)
	return true, nil
}
