package mergetable

import (
	"fmt"
	"strings"

	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/partition"
)

// shape is the rewrite an instruction with grouped operands receives.
// Every instruction is classified once; a handler that finds it cannot
// apply after all falls back to shapeMaterialize.
type shape uint8

const (
	shapeMaterialize shape = iota
	shapeLeftJoin
	shapeJoin
	shapeRangeJoin
	shapeCrossproduct
	shapeJoinNxM
	shapeAggr
	shapeSlice
	shapeTopN
	shapeGroupNew
	shapeGroupDerive
	shapeGroupAggr
	shapeExtentProjection
	shapeTopNProjection
	shapeProjection
	shapeSetOp
	shapeAssign
	shapeDelta
	shapeSelect
	shapeMirror
	shapeIdentity
	shapeApply
)

var shapeNames = [...]string{
	shapeMaterialize:      "materialize",
	shapeLeftJoin:         "leftjoin",
	shapeJoin:             "join",
	shapeRangeJoin:        "rangejoin",
	shapeCrossproduct:     "crossproduct",
	shapeJoinNxM:          "joinNxM",
	shapeAggr:             "aggr",
	shapeSlice:            "slice",
	shapeTopN:             "topn",
	shapeGroupNew:         "group",
	shapeGroupDerive:      "subgroup",
	shapeGroupAggr:        "groupaggr",
	shapeExtentProjection: "extentprojection",
	shapeTopNProjection:   "topnprojection",
	shapeProjection:       "projection",
	shapeSetOp:            "setop",
	shapeAssign:           "assign",
	shapeDelta:            "delta",
	shapeSelect:           "select",
	shapeMirror:           "mirror",
	shapeIdentity:         "identity",
	shapeApply:            "apply",
}

func (s shape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return fmt.Sprintf("shape(%d)", uint8(s))
}

// classify returns the rewrite that applies to p, given the descriptors
// registered so far. It is called once per instruction; the only second
// look is the shapeMaterialize fallback taken when a handler declines.
//
// The checks mirror what each handler needs: the data operands that must be
// grouped, the operands that must not be, and equal partition counts where
// members are paired one to one. An instruction that matches nothing, or
// uses no grouped operand in a position that can be split, is
// shapeMaterialize.
func (w *rewriter) classify(p *ir.Instruction) shape {
	switch {
	case p.IsAssignment():
		if w.plain(p.Param(0)) >= 0 {
			return shapeAssign
		}
		return shapeMaterialize
	case p.Module == ir.ModAlgebra:
		if s := w.classifyAlgebra(p); s != shapeMaterialize {
			return s
		}
	case p.Module == ir.ModAggr:
		return w.classifyAggr(p)
	case p.Module == ir.ModGroup:
		return w.classifyGroup(p)
	case p.Module == ir.ModSQL:
		if isDelta(p) && w.plain(p.Param(0)) >= 0 {
			return shapeDelta
		}
		return shapeMaterialize
	case p.Is(ir.ModBat, ir.FnMirror):
		if p.Retc == 1 && p.NumParams() == 1 && w.plain(p.Param(0)) >= 0 {
			return shapeMirror
		}
		return shapeMaterialize
	case p.Is(ir.ModBatcalc, ir.FnIdentity):
		if p.Retc == 1 && p.NumParams() == 1 && w.plain(p.Param(0)) >= 0 {
			return shapeIdentity
		}
		return shapeMaterialize
	}
	if w.uniform(p) {
		return shapeApply
	}
	return shapeMaterialize
}

func (w *rewriter) classifyAlgebra(p *ir.Instruction) shape {
	np := p.NumParams()
	switch p.Function {
	case ir.FnLeftjoin, ir.FnOuterjoin, ir.FnMarkjoin:
		if p.Retc == 2 && np >= 4 && w.plain(p.Param(0)) >= 0 &&
			!w.isMat(p.Param(1)) && !w.isMat(p.Param(3)) && w.candidatesFit(p.Param(2), p.Param(0)) &&
			w.othersConcrete(p, 0, 1, 2, 3) {
			return shapeLeftJoin
		}
	case ir.FnJoin, ir.FnThetajoin, ir.FnBandjoin:
		if p.Retc != 2 {
			break
		}
		switch cols := w.columnParams(p); {
		case len(cols) == 4 && cols[3] == 3 && w.joinOperandsFit(p):
			return shapeJoin
		case len(cols) > 4 && p.Function == ir.FnJoin:
			return shapeJoinNxM
		}
	case ir.FnRangejoin:
		if p.Retc == 2 && np >= 5 && !w.isMat(p.Param(0)) && !w.isMat(p.Param(3)) {
			r1, r2 := w.plain(p.Param(1)), w.plain(p.Param(2))
			if r1 >= 0 && r2 >= 0 && w.parts(r1) == w.parts(r2) && w.candidatesFit(p.Param(4), p.Param(1)) &&
				w.othersConcrete(p, 0, 1, 2, 3, 4) {
				return shapeRangeJoin
			}
		}
	case ir.FnCrossproduct:
		if p.Retc == 2 && np >= 5 && w.b.ConstValue(p.Param(4)) == ir.Bit(false) && w.joinOperandsFit(p) {
			return shapeCrossproduct
		}
	case ir.FnSlice:
		if p.Retc == 1 && np == 3 && w.plain(p.Param(0)) >= 0 && w.othersConcrete(p, 0) {
			return shapeSlice
		}
	case ir.FnFirstn:
		if w.topNFits(p) {
			return shapeTopN
		}
	case ir.FnProjection:
		if p.Retc != 1 || np != 2 {
			break
		}
		cand, col := p.Param(0), p.Param(1)
		switch {
		case w.lookup(cand, partition.Extend) >= 0:
			e := w.lookup(cand, partition.Extend)
			if x := w.plain(col); !w.isMat(col) || (x >= 0 && w.parts(x) == w.parts(e)) {
				return shapeExtentProjection
			}
		case w.finalTopN(cand) >= 0 && w.plain(col) >= 0:
			return shapeTopNProjection
		case w.plain(cand) >= 0 && (w.plain(col) >= 0 || !w.isMat(col)):
			return shapeProjection
		}
	case ir.FnDifference, ir.FnIntersect:
		if p.Retc == 1 && np >= 4 && w.plain(p.Param(0)) >= 0 &&
			(w.plain(p.Param(1)) >= 0 || !w.isMat(p.Param(1))) &&
			w.candidatesFit(p.Param(2), p.Param(0)) && !w.isMat(p.Param(3)) &&
			w.othersConcrete(p, 0, 1, 2, 3) {
			return shapeSetOp
		}
	case ir.FnSelect, ir.FnThetaselect:
		if p.Retc == 1 && np >= 3 && w.plain(p.Param(0)) >= 0 &&
			w.candidatesFit(p.Param(1), p.Param(0)) && w.othersConcrete(p, 0, 1) {
			return shapeSelect
		}
	}
	return shapeMaterialize
}

func (w *rewriter) classifyAggr(p *ir.Instruction) shape {
	if p.Retc != 1 || p.NumParams() < 1 {
		return shapeMaterialize
	}
	if _, ok := phase2[p.Function]; ok {
		if !w.b.Type(p.Ret(0)).Column && w.plain(p.Param(0)) >= 0 && w.othersConcrete(p, 0) {
			return shapeAggr
		}
		return shapeMaterialize
	}
	if _, ok := groupPhase2[p.Function]; ok && p.NumParams() >= 3 {
		x := w.plain(p.Param(0))
		g := w.lookup(p.Param(1), partition.Group)
		e := w.lookup(p.Param(2), partition.Extend)
		if x >= 0 && g >= 0 && e >= 0 && w.mats.Mat(e).Parent == g &&
			w.parts(x) == w.parts(g) && w.othersConcrete(p, 0, 1, 2) {
			return shapeGroupAggr
		}
	}
	return shapeMaterialize
}

func (w *rewriter) classifyGroup(p *ir.Instruction) shape {
	if w.groupDone || p.Retc != 3 {
		return shapeMaterialize
	}
	switch p.Function {
	case ir.FnGroup, ir.FnGroupdone:
		if p.NumParams() == 1 && w.plain(p.Param(0)) >= 0 {
			return shapeGroupNew
		}
	case ir.FnSubgroup, ir.FnSubgroupdone:
		if p.NumParams() != 2 {
			break
		}
		b, g := w.plain(p.Param(0)), w.lookup(p.Param(1), partition.Group)
		if b >= 0 && g >= 0 && w.parts(b) == w.parts(g) {
			return shapeGroupDerive
		}
	}
	return shapeMaterialize
}

// topNFits accepts firstn(b, n, asc, nilslast, distinct) over a plain group
// and firstn(b, s, g, n, asc, nilslast, distinct) continuing a top-N level
// whose candidates and groups are still partial.
func (w *rewriter) topNFits(p *ir.Instruction) bool {
	if p.Retc < 1 || p.Retc > 2 {
		return false
	}
	b := w.plain(p.Param(0))
	if b < 0 {
		return false
	}
	switch p.NumParams() {
	case 5:
		return w.othersConcrete(p, 0)
	case 7:
		s, g := w.topNLevel(p.Param(1)), w.topNLevel(p.Param(2))
		return s >= 0 && g >= 0 && w.mats.Mat(g).Parent == s &&
			w.parts(s) == w.parts(b) && w.othersConcrete(p, 0, 1, 2)
	}
	return false
}

// topNLevel returns the descriptor of v if it is an unfinished top-N level.
func (w *rewriter) topNLevel(v ir.VarID) int {
	id := w.lookup(v, partition.TopN)
	if id < 0 || w.mats.Mat(id).Pushed {
		return -1
	}
	return id
}

// finalTopN returns the descriptor of v if it is a finalized top-N result.
func (w *rewriter) finalTopN(v ir.VarID) int {
	id := w.lookup(v, partition.TopN)
	if id < 0 || !w.mats.Mat(id).Pushed {
		return -1
	}
	if _, ok := w.selectors[id]; !ok {
		return -1
	}
	return id
}

// joinOperandsFit checks join(l, r, lc, rc, ...): a grouped candidate list
// needs its data operand grouped with the same number of partitions, and
// at least one data operand is grouped.
func (w *rewriter) joinOperandsFit(p *ir.Instruction) bool {
	l, r := w.plain(p.Param(0)), w.plain(p.Param(1))
	if l < 0 && r < 0 {
		return false
	}
	if (l < 0 && w.isMat(p.Param(0))) || (r < 0 && w.isMat(p.Param(1))) {
		return false
	}
	return w.candidatesFit(p.Param(2), p.Param(0)) &&
		w.candidatesFit(p.Param(3), p.Param(1)) &&
		w.othersConcrete(p, 0, 1, 2, 3)
}

// candidatesFit reports whether candidate list c can accompany data
// operand d: either c is not grouped, or both are plain groups with the
// same number of partitions.
func (w *rewriter) candidatesFit(c, d ir.VarID) bool {
	if !w.isMat(c) {
		return true
	}
	ci, di := w.plain(c), w.plain(d)
	return ci >= 0 && di >= 0 && w.parts(ci) == w.parts(di)
}

// othersConcrete reports whether every parameter outside the given
// positions is not grouped.
func (w *rewriter) othersConcrete(p *ir.Instruction, skip ...int) bool {
outer:
	for i, v := range p.Params() {
		for _, s := range skip {
			if i == s {
				continue outer
			}
		}
		if w.isMat(v) {
			return false
		}
	}
	return true
}

// columnParams returns the positions of the column-typed parameters,
// nil candidate constants included.
func (w *rewriter) columnParams(p *ir.Instruction) []int {
	var cols []int
	for i, v := range p.Params() {
		if w.b.Type(v).Column {
			cols = append(cols, i)
		}
	}
	return cols
}

// uniform reports whether p can run once per partition with every
// grouped operand replaced by its member: a map or fragment operator
// producing columns, whose grouped operands are plain and equally split.
func (w *rewriter) uniform(p *ir.Instruction) bool {
	if p.Retc < 1 || !(w.isMapOp(p) || p.Is(ir.ModAlgebra, ir.FnProject)) {
		return false
	}
	for _, r := range p.Results() {
		if !w.b.Type(r).Column {
			return false
		}
	}
	n := -1
	for _, v := range p.Params() {
		if !w.isMat(v) {
			continue
		}
		id := w.plain(v)
		if id < 0 || (n >= 0 && w.parts(id) != n) {
			return false
		}
		n = w.parts(id)
	}
	return n > 0
}

// Window functions see the whole column and cannot run per partition.
var windowFunctions = map[string]bool{
	"rank":         true,
	"dense_rank":   true,
	"row_number":   true,
	"percent_rank": true,
	"cume_dist":    true,
	"ntile":        true,
	"lag":          true,
	"lead":         true,
	"first_value":  true,
	"last_value":   true,
	"nth_value":    true,
	"diff":         true,
}

func (w *rewriter) isMapOp(p *ir.Instruction) bool {
	switch {
	case p.Module == ir.ModBatcalc:
		return true
	case p.Module == ir.ModMal && (p.Function == ir.FnMultiplex || p.Function == ir.FnManifold):
		if p.NumParams() < 2 {
			return false
		}
		fn, _ := w.b.ConstValue(p.Param(1)).(ir.Str)
		return !windowFunctions[string(fn)]
	case p.Module == ir.ModBat || p.Module == ir.ModBatsql:
		return false
	}
	return strings.HasPrefix(p.Module, "bat")
}

func isDelta(p *ir.Instruction) bool {
	if p.Module != ir.ModSQL {
		return false
	}
	switch p.Function {
	case ir.FnDelta, ir.FnProjectdelta, ir.FnSubdelta:
		return true
	}
	return false
}
