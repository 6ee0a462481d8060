// Package mergetable rewrites plans over horizontally partitioned tables.
//
// After mitosis has split table columns into per-partition binds combined
// by mat.pack, mergetable pushes operators below those packs: each operator
// runs once per partition (or once per overlapping pair of partitions), and
// partial results are combined only where a consumer needs the whole
// column. Aggregates, group-bys and top-N run in two phases.
//
// The pass is all-or-nothing. It builds a new instruction sequence next to
// the old one and swaps it in at the end; on a bailout or an error the block
// is left as it was.
package mergetable

import (
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/optimizer"
	"github.com/roach88/qopt/internal/partition"
)

// Name is the registered pass name.
const Name = "mergetable"

// errBailout marks a rewrite that was abandoned because the plan cannot be
// split safely. It never leaves the package.
var errBailout = errors.New("mergetable bailout")

func bailoutf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), errBailout)
}

// Pass is the mergetable optimizer pass.
type Pass struct{}

// New returns the mergetable pass. The pass keeps no state between runs
// and may be registered once and reused.
func New() *Pass { return &Pass{} }

// Name implements optimizer.Pass.
func (*Pass) Name() string { return Name }

// Run implements optimizer.Pass. It rewrites b in place and returns the
// number of instructions it replaced by partitioned sequences.
//
// Run does nothing (0 actions, nil error) when mitosis is not in the
// block history, when the prescan finds an operator that cannot be split
// safely, or when the rewrite bails out part way through. Variables
// allocated by an abandoned rewrite are truncated, so the block is left
// exactly as it was. Errors are reserved for malformed instructions and
// exhausted variable tables.
func (*Pass) Run(ctx *optimizer.Context, b *ir.Block, _ *ir.Instruction) (int, error) {
	log := ctx.Log()
	if reason := prescan(b); reason != "" {
		log.Debug("mergetable skipped", "block", b.Name, "reason", reason)
		return 0, nil
	}

	mark := b.NumVars()
	w := newRewriter(b, log)
	w.groupDone = groupsDone(b)

	if err := w.rewrite(); err != nil {
		b.Truncate(mark)
		if errors.Is(err, errBailout) {
			log.Debug("mergetable bailout", "block", b.Name, "reason", err.Error())
			return 0, nil
		}
		return 0, err
	}

	b.Swap(w.out)
	log.Debug("mergetable rewrote block",
		"block", b.Name,
		"actions", w.actions,
		"groups", w.mats.Len(),
		"unused", len(w.mats.Unused()))
	return w.actions, nil
}

// rewriter holds the state of one rewrite.
type rewriter struct {
	b    *ir.Block
	mats *partition.List
	out  []*ir.Instruction
	log  *slog.Logger

	actions   int
	groupDone bool

	// selectors of finalized top-N descriptors: positions into the packed
	// partial candidates
	selectors map[int]ir.VarID
}

func newRewriter(b *ir.Block, log *slog.Logger) *rewriter {
	return &rewriter{
		b:         b,
		mats:      partition.NewList(b.NumVars()),
		out:       make([]*ir.Instruction, 0, len(b.Instrs)),
		log:       log,
		selectors: make(map[int]ir.VarID),
	}
}

func (w *rewriter) rewrite() error {
	for i, p := range w.b.Instrs {
		if p.Token == ir.TokEnd {
			w.out = append(w.out, w.b.Instrs[i:]...)
			return nil
		}
		if err := w.instruction(p); err != nil {
			return err
		}
	}
	return nil
}

func (w *rewriter) instruction(p *ir.Instruction) error {
	if p.Is(ir.ModMat, ir.FnPack) || p.Is(ir.ModMat, ir.FnNew) {
		w.pushed(p)
		return nil
	}
	if !w.usesMat(p) {
		w.emit(p)
		return nil
	}

	s := w.classify(p)
	handled, err := w.dispatch(p, s)
	if err != nil {
		return err
	}
	if handled {
		w.actions++
		return nil
	}
	if s != shapeMaterialize {
		w.log.Debug("mergetable fallback", "op", p.Name(), "shape", s.String())
	}
	return w.materialize(p)
}

func (w *rewriter) dispatch(p *ir.Instruction, s shape) (bool, error) {
	switch s {
	case shapeLeftJoin, shapeCrossproduct:
		return w.join(p, false)
	case shapeJoin:
		return w.join(p, p.Function == ir.FnJoin)
	case shapeRangeJoin:
		return w.rangeJoin(p)
	case shapeJoinNxM:
		return w.joinNxM(p)
	case shapeAggr:
		return w.aggr(p)
	case shapeSlice:
		return w.slice(p)
	case shapeTopN:
		return w.topN(p)
	case shapeGroupNew:
		return w.groupNew(p)
	case shapeGroupDerive:
		return w.groupDerive(p)
	case shapeGroupAggr:
		return w.groupAggr(p)
	case shapeExtentProjection:
		return w.extentProjection(p)
	case shapeTopNProjection:
		return w.topNProjection(p)
	case shapeProjection:
		return w.projection(p)
	case shapeSetOp:
		return w.setOp(p)
	case shapeAssign:
		return w.assign(p)
	case shapeDelta:
		return w.delta(p)
	case shapeSelect:
		return w.apply(p, propagate)
	case shapeMirror:
		return w.apply(p, mirror)
	case shapeIdentity:
		return w.identity(p)
	case shapeApply:
		return w.apply(p, fresh)
	}
	return false, nil
}

// pushed copies a mat.pack or mat.new through and registers it as an
// already materialized group of its parameters.
func (w *rewriter) pushed(p *ir.Instruction) {
	for k, v := range p.Params() {
		w.mats.SetPartition(ir.NoVar, v, k)
		if w.b.Type(v).Kind == ir.KindOid {
			w.mats.MirrorPartition(v, v)
		}
	}
	w.mats.Add(p, p, p.Ret(0), partition.None, -1, -1, true)
	w.emit(p)
}

// materialize packs every grouped operand of p and copies p through.
// Group ids and extents only make sense partition by partition, so a
// consumer that would need them packed abandons the rewrite.
func (w *rewriter) materialize(p *ir.Instruction) error {
	for i, v := range p.Params() {
		id, ok := w.mats.Lookup(v)
		if !ok {
			continue
		}
		m := w.mats.Mat(id)
		switch {
		case m.Kind == partition.Group:
			return bailoutf("%s consumes group ids %s", p.Name(), w.b.VarName(v))
		case m.Kind == partition.Extend && !(i == 0 && p.Is(ir.ModAlgebra, ir.FnProject)):
			return bailoutf("%s consumes group extents %s", p.Name(), w.b.VarName(v))
		case m.Kind == partition.TopN && !m.Pushed:
			return bailoutf("%s consumes intermediate top-n %s", p.Name(), w.b.VarName(v))
		}
	}
	for _, v := range p.Params() {
		if id, ok := w.mats.Lookup(v); ok {
			if err := w.pack(id); err != nil {
				return err
			}
		}
	}
	w.emit(p)
	return nil
}

// pack materializes descriptor id.
func (w *rewriter) pack(id int) error {
	m := w.mats.Mat(id)
	switch m.Kind {
	case partition.Group:
		return w.packChain(id)
	case partition.Extend:
		return w.packChain(m.Parent)
	case partition.Count:
		return w.packCount(id)
	}
	w.mats.Pack(id, w.emit)
	return nil
}

func (w *rewriter) emit(p *ir.Instruction) {
	w.out = append(w.out, p)
}

func (w *rewriter) usesMat(p *ir.Instruction) bool {
	for _, v := range p.Params() {
		if _, ok := w.mats.Lookup(v); ok {
			return true
		}
	}
	return false
}

// lookup returns the descriptor of v if it has the given kind, else -1.
func (w *rewriter) lookup(v ir.VarID, kind partition.Kind) int {
	id, ok := w.mats.Lookup(v)
	if !ok || w.mats.Mat(id).Kind != kind {
		return -1
	}
	return id
}

// plain returns the descriptor of v if it is a plain group of partials.
func (w *rewriter) plain(v ir.VarID) int {
	return w.lookup(v, partition.None)
}

func (w *rewriter) isMat(v ir.VarID) bool {
	_, ok := w.mats.Lookup(v)
	return ok
}

// part returns member k of descriptor id, or v itself when id < 0.
func (w *rewriter) part(id int, v ir.VarID, k int) ir.VarID {
	if id < 0 {
		return v
	}
	return w.mats.Part(id, k)
}

func (w *rewriter) parts(id int) int {
	if id < 0 {
		return 1
	}
	return w.mats.Parts(id)
}

// add registers v as the group of members.
func (w *rewriter) add(v ir.VarID, members []ir.VarID, orig *ir.Instruction, kind partition.Kind, input, parent int) int {
	return w.mats.Add(packOf(v, members), orig, v, kind, input, parent, false)
}

func packOf(v ir.VarID, members []ir.VarID) *ir.Instruction {
	p := ir.NewInstruction(ir.ModMat, ir.FnPack).PushReturn(v)
	for _, m := range members {
		p.PushArg(m)
	}
	return p
}

// packInto emits a fresh temporary of type t bound to mat.pack(members).
func (w *rewriter) packInto(t ir.Type, members []ir.VarID) (ir.VarID, error) {
	v, err := w.b.NewTmp(t)
	if err != nil {
		return ir.NoVar, err
	}
	w.emit(packOf(v, members))
	return v, nil
}

// call emits result := module.function(params...) into a fresh temporary.
func (w *rewriter) call(t ir.Type, module, function string, params ...ir.VarID) (ir.VarID, error) {
	v, err := w.b.NewTmp(t)
	if err != nil {
		return ir.NoVar, err
	}
	w.emitCall(v, module, function, params...)
	return v, nil
}

// emitCall emits result := module.function(params...).
func (w *rewriter) emitCall(result ir.VarID, module, function string, params ...ir.VarID) {
	p := ir.NewInstruction(module, function).PushReturn(result)
	for _, v := range params {
		p.PushArg(v)
	}
	w.emit(p)
}

// partial emits a copy of p with fresh results and the parameters at the
// given positions replaced.
func (w *rewriter) partial(p *ir.Instruction, replace map[int]ir.VarID) (*ir.Instruction, error) {
	q, err := w.b.CopyFresh(p)
	if err != nil {
		return nil, err
	}
	for i, v := range replace {
		q.SetArg(q.Retc+i, v)
	}
	w.emit(q)
	return q, nil
}

func (w *rewriter) constant(t ir.Type, v ir.Value) (ir.VarID, error) {
	return w.b.NewConst(t, v)
}

func (w *rewriter) malformed(p *ir.Instruction, format string, args ...any) error {
	return optimizer.NewMalformed(p, format, args...)
}
