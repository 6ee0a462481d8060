// Package partition tracks horizontally partitioned intermediate results
// while a plan is being rewritten.
//
// A List holds partition-group descriptors ("mats"), each standing for a
// sequence of same-shaped partial results, one per partition, together with
// the provenance tables used to decide whether two members of different
// groups can contain matching rows.
//
// Descriptors are owned by the List and referenced only by index. A List is
// built for one rewrite and discarded afterwards.
package partition

import (
	"fmt"

	"github.com/roach88/qopt/internal/ir"
)

// Kind discriminates descriptors that need special handling when consumed.
type Kind uint8

const (
	// None is a plain sequence of partials.
	None Kind = iota
	// Group holds per-partition group ids.
	Group
	// Extend holds per-partition group extents.
	Extend
	// Count holds per-partition group sizes.
	Count
	// TopN holds the first phase of a top-N.
	TopN
	// Slice holds the first phase of a slice.
	Slice
	// Sort holds the first phase of a sort.
	Sort
)

var kindNames = [...]string{
	None:   "none",
	Group:  "group",
	Extend: "extend",
	Count:  "count",
	TopN:   "topn",
	Slice:  "slice",
	Sort:   "sort",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Mat describes one partition group.
type Mat struct {
	// Pack materializes the group. Its parameters are the members.
	Pack *ir.Instruction
	// Orig is the instruction the group replaces.
	Orig *ir.Instruction
	// Var is the variable the group stands for.
	Var ir.VarID
	// Input links an intermediate to the group it was derived from, -1 if none.
	Input int
	// Parent links a composite level to the level above it, -1 if none.
	Parent int
	Kind   Kind

	// Packed is set once the group has been combined and can no longer be
	// consumed member by member.
	Packed bool
	// Pushed is set once Pack (or an equivalent definition of Var) has been
	// emitted into the new block.
	Pushed bool
}

// Unknown marks an unset provenance entry.
const Unknown = -1

// List is the partition registry plus provenance tables.
//
// INVARIANTS:
//   - descriptors are only appended; flags flip, entries never disappear
//   - vars[v] names the latest descriptor for v, or -1
//   - provenance entries are Unknown until set
type List struct {
	mats    []Mat
	vars    []int
	horigin []int
	torigin []int
}

// NewList creates an empty registry sized for nvars variables. The tables
// grow when larger variable ids are used.
func NewList(nvars int) *List {
	l := &List{}
	l.grow(ir.VarID(nvars - 1))
	return l
}

func (l *List) grow(v ir.VarID) {
	for int(v) >= len(l.vars) {
		l.vars = append(l.vars, -1)
		l.horigin = append(l.horigin, Unknown)
		l.torigin = append(l.torigin, Unknown)
	}
}

// Len returns the number of descriptors ever added, packed ones included.
// Descriptor ids range over [0, Len).
func (l *List) Len() int { return len(l.mats) }

// Mat returns descriptor id for inspection or flag updates. The pointer is
// valid until the next Add, which may reallocate the descriptor slice.
func (l *List) Mat(id int) *Mat { return &l.mats[id] }

// Add registers a new descriptor and returns its index.
//
// The new descriptor becomes the one Lookup returns for v, unless it is an
// Extend for a variable that already has a descriptor. A descriptor it
// replaces is marked packed.
func (l *List) Add(pack, orig *ir.Instruction, v ir.VarID, kind Kind, input, parent int, pushed bool) int {
	l.grow(v)
	id := len(l.mats)
	l.mats = append(l.mats, Mat{
		Pack:   pack,
		Orig:   orig,
		Var:    v,
		Input:  input,
		Parent: parent,
		Kind:   kind,
		Pushed: pushed,
	})
	if prev := l.vars[v]; prev < 0 || kind != Extend {
		if prev >= 0 {
			l.mats[prev].Packed = true
		}
		l.vars[v] = id
	}
	return id
}

// Lookup returns the descriptor standing for v. It reports false when v
// was never partitioned or when its latest descriptor has been packed, in
// which case v holds its whole value and is consumed as is.
func (l *List) Lookup(v ir.VarID) (int, bool) {
	if v < 0 || int(v) >= len(l.vars) {
		return -1, false
	}
	id := l.vars[v]
	if id < 0 || l.mats[id].Packed {
		return -1, false
	}
	return id, true
}

// Parts returns the number of members of descriptor id. Every descriptor
// has at least one member.
func (l *List) Parts(id int) int { return l.mats[id].Pack.NumParams() }

// Part returns the variable holding member k of descriptor id, for
// 0 <= k < Parts(id).
func (l *List) Part(id, k int) ir.VarID { return l.mats[id].Pack.Param(k) }

// MarkPacked flags id as packed. If another unpacked descriptor defines the
// same variable, Lookup resolves to it afterwards.
func (l *List) MarkPacked(id int) {
	m := &l.mats[id]
	m.Packed = true
	if l.vars[m.Var] != id {
		return
	}
	l.vars[m.Var] = -1
	for i := len(l.mats) - 1; i >= 0; i-- {
		if i != id && l.mats[i].Var == m.Var && !l.mats[i].Packed {
			l.vars[m.Var] = i
			return
		}
	}
}

// Pack combines descriptor id into a single value bound to its variable.
// The instructions doing so are passed to emit. Packing an already packed
// descriptor emits nothing.
//
// A pushed descriptor already has its pack in the block; at most an
// assignment rebinding Var is emitted. A single-member descriptor packs
// into a plain assignment.
func (l *List) Pack(id int, emit func(*ir.Instruction)) {
	m := &l.mats[id]
	if m.Packed {
		return
	}
	switch {
	case m.Pushed:
		if r := m.Pack.Ret(0); r != m.Var {
			emit(ir.NewAssignment(m.Var, r))
		}
	case m.Pack.NumParams() == 1:
		emit(ir.NewAssignment(m.Var, m.Pack.Param(0)))
	default:
		p := m.Pack.Clone()
		p.SetArg(0, m.Var)
		emit(p)
	}
	m.Pushed = true
	l.MarkPacked(id)
}

// Unused returns the descriptors that were never packed and never pushed.
// Their members were emitted but nothing consumed the combined value. The
// rewriter reports the count in its debug log and leaves the members to
// dead code elimination.
func (l *List) Unused() []int {
	var ids []int
	for i := range l.mats {
		if !l.mats[i].Packed && !l.mats[i].Pushed {
			ids = append(ids, i)
		}
	}
	return ids
}

// ChainLength returns the number of levels reachable from id through
// Parent links, id included.
func (l *List) ChainLength(id int) int {
	n := 0
	for ; id >= 0; id = l.mats[id].Parent {
		n++
	}
	return n
}

// WalkBack follows n Parent links from id. It returns -1 when the chain is
// shorter than n.
func (l *List) WalkBack(id, n int) int {
	for ; n > 0 && id >= 0; n-- {
		id = l.mats[id].Parent
	}
	return id
}

// Child returns the first descriptor after parent of the given kind whose
// Parent link points at parent, or -1.
func (l *List) Child(parent int, kind Kind) int {
	for i := parent + 1; i < len(l.mats); i++ {
		if l.mats[i].Parent == parent && l.mats[i].Kind == kind {
			return i
		}
	}
	return -1
}

// Origin returns the row-id (head) and value (tail) partition of v. Either
// is Unknown when v was not derived from a partitioned column, or when the
// derivation lost track of which slice its rows or values came from.
func (l *List) Origin(v ir.VarID) (head, tail int) {
	if v < 0 || int(v) >= len(l.vars) {
		return Unknown, Unknown
	}
	return l.horigin[v], l.torigin[v]
}

// SetPartition records result as member k of some group derived from
// origin: the value partition is inherited from origin when known and the
// row-id partition becomes k. origin may be ir.NoVar.
func (l *List) SetPartition(origin, result ir.VarID, k int) {
	l.grow(max(origin, result))
	if origin >= 0 {
		if t := l.torigin[origin]; t >= 0 {
			l.torigin[result] = t
		}
	}
	l.horigin[result] = k
}

// PropagatePartition is SetPartition for operators whose output values are
// row ids of their input, such as selections: the value partition is seeded
// from the row-id partition of origin.
func (l *List) PropagatePartition(origin, result ir.VarID, k int) {
	l.grow(max(origin, result))
	if origin >= 0 {
		if h := l.horigin[origin]; h >= 0 {
			l.torigin[result] = h
		}
	}
	l.horigin[result] = k
}

// MirrorPartition is for operators whose head and tail coincide: both
// partitions of result become the row-id partition of origin.
func (l *List) MirrorPartition(origin, result ir.VarID) {
	l.grow(max(origin, result))
	if h := l.horigin[origin]; h >= 0 {
		l.horigin[result] = h
		l.torigin[result] = h
	}
}

// Overlap reports whether member lk of the group holding left and member
// rk of the group holding right may contain matching rows.
//
// The value partition of left is compared against the value partition of
// right when tails is set, and against its row-id partition otherwise.
// Unknown entries fall back to the member numbers. The same member of the
// same variable always overlaps itself.
func (l *List) Overlap(left, right ir.VarID, lk, rk int, tails bool) bool {
	if left == right && lk == rk {
		return true
	}
	l.grow(max(left, right))
	lp := l.torigin[left]
	rp := l.horigin[right]
	if tails {
		rp = l.torigin[right]
	}
	switch {
	case lp < 0 && rp < 0:
		return lk == rk
	case rp < 0:
		return lp == rk
	case lp < 0:
		return rp == lk
	}
	return lp == rp
}

// JoinOverlap reports whether two join operands can produce matches. Only
// operands whose values both come from known, different partitions are
// disjoint; an Unknown value origin on either side counts as overlapping,
// so member pairs are kept unless they are provably empty.
func (l *List) JoinOverlap(left, right ir.VarID) bool {
	l.grow(max(left, right))
	lt, rt := l.torigin[left], l.torigin[right]
	return lt < 0 || rt < 0 || lt == rt
}
