package partition

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qopt/internal/ir"
)

// packOf builds a mat.pack instruction result := mat.pack(members...).
func packOf(result ir.VarID, members ...ir.VarID) *ir.Instruction {
	p := ir.NewInstruction(ir.ModMat, ir.FnPack).PushReturn(result)
	for _, m := range members {
		p.PushArg(m)
	}
	return p
}

func TestSetPartition_Provenance(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	l := NewList(4)

	for i := 0; i < 500; i++ {
		origin := ir.VarID(rng.Intn(64))
		result := ir.VarID(64 + rng.Intn(64))
		k := rng.Intn(8)

		// Seed the origin's value partition half of the time.
		if rng.Intn(2) == 0 {
			l.MirrorPartition(origin, origin)
			l.SetPartition(ir.NoVar, origin, rng.Intn(8))
			l.MirrorPartition(origin, origin)
		}
		_, originTail := l.Origin(origin)
		_, prevTail := l.Origin(result)

		l.SetPartition(origin, result, k)

		head, tail := l.Origin(result)
		assert.Equal(t, k, head)
		if originTail >= 0 {
			assert.Equal(t, originTail, tail)
		} else {
			assert.Equal(t, prevTail, tail, "unset origin tail leaves the result alone")
		}
	}
}

func TestSetPartition_WithoutOrigin(t *testing.T) {
	l := NewList(2)
	l.SetPartition(ir.NoVar, 1, 3)

	head, tail := l.Origin(1)
	assert.Equal(t, 3, head)
	assert.Equal(t, Unknown, tail)
}

func TestPropagatePartition_SeedsTailFromHead(t *testing.T) {
	l := NewList(3)
	l.SetPartition(ir.NoVar, 0, 2)
	l.PropagatePartition(0, 1, 5)

	head, tail := l.Origin(1)
	assert.Equal(t, 5, head)
	assert.Equal(t, 2, tail)
}

func TestMirrorPartition(t *testing.T) {
	l := NewList(3)
	l.SetPartition(ir.NoVar, 0, 4)
	l.MirrorPartition(0, 1)

	head, tail := l.Origin(1)
	assert.Equal(t, 4, head)
	assert.Equal(t, 4, tail)

	// Unknown origin leaves the result untouched.
	l.MirrorPartition(2, 2)
	head, tail = l.Origin(2)
	assert.Equal(t, Unknown, head)
	assert.Equal(t, Unknown, tail)
}

func TestOverlap_Reflexive(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	l := NewList(0)

	for v := ir.VarID(0); v < 200; v++ {
		switch rng.Intn(4) {
		case 0:
			// untouched
		case 1:
			l.SetPartition(ir.NoVar, v, rng.Intn(6))
		case 2:
			l.SetPartition(ir.NoVar, v, rng.Intn(6))
			l.MirrorPartition(v, v)
		case 3:
			o := ir.VarID(rng.Intn(int(v) + 1))
			l.PropagatePartition(o, v, rng.Intn(6))
		}
		for k := 0; k < 6; k++ {
			assert.True(t, l.Overlap(v, v, k, k, true), "v=%d k=%d tails", v, k)
			assert.True(t, l.Overlap(v, v, k, k, false), "v=%d k=%d heads", v, k)
		}
	}
}

func TestOverlap_TailsSymmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	l := NewList(0)
	for v := ir.VarID(0); v < 40; v++ {
		if rng.Intn(2) == 0 {
			l.SetPartition(ir.NoVar, v, rng.Intn(4))
			l.MirrorPartition(v, v)
		}
	}
	for a := ir.VarID(0); a < 40; a++ {
		for b := ir.VarID(0); b < 40; b++ {
			for i := 0; i < 4; i++ {
				for j := 0; j < 4; j++ {
					assert.Equal(t, l.Overlap(a, b, i, j, true), l.Overlap(b, a, j, i, true))
				}
			}
		}
	}
}

func TestOverlap_Modes(t *testing.T) {
	l := NewList(4)
	// cand: row ids selected from partition 1, itself member 0 of its group
	l.SetPartition(ir.NoVar, 0, 1)
	l.PropagatePartition(0, 1, 0)
	// members 1 and 0 of a bound column
	l.SetPartition(ir.NoVar, 2, 1)
	l.SetPartition(ir.NoVar, 3, 0)

	tests := []struct {
		name   string
		right  ir.VarID
		lk, rk int
		tails  bool
		want   bool
	}{
		{"heads match value partition", 2, 0, 1, false, true},
		{"heads mismatch", 3, 0, 0, false, false},
		{"tails fall back to right member", 2, 0, 1, true, true},
		{"tails mismatch", 2, 0, 2, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.Overlap(1, tt.right, tt.lk, tt.rk, tt.tails))
		})
	}

	// Nothing known: members are paired by number.
	assert.True(t, l.Overlap(5, 5, 1, 1, true))
	assert.False(t, l.Overlap(5, 5, 0, 1, true))
}

func TestJoinOverlap_PrunesDisjointValueSpaces(t *testing.T) {
	l := NewList(8)
	// left members tagged A (0) and B (1), right likewise
	left := []ir.VarID{0, 1}
	right := []ir.VarID{2, 3}
	for k := 0; k < 2; k++ {
		l.SetPartition(ir.NoVar, left[k], k)
		l.MirrorPartition(left[k], left[k])
		l.SetPartition(ir.NoVar, right[k], k)
		l.MirrorPartition(right[k], right[k])
	}

	pairs := 0
	for _, a := range left {
		for _, b := range right {
			if l.JoinOverlap(a, b) {
				pairs++
			}
		}
	}
	assert.Equal(t, 2, pairs)

	// Unknown value space on one side keeps every pair.
	assert.True(t, l.JoinOverlap(0, 5))
	assert.True(t, l.JoinOverlap(6, 7))
}

func TestAdd_LookupAndReplace(t *testing.T) {
	l := NewList(10)

	first := l.Add(packOf(0, 1, 2), nil, 0, None, -1, -1, false)
	id, ok := l.Lookup(0)
	require.True(t, ok)
	assert.Equal(t, first, id)
	assert.Equal(t, 2, l.Parts(first))
	assert.Equal(t, ir.VarID(2), l.Part(first, 1))

	// An Extend for a variable with a descriptor does not take over.
	ext := l.Add(packOf(0, 3, 4), nil, 0, Extend, -1, -1, false)
	id, _ = l.Lookup(0)
	assert.Equal(t, first, id)
	assert.False(t, l.Mat(ext).Packed)

	// Any other kind replaces and retires the previous descriptor.
	second := l.Add(packOf(0, 5, 6), nil, 0, Group, -1, -1, false)
	id, _ = l.Lookup(0)
	assert.Equal(t, second, id)
	assert.True(t, l.Mat(first).Packed)

	_, ok = l.Lookup(9)
	assert.False(t, ok)
	_, ok = l.Lookup(ir.NoVar)
	assert.False(t, ok)
}

func TestAdd_GrowsForNewVariables(t *testing.T) {
	l := NewList(1)
	id := l.Add(packOf(50, 1, 2), nil, 50, None, -1, -1, false)
	got, ok := l.Lookup(50)
	require.True(t, ok)
	assert.Equal(t, id, got)
	assert.Equal(t, 1, l.Len())
}

func TestMarkPacked_RedirectsToOtherDescriptor(t *testing.T) {
	l := NewList(4)
	grp := l.Add(packOf(0, 1, 2), nil, 0, Group, -1, -1, false)
	ext := l.Add(packOf(0, 1, 2), nil, 0, Extend, -1, -1, false)

	l.MarkPacked(grp)
	id, ok := l.Lookup(0)
	require.True(t, ok)
	assert.Equal(t, ext, id)

	l.MarkPacked(ext)
	_, ok = l.Lookup(0)
	assert.False(t, ok)
}

func TestPack_Idempotent(t *testing.T) {
	l := NewList(8)
	id := l.Add(packOf(0, 1, 2, 3), nil, 0, None, -1, -1, false)

	var emitted []*ir.Instruction
	emit := func(p *ir.Instruction) { emitted = append(emitted, p) }

	l.Pack(id, emit)
	require.Len(t, emitted, 1)
	assert.True(t, emitted[0].Is(ir.ModMat, ir.FnPack))
	assert.Equal(t, ir.VarID(0), emitted[0].Ret(0))
	assert.Equal(t, []ir.VarID{1, 2, 3}, emitted[0].Params())

	_, ok := l.Lookup(0)
	assert.False(t, ok, "packed group is no longer a mat")

	l.Pack(id, emit)
	assert.Len(t, emitted, 1, "second pack is a no-op")
	assert.True(t, l.Mat(id).Packed)
	assert.True(t, l.Mat(id).Pushed)
}

func TestPack_SingleMemberIsAssignment(t *testing.T) {
	l := NewList(4)
	id := l.Add(packOf(0, 3), nil, 0, None, -1, -1, false)

	var emitted []*ir.Instruction
	l.Pack(id, func(p *ir.Instruction) { emitted = append(emitted, p) })
	require.Len(t, emitted, 1)
	assert.True(t, emitted[0].IsAssignment())
	assert.Equal(t, []ir.VarID{0, 3}, emitted[0].Args)
}

func TestPack_PushedRebindsOnlyWhenNeeded(t *testing.T) {
	l := NewList(6)
	var emitted []*ir.Instruction
	emit := func(p *ir.Instruction) { emitted = append(emitted, p) }

	same := l.Add(packOf(0, 1, 2), nil, 0, None, -1, -1, true)
	l.Pack(same, emit)
	assert.Empty(t, emitted)

	// pack already emitted into a temporary 5; the variable is 3
	other := l.Add(packOf(5, 1, 2), nil, 3, TopN, -1, -1, true)
	l.Pack(other, emit)
	require.Len(t, emitted, 1)
	assert.Equal(t, []ir.VarID{3, 5}, emitted[0].Args)
}

func TestUnused(t *testing.T) {
	l := NewList(6)
	a := l.Add(packOf(0, 1, 2), nil, 0, None, -1, -1, false)
	b := l.Add(packOf(3, 1, 2), nil, 3, None, -1, -1, true)
	c := l.Add(packOf(4, 1, 2), nil, 4, None, -1, -1, false)
	l.Pack(a, func(*ir.Instruction) {})

	assert.Equal(t, []int{c}, l.Unused())
	assert.NotContains(t, l.Unused(), b)
}

func TestChainWalk(t *testing.T) {
	l := NewList(6)
	top := l.Add(packOf(0, 1), nil, 0, Group, -1, -1, false)
	mid := l.Add(packOf(2, 1), nil, 2, Group, -1, top, false)
	low := l.Add(packOf(4, 1), nil, 4, Group, -1, mid, false)

	assert.Equal(t, 3, l.ChainLength(low))
	assert.Equal(t, 1, l.ChainLength(top))
	assert.Equal(t, top, l.WalkBack(low, 2))
	assert.Equal(t, low, l.WalkBack(low, 0))
	assert.Equal(t, -1, l.WalkBack(low, 3))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "extend", Extend.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}

func TestChild(t *testing.T) {
	l := NewList(6)
	grp := l.Add(packOf(0, 1), nil, 0, Group, -1, -1, false)
	ext := l.Add(packOf(2, 1), nil, 2, Extend, -1, grp, false)
	cnt := l.Add(packOf(3, 1), nil, 3, Count, -1, grp, false)

	assert.Equal(t, ext, l.Child(grp, Extend))
	assert.Equal(t, cnt, l.Child(grp, Count))
	assert.Equal(t, -1, l.Child(ext, Extend))
}
