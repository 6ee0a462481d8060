package ir

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVarRejectsDuplicates(t *testing.T) {
	b := NewBlock("user.main")
	_, err := b.NewVar("X_1", TypeInt)
	require.NoError(t, err)

	_, err = b.NewVar("X_1", TypeLng)
	assert.Error(t, err)
}

func TestNewVarNormalizesNames(t *testing.T) {
	b := NewBlock("user.main")
	// "é" precomposed vs "e" + combining acute accent
	id, err := b.NewVar("caf\u00e9", TypeInt)
	require.NoError(t, err)

	got, ok := b.Lookup("cafe\u0301")
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestNewTmpAvoidsTakenNames(t *testing.T) {
	b := NewBlock("user.main")
	_, err := b.NewVar("X_1", TypeInt)
	require.NoError(t, err)

	// The next tmp would be X_1 by index; it must not collide.
	id, err := b.NewTmp(TypeInt)
	require.NoError(t, err)
	assert.NotEqual(t, "X_1", b.VarName(id))
	assert.True(t, b.Var(id).Tmp)
}

func TestConstantsAreNotNamed(t *testing.T) {
	b := NewBlock("user.main")
	c, err := b.NewConst(TypeInt, Int(7))
	require.NoError(t, err)

	_, ok := b.Lookup(b.VarName(c))
	assert.False(t, ok)

	// A user variable may take any name a constant could have had.
	v, err := b.NewVar("C_0", TypeInt)
	require.NoError(t, err)
	assert.NotEqual(t, c, v)

	b.Truncate(1)
	_, ok = b.Lookup("C_0")
	assert.False(t, ok)
	assert.Equal(t, Int(7), b.ConstValue(c))
}

func TestAllocationFailsWhenArenaExhausted(t *testing.T) {
	b := NewBlock("user.main")
	b.MaxVars = 2

	_, err := b.NewTmp(TypeInt)
	require.NoError(t, err)
	_, err = b.NewConst(TypeInt, Int(1))
	require.NoError(t, err)

	_, err = b.NewTmp(TypeInt)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutOfMemory))
	assert.Equal(t, 2, b.NumVars())
}

func TestTruncateRollsBackAllocations(t *testing.T) {
	b := NewBlock("user.main")
	_, err := b.NewVar("A", TypeInt)
	require.NoError(t, err)
	mark := b.NumVars()

	_, err = b.NewVar("B", TypeInt)
	require.NoError(t, err)
	b.Truncate(mark)

	assert.Equal(t, 1, b.NumVars())
	_, ok := b.Lookup("B")
	assert.False(t, ok)

	// The name is free again.
	_, err = b.NewVar("B", TypeInt)
	assert.NoError(t, err)
}

func TestCopyFreshAllocatesNewResults(t *testing.T) {
	b := NewBlock("user.main")
	col, _ := b.NewVar("C", TypeColumn)
	res, _ := b.NewVar("R", TypeLng)

	p := NewInstruction(ModAggr, FnSum).PushReturn(res).PushArg(col)
	q, err := b.CopyFresh(p)
	require.NoError(t, err)

	assert.NotEqual(t, res, q.Ret(0))
	assert.Equal(t, TypeLng, b.Type(q.Ret(0)))
	assert.Equal(t, col, q.Param(0))

	// Deep copy: mutating q leaves p alone.
	q.SetArg(1, res)
	assert.Equal(t, col, p.Param(0))
}

func TestInstructionArgumentEditing(t *testing.T) {
	p := NewInstruction(ModAlgebra, FnProjection)
	p.PushReturn(1)
	p.PushArg(2).PushArg(3).PushArg(2)

	assert.Equal(t, 1, p.Retc)
	assert.Equal(t, []VarID{2, 3, 2}, p.Params())

	n := p.ReplaceArg(2, 7)
	assert.Equal(t, 2, n)
	assert.Equal(t, []VarID{7, 3, 7}, p.Params())

	p.PushReturn(9)
	assert.Equal(t, []VarID{1, 9}, p.Results())
	assert.Equal(t, []VarID{7, 3, 7}, p.Params())

	p.DeleteArg(0)
	assert.Equal(t, 1, p.Retc)
	assert.Equal(t, []VarID{9, 7, 3, 7}, p.Args)

	p.InsertArg(2, 5)
	assert.Equal(t, []VarID{7, 5, 3, 7}, p.Params())
	assert.True(t, p.Uses(5))
	assert.True(t, p.Defines(9))
}

func TestApplied(t *testing.T) {
	b := NewBlock("user.main")
	assert.False(t, b.Applied("mitosis"))
	b.Annotate(Annotation{Pass: "mitosis", Actions: 2})
	assert.True(t, b.Applied("mitosis"))
}

func TestCloneIsDeep(t *testing.T) {
	b := NewBlock("user.main")
	x, _ := b.NewVar("X", TypeInt)
	y, _ := b.NewVar("Y", TypeInt)
	b.Append(NewAssignment(y, x))

	c := b.Clone()
	c.Instrs[0].SetArg(1, y)
	_, err := c.NewVar("Z", TypeInt)
	require.NoError(t, err)

	assert.Equal(t, x, b.Instrs[0].Param(0))
	assert.Equal(t, 2, b.NumVars())
	_, ok := c.Lookup("X")
	assert.True(t, ok)
}
