package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(PassMitosis, countingPass(PassMitosis, 0)))
	require.NoError(t, reg.Register(PassInline, countingPass(PassInline, 0)))

	p, err := reg.Lookup("mitosis")
	require.NoError(t, err)
	assert.Equal(t, "mitosis", p.Name())

	_, ok := reg.Get(PassInline)
	assert.True(t, ok)
	_, ok = reg.Get(PassPostfix)
	assert.False(t, ok)

	assert.Equal(t, []string{"mitosis", "inline"}, reg.Names())
	assert.True(t, reg.Has("inline"))
	assert.Equal(t, 2, reg.Len())
}

func TestRegistry_Errors(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(PassMitosis, countingPass(PassMitosis, 0)))

	assert.Error(t, reg.Register(PassMitosis, countingPass(PassMitosis, 0)), "duplicate")
	assert.Error(t, reg.Register(PassInline, countingPass(PassMitosis, 0)), "name mismatch")

	_, err := reg.Lookup("Mitosis")
	assert.True(t, IsNotFound(err), "lookup is exact")
}

func TestPassID_String(t *testing.T) {
	assert.Equal(t, "mergetable", PassMergetable.String())
	assert.Equal(t, "pass(99)", PassID(99).String())

	id, ok := ParsePassID("commonterms")
	require.True(t, ok)
	assert.Equal(t, PassCommonterms, id)
	_, ok = ParsePassID("nope")
	assert.False(t, ok)
}
