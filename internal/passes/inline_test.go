package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qopt/internal/eval"
	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/irtext"
	"github.com/roach88/qopt/internal/optimizer"
)

// library returns user.sq(A) = A*A + 1 and user.opaque, which is not
// marked for inlining.
func library(t *testing.T) map[string]*optimizer.Function {
	t.Helper()
	sq, err := irtext.Parse("user.sq", `
Y:int := calc.*(A:int, A);
Z:int := calc.+(Y, 1:int);
return Z;
end user.sq;
`)
	require.NoError(t, err)
	a, ok := sq.Lookup("A")
	require.True(t, ok)
	sq.Params = []ir.VarID{a}
	return map[string]*optimizer.Function{
		"user.sq":     {Block: sq, Inline: true},
		"user.opaque": {Block: sq},
	}
}

func TestInline(t *testing.T) {
	ctx := optimizer.NewContext()
	ctx.Library = library(t)
	_, opt, actions := apply(t, Inline, ctx, `
X_1:int := user.sq(3:int);
X_2:int := user.sq(X_1);
X_3:int := user.opaque(X_1);
`)
	assert.Equal(t, 2, actions)
	assert.Equal(t, []string{"calc.*", "calc.+", "", "calc.*", "calc.+", "", "user.opaque"}, names(opt))

	opt.Instrs = opt.Instrs[:6]
	env, err := eval.Run(opt, nil)
	require.NoError(t, err)
	x1, _ := env.Lookup("X_1")
	x2, _ := env.Lookup("X_2")
	assert.Equal(t, ir.Int(10), x1)
	assert.Equal(t, ir.Int(101), x2)
}

func TestInlineWithoutLibrary(t *testing.T) {
	_, opt, actions := apply(t, Inline, nil, "X_1:int := user.sq(3:int);\n")
	assert.Equal(t, 0, actions)
	assert.Equal(t, "user.sq", opt.Instrs[0].Name())
}

func TestInlineArityMismatch(t *testing.T) {
	ctx := optimizer.NewContext()
	ctx.Library = library(t)
	b := irtext.MustParse("X_1:int := user.sq(3:int, 4:int);\n")
	orig := b.Clone()

	_, err := Inline.Run(ctx, b, nil)
	require.Error(t, err)
	assert.True(t, optimizer.IsMalformed(err))
	assert.Equal(t, orig.Listing(), b.Listing())
	assert.Equal(t, orig.NumVars(), b.NumVars())
}
