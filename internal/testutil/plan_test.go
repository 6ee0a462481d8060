package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qopt/internal/eval"
	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/irtext"
	"github.com/roach88/qopt/internal/optimizer"
)

func TestSplit(t *testing.T) {
	want := `V_0:bat[:int] := sql.bind("sys", "t", "v", 0:int, 2:int);
V_1:bat[:int] := sql.bind("sys", "t", "v", 1:int, 2:int);
V:bat[:int] := mat.pack(V_0, V_1);
`
	assert.Equal(t, want, Split("V", "t", "v", "int", 2))

	b, err := irtext.Parse("user.main", Split("T", "t", "", "", 3))
	require.NoError(t, err)
	assert.Equal(t, []string{"sql.tid", "sql.tid", "sql.tid", "mat.pack"}, Names(b))
	assert.Equal(t, 3, Count(b, "sql.tid"))
}

func TestSplitEvaluatesToWholeColumn(t *testing.T) {
	cat := eval.Catalog{"sys.t.v": Ints(5, 1, 9, 2, 8, 3)}
	b := irtext.MustParse(Split("V", "t", "v", "int", 4))
	whole := irtext.MustParse(`V:bat[:int] := sql.bind("sys", "t", "v");`)

	SameResults(t, cat, whole, b, "V")
	assert.Equal(t, Ints(5, 1, 9, 2, 8, 3), eval.Values(Value(t, b, cat, "V")))
}

func TestStepDriver(t *testing.T) {
	reg := optimizer.NewRegistry()
	reg.MustRegister(optimizer.PassPostfix, optimizer.PassFunc{
		PassName: "postfix",
		Fn:       func(*optimizer.Context, *ir.Block, *ir.Instruction) (int, error) { return 0, nil },
	})
	b := irtext.MustParse("noop;\n")

	_, err := StepDriver(reg).RunNamed(nil, b, "postfix")
	require.NoError(t, err)
	require.Len(t, b.History, 1)
	assert.Equal(t, int64(1), b.History[0].Usec)
}
