package mergetable

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qopt/internal/eval"
	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/irtext"
	"github.com/roach88/qopt/internal/optimizer"
	"github.com/roach88/qopt/internal/partition"
	"github.com/roach88/qopt/internal/testutil"
)

var (
	ints        = testutil.Ints
	split       = testutil.Split
	value       = testutil.Value
	count       = testutil.Count
	sameResults = testutil.SameResults
)

// tables holds a six-row table t split in two by the plans below.
var tables = eval.Catalog{
	"sys.t.a": ints(1, 2, 3, 4, 5, 6),
	"sys.t.v": ints(5, 1, 9, 2, 8, 3),
	"sys.t.k": ints(1, 2, 1, 2, 3, 1),
	"sys.t.c": ints(7, 7, 7, 8, 8, 7),
	"sys.u.b": ints(9, 4, 2),
}

// rewrite parses src and returns it together with a mergetable-rewritten
// copy and the number of actions.
func rewrite(t *testing.T, src string) (orig, opt *ir.Block, actions int) {
	t.Helper()
	orig = irtext.MustParse(src + "optimizer.mitosis();\n")
	opt = orig.Clone()
	actions, err := New().Run(optimizer.NewContext(), opt, nil)
	require.NoError(t, err)
	return orig, opt, actions
}

func TestAggregates(t *testing.T) {
	tests := []struct {
		name string
		stmt string
		want ir.Value
	}{
		{"sum", "R:lng := aggr.sum(A);", ir.Int(21)},
		{"count", "R:lng := aggr.count(A);", ir.Int(6)},
		{"min", "R:int := aggr.min(A);", ir.Int(1)},
		{"max", "R:int := aggr.max(A);", ir.Int(6)},
		{"avg", "R:dbl := aggr.avg(A);", ir.Dbl(3.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig, opt, actions := rewrite(t, split("A", "t", "a", "int", 2)+tt.stmt+"\n")
			assert.Equal(t, 1, actions)
			assert.Equal(t, tt.want, value(t, orig, tables, "R"))
			assert.Equal(t, tt.want, value(t, opt, tables, "R"))
		})
	}
}

func TestAggregateTwoPhase(t *testing.T) {
	_, opt, _ := rewrite(t, split("A", "t", "a", "int", 2)+"R:lng := aggr.sum(A);\n")
	assert.Equal(t, 3, count(opt, "aggr.sum"))
	assert.Equal(t, 1, count(opt, "algebra.selectNotNil"))

	last := opt.Instrs[len(opt.Instrs)-1]
	assert.Equal(t, "aggr.sum", last.Name())
	r, _ := opt.Lookup("R")
	assert.Equal(t, r, last.Ret(0))
}

func TestTopN(t *testing.T) {
	orig, opt, actions := rewrite(t, split("V", "t", "v", "int", 2)+`
O:bat[:oid] := algebra.firstn(V, 2:lng, false, true, false);
R:bat[:int] := algebra.projection(O, V);
language.pass(R);
`)
	assert.Equal(t, 2, actions)
	// two partial top-2s and one over their union
	assert.Equal(t, 3, count(opt, "algebra.firstn"))

	assert.Equal(t, ints(2, 4), eval.Values(value(t, orig, tables, "O")))
	assert.Equal(t, ints(2, 4), eval.Values(value(t, opt, tables, "O")))
	assert.Equal(t, ints(9, 8), eval.Values(value(t, opt, tables, "R")))
}

func TestTopNTies(t *testing.T) {
	cat := eval.Catalog{"sys.t.v": ints(4, 7, 7, 1, 7, 2)}
	orig, opt, _ := rewrite(t, split("V", "t", "v", "int", 2)+`
O:bat[:oid] := algebra.firstn(V, 2:lng, false, true, false);
`)
	assert.Equal(t, ints(1, 2, 4), eval.Values(value(t, orig, cat, "O")))
	assert.Equal(t, ints(1, 2, 4), eval.Values(value(t, opt, cat, "O")))
}

func TestTopNTwoKeys(t *testing.T) {
	orig, opt, actions := rewrite(t, split("K", "t", "k", "int", 2)+split("V", "t", "v", "int", 2)+`
(O_1:bat[:oid], G_1:bat[:oid]) := algebra.firstn(K, 2:lng, true, true, false);
O_2:bat[:oid] := algebra.firstn(V, O_1, G_1, 2:lng, false, true, false);
R:bat[:int] := algebra.projection(O_2, V);
language.pass(R);
`)
	assert.Equal(t, 3, actions)
	assert.Equal(t, ints(2, 0), eval.Values(value(t, orig, tables, "O_2")))
	assert.Equal(t, ints(2, 0), eval.Values(value(t, opt, tables, "O_2")))
	assert.Equal(t, ints(9, 5), eval.Values(value(t, opt, tables, "R")))
}

func TestSlice(t *testing.T) {
	orig, opt, actions := rewrite(t, split("V", "t", "v", "int", 2)+`
R:bat[:int] := algebra.slice(V, 1:lng, 3:lng);
`)
	assert.Equal(t, 1, actions)
	assert.Equal(t, 3, count(opt, "algebra.slice"))
	assert.Equal(t, ints(1, 9, 2), eval.Values(value(t, orig, tables, "R")))
	assert.Equal(t, ints(1, 9, 2), eval.Values(value(t, opt, tables, "R")))
}

func TestJoinPruning(t *testing.T) {
	src := split("T", "t", "", "", 2) + split("A", "t", "a", "int", 2) + `
S:bat[:oid] := algebra.thetaselect(A, T, 2:int, ">");
(L:bat[:oid], R:bat[:oid]) := algebra.join(S, T, nil:bat[:oid], nil:bat[:oid], false, nil:lng);
X:bat[:oid] := algebra.projection(L, S);
Y:bat[:int] := algebra.projection(R, A);
language.pass(X);
language.pass(Y);
`
	orig, opt, actions := rewrite(t, src)
	assert.Equal(t, 4, actions)
	// row ids of partition k only match the row ids of partition k
	assert.Equal(t, 2, count(opt, "algebra.join"))
	sameResults(t, tables, orig, opt, "X", "Y")
	assert.Equal(t, ints(3, 4, 5, 6), eval.Values(value(t, opt, tables, "Y")))
}

func TestJoinAllPairs(t *testing.T) {
	src := split("A", "t", "a", "int", 2) + split("K", "t", "k", "int", 2) + `
(L:bat[:oid], R:bat[:oid]) := algebra.join(A, K, nil:bat[:oid], nil:bat[:oid], false, nil:lng);
X:bat[:int] := algebra.projection(L, A);
language.pass(X);
`
	orig, opt, _ := rewrite(t, src)
	// values of two binds carry no partition information
	assert.Equal(t, 4, count(opt, "algebra.join"))
	sameResults(t, tables, orig, opt, "X")
}

func TestJoinFamily(t *testing.T) {
	cat := eval.Catalog{"sys.w.x": ints(2, 3, 5, 1), "sys.w.y": ints(2, 1, 1, 2)}
	for k, v := range tables {
		cat[k] = v
	}
	whole := `B:bat[:int] := sql.bind("sys", "u", "b");
`
	tests := []struct {
		name   string
		src    string
		joins  string
		splits int
		names  []string
	}{
		{
			name: "join with one side split",
			src: split("A", "t", "a", "int", 2) + whole + `
(L:bat[:oid], R:bat[:oid]) := algebra.join(A, B, nil:bat[:oid], nil:bat[:oid], false, nil:lng);
X:bat[:int] := algebra.projection(L, A);
Y:bat[:int] := algebra.projection(R, B);
`,
			joins: "algebra.join", splits: 2, names: []string{"X", "Y"},
		},
		{
			name: "leftjoin",
			src: split("A", "t", "a", "int", 2) + whole + `
(L:bat[:oid], R:bat[:oid]) := algebra.leftjoin(A, B, nil:bat[:oid], nil:bat[:oid], false, nil:lng);
X:bat[:int] := algebra.projection(L, A);
Y:bat[:int] := algebra.projection(R, B);
`,
			joins: "algebra.leftjoin", splits: 2, names: []string{"X", "Y"},
		},
		{
			name: "crossproduct with one side split",
			src: split("A", "t", "a", "int", 3) + whole + `
(L:bat[:oid], R:bat[:oid]) := algebra.crossproduct(A, B, nil:bat[:oid], nil:bat[:oid], false);
X:bat[:int] := algebra.projection(L, A);
Y:bat[:int] := algebra.projection(R, B);
`,
			joins: "algebra.crossproduct", splits: 3, names: []string{"X", "Y"},
		},
		{
			name: "crossproduct with both sides split",
			src: split("A", "t", "a", "int", 2) + split("W", "w", "x", "int", 2) + `
(L:bat[:oid], R:bat[:oid]) := algebra.crossproduct(A, W, nil:bat[:oid], nil:bat[:oid], false);
X:bat[:int] := algebra.projection(L, A);
Y:bat[:int] := algebra.projection(R, W);
`,
			joins: "algebra.crossproduct", splits: 4, names: []string{"X", "Y"},
		},
		{
			name: "rangejoin",
			src: split("A", "t", "a", "int", 2) + whole + `
H:bat[:int] := batcalc.+(A, 2:int);
(L:bat[:oid], R:bat[:oid]) := algebra.rangejoin(B, A, H, nil:bat[:oid], nil:bat[:oid], true, false, false, false, nil:lng);
X:bat[:int] := algebra.projection(L, B);
Y:bat[:int] := algebra.projection(R, A);
`,
			joins: "algebra.rangejoin", splits: 2, names: []string{"X", "Y"},
		},
		{
			name: "join over column pairs",
			src: split("A", "t", "a", "int", 2) + split("K", "t", "k", "int", 2) +
				split("W", "w", "x", "int", 2) + split("Z", "w", "y", "int", 2) + `
(L:bat[:oid], R:bat[:oid]) := algebra.join(A, K, W, Z, nil:bat[:oid], nil:bat[:oid], false, nil:lng);
X:bat[:int] := algebra.projection(L, A);
Y:bat[:int] := algebra.projection(R, W);
`,
			joins: "algebra.join", splits: 4, names: []string{"X", "Y"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig, opt, actions := rewrite(t, tt.src)
			assert.Positive(t, actions)
			assert.Equal(t, tt.splits, count(opt, tt.joins))
			sameResults(t, cat, orig, opt, tt.names...)
		})
	}
}

func TestJoinOverColumnPairsValues(t *testing.T) {
	cat := eval.Catalog{"sys.w.x": ints(2, 3, 5, 1), "sys.w.y": ints(2, 1, 1, 2)}
	for k, v := range tables {
		cat[k] = v
	}
	_, opt, _ := rewrite(t, split("A", "t", "a", "int", 2)+split("K", "t", "k", "int", 2)+
		split("W", "w", "x", "int", 2)+split("Z", "w", "y", "int", 2)+`
(L:bat[:oid], R:bat[:oid]) := algebra.join(A, K, W, Z, nil:bat[:oid], nil:bat[:oid], false, nil:lng);
`)
	// (a, k) = (2, 2) and (3, 1) appear in w as rows 0 and 1
	assert.Equal(t, ints(1, 2), eval.Values(value(t, opt, cat, "L")))
	assert.Equal(t, ints(0, 1), eval.Values(value(t, opt, cat, "R")))
}

func TestDelta(t *testing.T) {
	updates := `B:bat[:int] := sql.bind("sys", "u", "b");
U:bat[:oid] := algebra.thetaselect(B, nil:bat[:oid], 3:int, ">");
V:bat[:int] := algebra.projection(U, B);
`
	tests := []struct {
		name string
		stmt string
		op   string
		want []ir.Value
	}{
		{"delta", "R:bat[:int] := sql.delta(A, U, V);", "sql.delta", ints(9, 4, 3, 4, 5, 6)},
		{"delta without updates", "R:bat[:int] := sql.delta(A, nil:bat[:oid], nil:bat[:int]);", "sql.delta", ints(1, 2, 3, 4, 5, 6)},
		{"projectdelta", "S:bat[:oid] := algebra.thetaselect(A, T, 1:int, \">\");\nR:bat[:int] := sql.projectdelta(S, A, U, V);", "sql.projectdelta", ints(4, 3, 4, 5, 6)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := split("T", "t", "", "", 2) + split("A", "t", "a", "int", 2) + updates + tt.stmt + "\n"
			orig, opt, actions := rewrite(t, src)
			assert.Positive(t, actions)
			// the updates are whole and go to every partition
			assert.Equal(t, 2, count(opt, tt.op))
			sameResults(t, tables, orig, opt, "R")
			assert.Equal(t, tt.want, eval.Values(value(t, opt, tables, "R")))
		})
	}
}

func TestGroupBy(t *testing.T) {
	src := split("K", "t", "k", "int", 2) + split("A", "t", "a", "int", 2) + `
(G:bat[:oid], E:bat[:oid], C:bat[:lng]) := group.groupdone(K);
S:bat[:lng] := aggr.subsum(A, G, E, true);
M:bat[:int] := aggr.submax(A, G, E, true);
N:bat[:int] := algebra.projection(E, K);
language.pass(S);
language.pass(M);
language.pass(N);
language.pass(C);
`
	orig, opt, _ := rewrite(t, src)
	assert.Equal(t, 3, count(opt, "group.groupdone"), "two partial group-bys and one over their representatives")
	sameResults(t, tables, orig, opt, "S", "M", "N", "C")
	assert.Equal(t, ints(10, 6, 5), eval.Values(value(t, opt, tables, "S")))
	assert.Equal(t, ints(1, 2, 3), eval.Values(value(t, opt, tables, "N")))
	assert.Equal(t, ints(3, 2, 1), eval.Values(value(t, opt, tables, "C")))
}

func TestSubgroup(t *testing.T) {
	src := split("K", "t", "k", "int", 2) + split("C", "t", "c", "int", 2) + `
(G_1:bat[:oid], E_1:bat[:oid], H_1:bat[:lng]) := group.group(K);
(G_2:bat[:oid], E_2:bat[:oid], H_2:bat[:lng]) := group.subgroupdone(C, G_1);
N:bat[:lng] := aggr.subcount(C, G_2, E_2, false);
P:bat[:int] := algebra.projection(E_2, K);
Q:bat[:int] := algebra.projection(E_2, C);
language.pass(N);
language.pass(P);
language.pass(Q);
`
	orig, opt, _ := rewrite(t, src)
	sameResults(t, tables, orig, opt, "N", "P", "Q")
	assert.Equal(t, ints(3, 1, 1, 1), eval.Values(value(t, opt, tables, "N")))
}

func TestPackedGroupsStayResolvable(t *testing.T) {
	b := irtext.MustParse(split("K", "t", "k", "int", 2) + `
(G:bat[:oid], E:bat[:oid], H:bat[:lng]) := group.groupdone(K);
optimizer.mitosis();
`)
	w := newRewriter(b, optimizer.NewContext().Log())
	for _, p := range b.Instrs {
		require.NoError(t, w.instruction(p))
	}

	g, _ := b.Lookup("G")
	e, _ := b.Lookup("E")
	gid := w.lookup(g, partition.Group)
	require.GreaterOrEqual(t, gid, 0)
	assert.GreaterOrEqual(t, w.lookup(e, partition.Extend), 0)
	assert.True(t, w.mats.Mat(gid).Pushed)
	assert.False(t, w.mats.Mat(gid).Packed)

	// packing again emits nothing
	n := len(w.out)
	require.NoError(t, w.pack(gid))
	require.NoError(t, w.pack(w.lookup(e, partition.Extend)))
	assert.Len(t, w.out, n)
}

func TestGroupedAverage(t *testing.T) {
	src := split("K", "t", "k", "int", 2) + split("A", "t", "a", "int", 2) + `
(G:bat[:oid], E:bat[:oid], H:bat[:lng]) := group.groupdone(K);
R:bat[:dbl] := aggr.subavg(A, G, E, true);
language.pass(R);
`
	orig, opt, _ := rewrite(t, src)
	sameResults(t, tables, orig, opt, "R")
	got := eval.Values(value(t, opt, tables, "R"))
	require.Len(t, got, 3)
	assert.InDelta(t, 10.0/3, float64(got[0].(ir.Dbl)), 1e-9)
	assert.InDelta(t, 3.0, float64(got[1].(ir.Dbl)), 1e-9)
	assert.InDelta(t, 5.0, float64(got[2].(ir.Dbl)), 1e-9)
}

func TestPerPartitionOperators(t *testing.T) {
	tests := []struct {
		name  string
		stmts string
		names []string
	}{
		{
			name:  "map",
			stmts: "R:bat[:int] := batcalc.*(V, 2:int);\nS:lng := aggr.sum(R);",
			names: []string{"R", "S"},
		},
		{
			name:  "multiplex",
			stmts: `R:bat[:int] := mal.multiplex("calc", "+", V, A);`,
			names: []string{"R"},
		},
		{
			name:  "identity",
			stmts: "R:bat[:oid] := batcalc.identity(V);",
			names: []string{"R"},
		},
		{
			name:  "mirror",
			stmts: "R:bat[:oid] := bat.mirror(V);",
			names: []string{"R"},
		},
		{
			name:  "select range",
			stmts: "R:bat[:oid] := algebra.select(V, nil:bat[:oid], 2:int, 8:int, true, true, false);",
			names: []string{"R"},
		},
		{
			name: "difference",
			stmts: `B:bat[:int] := sql.bind("sys", "u", "b");
R:bat[:oid] := algebra.difference(V, B, nil:bat[:oid], nil:bat[:oid], false, false, nil:lng);`,
			names: []string{"R"},
		},
		{
			name:  "assignment",
			stmts: "W:bat[:int] := V;\nR:int := aggr.max(W);",
			names: []string{"R"},
		},
		{
			name:  "project",
			stmts: "R:bat[:int] := algebra.project(V, 3:int);\nS:lng := aggr.sum(R);",
			names: []string{"S"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := split("V", "t", "v", "int", 2) + split("A", "t", "a", "int", 2) + tt.stmts + "\n"
			for _, n := range tt.names {
				src += "language.pass(" + n + ");\n"
			}
			orig, opt, actions := rewrite(t, src)
			assert.Positive(t, actions)
			sameResults(t, tables, orig, opt, tt.names...)
		})
	}
}

func TestIdentityNumbersAcrossPartitions(t *testing.T) {
	_, opt, _ := rewrite(t, split("V", "t", "v", "int", 3)+"R:bat[:oid] := batcalc.identity(V);\nlanguage.pass(R);\n")
	assert.Equal(t, ints(0, 1, 2, 3, 4, 5), eval.Values(value(t, opt, tables, "R")))
}

func TestBailouts(t *testing.T) {
	base := split("K", "t", "k", "int", 2) + split("A", "t", "a", "int", 2)
	tests := []struct {
		name string
		src  string
	}{
		{
			name: "selectNotNil",
			src:  base + "R:bat[:int] := algebra.selectNotNil(A);\nS:lng := aggr.sum(A);\n",
		},
		{
			name: "inequality thetajoin",
			src:  base + `(L:bat[:oid], R:bat[:oid]) := algebra.thetajoin(A, K, nil:bat[:oid], nil:bat[:oid], "!=", false, nil:lng);` + "\n",
		},
		{
			name: "inequality thetajoin code",
			src:  base + `(L:bat[:oid], R:bat[:oid]) := algebra.thetajoin(A, K, nil:bat[:oid], nil:bat[:oid], 6:int, false, nil:lng);` + "\n",
		},
		{
			name: "group input reused",
			src: base + `(G_1:bat[:oid], E_1:bat[:oid], H_1:bat[:lng]) := group.groupdone(K);
(G_2:bat[:oid], E_2:bat[:oid], H_2:bat[:lng]) := group.groupdone(K);
`,
		},
		{
			name: "group ids consumed",
			src: base + `(G:bat[:oid], E:bat[:oid], H:bat[:lng]) := group.groupdone(K);
S:lng := aggr.sum(A);
language.pass(G);
`,
		},
		{
			name: "extents consumed",
			src: base + `(G:bat[:oid], E:bat[:oid], H:bat[:lng]) := group.groupdone(K);
R:bat[:oid] := batcalc.+(E, 1:oid);
`,
		},
		{
			name: "intermediate top-n consumed",
			src: base + `(O:bat[:oid], G:bat[:oid]) := algebra.firstn(K, 2:lng, true, true, false);
language.pass(O);
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig, opt, actions := rewrite(t, tt.src)
			assert.Equal(t, 0, actions)
			assert.Equal(t, orig.String(), opt.String())
			assert.Equal(t, orig.NumVars(), opt.NumVars())
		})
	}
}

func TestNoMitosis(t *testing.T) {
	b := irtext.MustParse(split("A", "t", "a", "int", 2) + "R:lng := aggr.sum(A);\n")
	before := b.String()
	actions, err := New().Run(optimizer.NewContext(), b, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, actions)
	assert.Equal(t, before, b.String())
}

func TestNothingPartitioned(t *testing.T) {
	orig, opt, actions := rewrite(t, `
A:bat[:int] := sql.bind("sys", "t", "a");
R:lng := aggr.sum(A);
`)
	assert.Equal(t, 0, actions)
	assert.Equal(t, orig.String(), opt.String())
}

func TestGroupsDoneLeavesGroupBysWhole(t *testing.T) {
	src := split("K", "t", "k", "int", 2) + split("C", "t", "c", "int", 2) + `
(G_1:bat[:oid], E_1:bat[:oid], H_1:bat[:lng]) := group.groupdone(K);
(G_2:bat[:oid], E_2:bat[:oid], H_2:bat[:lng]) := group.subgroupdone(C, G_1);
N:bat[:lng] := aggr.subcount(C, G_2, E_2, false);
`
	orig, opt, _ := rewrite(t, src)
	assert.Equal(t, 1, count(opt, "group.groupdone"))
	assert.Equal(t, 1, count(opt, "group.subgroupdone"))
	sameResults(t, tables, orig, opt, "N")
}

func TestOutOfVariables(t *testing.T) {
	orig := irtext.MustParse(split("A", "t", "a", "int", 2) + "R:dbl := aggr.avg(A);\noptimizer.mitosis();\n")
	orig.MaxVars = orig.NumVars() + 2
	b := orig.Clone()
	_, err := New().Run(optimizer.NewContext(), b, nil)
	require.Error(t, err)
	assert.True(t, optimizer.IsOutOfMemory(err))
	assert.Equal(t, orig.String(), b.String())
	assert.Equal(t, orig.NumVars(), b.NumVars())
}

func TestClassify(t *testing.T) {
	base := split("K", "t", "k", "int", 2) + split("A", "t", "a", "int", 2) + split("T", "t", "", "", 2)
	tests := []struct {
		name string
		stmt string
		want shape
	}{
		{"select", "R:bat[:oid] := algebra.thetaselect(A, T, 1:int, \">\");", shapeSelect},
		{"select over whole table candidates", "X:bat[:oid] := sql.tid(\"sys\", \"t\");\nR:bat[:oid] := algebra.thetaselect(A, X, 1:int, \">\");", shapeSelect},
		{"aggregate", "R:lng := aggr.sum(A);", shapeAggr},
		{"join", "(L:bat[:oid], R:bat[:oid]) := algebra.join(A, K, nil:bat[:oid], nil:bat[:oid], false, nil:lng);", shapeJoin},
		{"join n by m", "(L:bat[:oid], R:bat[:oid]) := algebra.join(A, K, A, K, nil:bat[:oid], nil:bat[:oid], false, nil:lng);", shapeJoinNxM},
		{"leftjoin", "B:bat[:int] := sql.bind(\"sys\", \"u\", \"b\");\n(L:bat[:oid], R:bat[:oid]) := algebra.leftjoin(A, B, nil:bat[:oid], nil:bat[:oid], false, nil:lng);", shapeLeftJoin},
		{"crossproduct", "B:bat[:int] := sql.bind(\"sys\", \"u\", \"b\");\n(L:bat[:oid], R:bat[:oid]) := algebra.crossproduct(A, B, nil:bat[:oid], nil:bat[:oid], false);", shapeCrossproduct},
		{"top-n", "R:bat[:oid] := algebra.firstn(A, 3:lng, true, true, false);", shapeTopN},
		{"slice", "R:bat[:int] := algebra.slice(A, 0:lng, 2:lng);", shapeSlice},
		{"group", "(G:bat[:oid], E:bat[:oid], H:bat[:lng]) := group.group(K);", shapeGroupNew},
		{"projection", "R:bat[:int] := algebra.projection(T, A);", shapeProjection},
		{"setop", "R:bat[:oid] := algebra.intersect(A, K, nil:bat[:oid], nil:bat[:oid], false, false, nil:lng);", shapeSetOp},
		{"assign", "R:bat[:int] := A;", shapeAssign},
		{"delta", "R:bat[:int] := sql.delta(A, nil:bat[:oid], nil:bat[:int]);", shapeDelta},
		{"mirror", "R:bat[:oid] := bat.mirror(A);", shapeMirror},
		{"identity", "R:bat[:oid] := batcalc.identity(A);", shapeIdentity},
		{"map", "R:bat[:int] := batcalc.+(A, K);", shapeApply},
		{"window function", "R:bat[:int] := mal.multiplex(\"batsql\", \"rank\", A);", shapeMaterialize},
		{"unequal splits", "X:bat[:int] := mat.pack(A_0, A_1, K_0);\nR:bat[:int] := batcalc.+(A, X);", shapeMaterialize},
		{"scalar result", "R:int := calc.+(1:int, 2:int);\nS:bat[:int] := batcalc.+(A, R);", shapeApply},
		{"unknown operator", "R:bat[:int] := foo.bar(A);", shapeMaterialize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := irtext.MustParse(base + tt.stmt + "\noptimizer.mitosis();\n")
			w := newRewriter(b, optimizer.NewContext().Log())
			last := len(b.Instrs) - 1
			for _, p := range b.Instrs[:last] {
				require.NoError(t, w.instruction(p))
			}
			assert.Equal(t, tt.want, w.classify(b.Instrs[last]), "got %s", w.classify(b.Instrs[last]))
		})
	}
}

// TestRandomEquivalence checks that rewritten plans compute what the
// original computes, over random tables and partition counts.
func TestRandomEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for n := 1; n <= 5; n++ {
		for round := 0; round < 10; round++ {
			rows := 3 + rng.Intn(12)
			a := make([]ir.Value, rows)
			k := make([]ir.Value, rows)
			for i := range a {
				a[i] = ir.Int(rng.Intn(20))
				k[i] = ir.Int(rng.Intn(4))
			}
			cat := eval.Catalog{"sys.r.a": a, "sys.r.k": k}

			src := split("T", "r", "", "", n) + split("A", "r", "a", "int", n) + split("K", "r", "k", "int", n) + `
S:bat[:oid] := algebra.thetaselect(A, T, 7:int, ">");
VA:bat[:int] := algebra.projection(S, A);
VK:bat[:int] := algebra.projection(S, K);
(G:bat[:oid], E:bat[:oid], C:bat[:lng]) := group.groupdone(VK);
SUM:bat[:lng] := aggr.subsum(VA, G, E, true);
KEY:bat[:int] := algebra.projection(E, VK);
TOT:lng := aggr.sum(VA);
MAX:int := aggr.max(VA);
CNT:lng := aggr.count(VA);
AVG:dbl := aggr.avg(VA);
O:bat[:oid] := algebra.firstn(VA, 3:lng, false, true, false);
TOP:bat[:int] := algebra.projection(O, VA);
language.pass(SUM);
language.pass(KEY);
language.pass(C);
language.pass(TOP);
`
			t.Run(fmt.Sprintf("parts=%d/%d", n, round), func(t *testing.T) {
				orig, opt, _ := rewrite(t, src)
				sameResults(t, cat, orig, opt, "SUM", "KEY", "C", "TOT", "MAX", "CNT", "AVG", "TOP")
			})
		}
	}
}
