package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qopt/internal/eval"
	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/optimizer"
)

// Ints returns integer constants.
func Ints(vs ...int64) []ir.Value {
	out := make([]ir.Value, len(vs))
	for i, v := range vs {
		out[i] = ir.Int(v)
	}
	return out
}

// Names returns the "module.function" of every instruction of b, with ""
// for assignments and statements.
func Names(b *ir.Block) []string {
	out := make([]string, len(b.Instrs))
	for i, p := range b.Instrs {
		out[i] = p.Name()
	}
	return out
}

// Count returns how many instructions of b call name.
func Count(b *ir.Block, name string) int {
	n := 0
	for _, p := range b.Instrs {
		if p.Name() == name {
			n++
		}
	}
	return n
}

// Split returns the mitosis form of schema sys column table.col in n
// parts packed into v. An empty col splits the table's row ids instead.
func Split(v, table, col, kind string, n int) string {
	var sb strings.Builder
	parts := make([]string, n)
	for k := range parts {
		parts[k] = fmt.Sprintf("%s_%d", v, k)
		if col == "" {
			fmt.Fprintf(&sb, "%s:bat[:oid] := sql.tid(\"sys\", %q, %d:int, %d:int);\n", parts[k], table, k, n)
			continue
		}
		fmt.Fprintf(&sb, "%s:bat[:%s] := sql.bind(\"sys\", %q, %q, %d:int, %d:int);\n", parts[k], kind, table, col, k, n)
	}
	typ := kind
	if col == "" {
		typ = "oid"
	}
	fmt.Fprintf(&sb, "%s:bat[:%s] := mat.pack(%s);\n", v, typ, strings.Join(parts, ", "))
	return sb.String()
}

// Value evaluates b over cat and returns the value of name.
func Value(t *testing.T, b *ir.Block, cat eval.Catalog, name string) eval.Datum {
	t.Helper()
	env, err := eval.Run(b, cat)
	require.NoError(t, err)
	d, ok := env.Lookup(name)
	require.True(t, ok, "plan lacks %s", name)
	return d
}

// SameResults evaluates both blocks over cat and checks that the named
// variables hold equivalent values.
func SameResults(t *testing.T, cat eval.Catalog, orig, opt *ir.Block, names ...string) {
	t.Helper()
	want, err := eval.Run(orig, cat)
	require.NoError(t, err)
	got, err := eval.Run(opt, cat)
	require.NoError(t, err, "rewritten plan:\n%s", opt)
	for _, name := range names {
		w, ok := want.Lookup(name)
		require.True(t, ok, "original plan lacks %s", name)
		g, ok := got.Lookup(name)
		require.True(t, ok, "rewritten plan lacks %s:\n%s", name, opt)
		assert.True(t, eval.Equivalent(w, g), "%s: want %s, got %s", name, eval.Format(w), eval.Format(g))
	}
}

// StepDriver returns a driver over reg whose pass timings advance by one
// microsecond per reading, so history annotations are reproducible.
func StepDriver(reg *optimizer.Registry, opts ...optimizer.DriverOption) *optimizer.Driver {
	opts = append([]optimizer.DriverOption{optimizer.WithClock(optimizer.NewStepClock(time.Microsecond))}, opts...)
	return optimizer.NewDriver(reg, nil, opts...)
}
