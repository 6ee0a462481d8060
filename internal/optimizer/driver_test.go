package optimizer

import (
	"fmt"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qopt/internal/ir"
)

// countingPass appends n noop instructions and reports n actions.
func countingPass(id PassID, n int) Pass {
	return PassFunc{PassName: id.String(), Fn: func(_ *Context, b *ir.Block, _ *ir.Instruction) (int, error) {
		for i := 0; i < n; i++ {
			b.Append(&ir.Instruction{Token: ir.TokNoop})
		}
		return n, nil
	}}
}

type fakeValidator struct {
	failCheck string
	calls     []string
}

func (v *fakeValidator) check(name string) error {
	v.calls = append(v.calls, name)
	if name == v.failCheck {
		return fmt.Errorf("%s check rejected block", name)
	}
	return nil
}

func (v *fakeValidator) TypeCheck(*ir.Block) error { return v.check("type") }
func (v *fakeValidator) FlowCheck(*ir.Block) error { return v.check("flow") }
func (v *fakeValidator) DeclCheck(*ir.Block) error { return v.check("declaration") }

type memRecorder struct {
	runs []PassRun
}

func (r *memRecorder) RecordPass(run PassRun) error {
	r.runs = append(r.runs, run)
	return nil
}

func newTestDriver(t *testing.T, opts ...DriverOption) *Driver {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register(PassInline, countingPass(PassInline, 0)))
	require.NoError(t, reg.Register(PassCoercion, countingPass(PassCoercion, 2)))
	require.NoError(t, reg.Register(PassDeadcode, countingPass(PassDeadcode, 1)))
	require.NoError(t, reg.Register(PassPostfix, countingPass(PassPostfix, 0)))
	opts = append([]DriverOption{WithClock(NewStepClock(5 * time.Microsecond))}, opts...)
	return NewDriver(reg, nil, opts...)
}

func TestDriver_AnnotatesBlock(t *testing.T) {
	d := newTestDriver(t)
	b := ir.NewBlock("user.main")

	n, err := d.Run(NewContext(), b, PassCoercion)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, b.History, 1)
	assert.Equal(t, "coercion             actions= 2 time=5 usec", b.History[0].String())
}

func TestDriver_Invoke(t *testing.T) {
	d := newTestDriver(t)
	b := ir.NewBlock("user.main")

	n, err := d.Invoke(nil, b, "optimizer", "deadcode")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = d.Invoke(nil, b, "optimizer", "nosuchpass")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	_, err = d.Invoke(nil, b, "algebra", "deadcode")
	assert.True(t, IsNotFound(err))
}

func TestDriver_ValidatesOnlyWhenActions(t *testing.T) {
	v := &fakeValidator{}
	d := newTestDriver(t, WithValidator(v))
	b := ir.NewBlock("user.main")

	_, err := d.Run(nil, b, PassInline)
	require.NoError(t, err)
	assert.Empty(t, v.calls)

	_, err = d.Run(nil, b, PassCoercion)
	require.NoError(t, err)
	assert.Equal(t, []string{"type", "flow", "declaration"}, v.calls)
}

func TestDriver_ValidationFailure(t *testing.T) {
	v := &fakeValidator{failCheck: "flow"}
	d := newTestDriver(t, WithValidator(v))
	b := ir.NewBlock("user.main")

	_, err := d.Run(nil, b, PassCoercion)
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	var oe *OptimizerError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, "coercion", oe.Pass)
	assert.Equal(t, "flow", oe.Check)
	assert.Contains(t, oe.Message, "flow check rejected block")

	// The rewritten block stays in place; no annotation is added.
	assert.Len(t, b.Instrs, 2)
	assert.Empty(t, b.History)
	assert.Equal(t, []string{"type", "flow"}, v.calls)
}

func TestDriver_PassErrorRollsBackVariables(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(PassMergetable, PassFunc{PassName: "mergetable", Fn: func(_ *Context, b *ir.Block, _ *ir.Instruction) (int, error) {
		if _, err := b.NewTmp(ir.TypeInt); err != nil {
			return 0, err
		}
		_, err := b.NewTmp(ir.TypeInt)
		return 0, err
	}})
	d := NewDriver(reg, nil)

	b := ir.NewBlock("user.main")
	b.MaxVars = 1
	_, err := d.Run(nil, b, PassMergetable)
	require.Error(t, err)
	assert.True(t, IsOutOfMemory(err))
	assert.Equal(t, 0, b.NumVars())

	var oe *OptimizerError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, ErrCodeOutOfMemory, oe.Code)
	assert.Equal(t, "mergetable", oe.Pass)
}

func TestDriver_AppliesVariableLimit(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(PassMitosis, PassFunc{PassName: "mitosis", Fn: func(_ *Context, b *ir.Block, _ *ir.Instruction) (int, error) {
		for i := 0; i < 3; i++ {
			if _, err := b.NewTmp(ir.TypeInt); err != nil {
				return 0, err
			}
		}
		return 0, nil
	}})
	d := NewDriver(reg, nil)

	ctx := NewContext()
	ctx.Options.MaxVars = 2
	b := ir.NewBlock("user.main")
	_, err := d.Run(ctx, b, PassMitosis)
	require.Error(t, err)
	assert.True(t, IsOutOfMemory(err))
	assert.Equal(t, 2, b.MaxVars)
	assert.Equal(t, 0, b.NumVars())

	// No limit configured leaves the block's own bound alone.
	b = ir.NewBlock("user.main")
	_, err = d.Run(NewContext(), b, PassMitosis)
	require.NoError(t, err)
	assert.Equal(t, 3, b.NumVars())
}

func TestDriver_MalformedKeepsCode(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(PassMergetable, PassFunc{PassName: "mergetable", Fn: func(*Context, *ir.Block, *ir.Instruction) (int, error) {
		return 0, NewMalformed(ir.NewInstruction(ir.ModAlgebra, ir.FnJoin), "no grouped operand")
	}})
	d := NewDriver(reg, nil)

	_, err := d.Run(nil, ir.NewBlock("user.main"), PassMergetable)
	require.Error(t, err)
	assert.True(t, IsMalformed(err))
	assert.Contains(t, err.Error(), "op=algebra.join")
	assert.Contains(t, err.Error(), "pass=mergetable")
}

func TestDriver_StatisticsInRegistrationOrder(t *testing.T) {
	d := newTestDriver(t)
	b := ir.NewBlock("user.main")

	for i := 0; i < 3; i++ {
		_, err := d.Run(nil, b, PassDeadcode)
		require.NoError(t, err)
	}
	_, err := d.Run(nil, b, PassInline)
	require.NoError(t, err)

	names, calls, usecs := d.Stats().Statistics()
	assert.Equal(t, []string{"inline", "coercion", "deadcode", "postfix"}, names)
	assert.Equal(t, []int{1, 0, 3, 0}, calls)
	assert.Equal(t, []int64{5, 0, 15, 0}, usecs)

	d.Stats().Reset()
	_, calls, _ = d.Stats().Statistics()
	assert.Equal(t, []int{0, 0, 0, 0}, calls)
}

func TestDriver_SharedStatistics(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(PassPostfix, countingPass(PassPostfix, 0))
	stats := NewPipelineContext(reg)

	a := NewDriver(reg, stats)
	b := NewDriver(reg, stats)
	_, err := a.Run(nil, ir.NewBlock("a"), PassPostfix)
	require.NoError(t, err)
	_, err = b.Run(nil, ir.NewBlock("b"), PassPostfix)
	require.NoError(t, err)

	_, calls, _ := stats.Statistics()
	assert.Equal(t, []int{2}, calls)
}

func TestDriver_RunPipeline(t *testing.T) {
	rec := &memRecorder{}
	d := newTestDriver(t, WithRecorder(rec))
	b := ir.NewBlock("user.main")

	rep, err := d.RunPipeline(nil, b, PresetMinimal.Passes(b))
	require.NoError(t, err)
	require.Len(t, rep.Runs, 4)
	assert.Equal(t, 2, rep.Actions("coercion"))
	assert.Equal(t, 1, rep.Actions("deadcode"))
	assert.Len(t, b.History, 4)
	assert.Equal(t, rep.Runs, rec.runs)
}

func TestDriver_RunPipelineStopsAtFirstError(t *testing.T) {
	d := newTestDriver(t)
	b := ir.NewBlock("user.main")

	rep, err := d.RunPipelineNamed(nil, b, []string{"inline", "missing", "coercion"})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Len(t, rep.Runs, 1)
	assert.Empty(t, b.Instrs, "coercion never ran")
}
