package optimizer

import (
	"io"
	"log/slog"

	"github.com/roach88/qopt/internal/ir"
)

// Validator is the post-pass validation oracle. Each check returns a
// descriptive error when the block is invalid.
type Validator interface {
	TypeCheck(b *ir.Block) error
	FlowCheck(b *ir.Block) error
	DeclCheck(b *ir.Block) error
}

// PassRun describes one completed pass invocation.
type PassRun struct {
	Pass    string
	Actions int
	Usec    int64
}

// Recorder receives every completed pass invocation.
type Recorder interface {
	RecordPass(run PassRun) error
}

// Driver invokes passes by ID or name.
type Driver struct {
	registry  *Registry
	stats     *PipelineContext
	clock     Clock
	validator Validator
	recorder  Recorder
	logger    *slog.Logger
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithClock sets the clock used to time passes. Default: SystemClock.
func WithClock(c Clock) DriverOption {
	return func(d *Driver) { d.clock = c }
}

// WithValidator sets the validation oracle. Without one, rewritten blocks
// are not validated.
func WithValidator(v Validator) DriverOption {
	return func(d *Driver) { d.validator = v }
}

// WithRecorder sets a sink for completed pass invocations.
func WithRecorder(r Recorder) DriverOption {
	return func(d *Driver) { d.recorder = r }
}

// WithLogger sets the driver logger.
func WithLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) { d.logger = l }
}

// NewDriver creates a driver over reg. stats may be shared between
// drivers; a nil stats gets a private PipelineContext.
func NewDriver(reg *Registry, stats *PipelineContext, opts ...DriverOption) *Driver {
	if stats == nil {
		stats = NewPipelineContext(reg)
	}
	d := &Driver{
		registry: reg,
		stats:    stats,
		clock:    SystemClock{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the driver's pass registry.
func (d *Driver) Registry() *Registry { return d.registry }

// Stats returns the driver's statistics context.
func (d *Driver) Stats() *PipelineContext { return d.stats }

// Invoke runs the pass named by an "optimizer.<function>" request.
func (d *Driver) Invoke(ctx *Context, b *ir.Block, module, function string) (int, error) {
	if module != ir.ModOptimizer {
		return 0, NewNotFound(module + "." + function)
	}
	p, err := d.registry.Lookup(function)
	if err != nil {
		return 0, err
	}
	run, err := d.run(ctx, b, p, ir.NewInstruction(module, function))
	return run.Actions, err
}

// Run runs the builtin pass id.
func (d *Driver) Run(ctx *Context, b *ir.Block, id PassID) (int, error) {
	p, ok := d.registry.Get(id)
	if !ok {
		return 0, NewNotFound(id.String())
	}
	run, err := d.run(ctx, b, p, nil)
	return run.Actions, err
}

// RunNamed runs the pass registered under name.
func (d *Driver) RunNamed(ctx *Context, b *ir.Block, name string) (int, error) {
	p, err := d.registry.Lookup(name)
	if err != nil {
		return 0, err
	}
	run, err := d.run(ctx, b, p, nil)
	return run.Actions, err
}

func (d *Driver) run(ctx *Context, b *ir.Block, p Pass, call *ir.Instruction) (PassRun, error) {
	if ctx == nil {
		ctx = NewContext()
	}
	if ctx.Options.MaxVars > 0 {
		b.MaxVars = ctx.Options.MaxVars
	}
	name := p.Name()
	mark := b.NumVars()

	start := d.clock.Now()
	actions, err := p.Run(ctx, b, call)
	usec := d.clock.Now().Sub(start).Microseconds()

	d.stats.record(name, usec)
	run := PassRun{Pass: name, Actions: actions, Usec: usec}

	if err != nil {
		b.Truncate(mark)
		err = wrapPassError(name, err)
		d.logger.Error("pass failed", "pass", name, "error", err)
		return PassRun{Pass: name, Usec: usec}, err
	}

	if actions > 0 && d.validator != nil {
		if err := d.validate(name, b); err != nil {
			d.logger.Error("validation failed", "pass", name, "error", err)
			return run, err
		}
	}

	b.Annotate(ir.Annotation{Pass: name, Actions: actions, Usec: usec})
	d.logger.Debug("pass complete", "pass", name, "actions", actions, "usec", usec)

	if d.recorder != nil {
		if err := d.recorder.RecordPass(run); err != nil {
			d.logger.Warn("recording pass failed", "pass", name, "error", err)
		}
	}
	return run, nil
}

func (d *Driver) validate(pass string, b *ir.Block) error {
	checks := []struct {
		name string
		fn   func(*ir.Block) error
	}{
		{"type", d.validator.TypeCheck},
		{"flow", d.validator.FlowCheck},
		{"declaration", d.validator.DeclCheck},
	}
	for _, c := range checks {
		if err := c.fn(b); err != nil {
			return NewValidationError(pass, c.name, err)
		}
	}
	return nil
}

// Report lists the pass invocations of one pipeline run.
type Report struct {
	Runs []PassRun
}

// Actions returns the total actions reported by pass name.
func (r Report) Actions(pass string) int {
	n := 0
	for _, run := range r.Runs {
		if run.Pass == pass {
			n += run.Actions
		}
	}
	return n
}

// RunPipeline runs ids in order and stops at the first error.
func (d *Driver) RunPipeline(ctx *Context, b *ir.Block, ids []PassID) (Report, error) {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.String()
	}
	return d.RunPipelineNamed(ctx, b, names)
}

// RunPipelineNamed runs the named passes in order and stops at the first
// error.
func (d *Driver) RunPipelineNamed(ctx *Context, b *ir.Block, names []string) (Report, error) {
	var rep Report
	for _, name := range names {
		p, err := d.registry.Lookup(name)
		if err != nil {
			return rep, err
		}
		run, err := d.run(ctx, b, p, nil)
		if err != nil {
			return rep, err
		}
		rep.Runs = append(rep.Runs, run)
	}
	return rep, nil
}
