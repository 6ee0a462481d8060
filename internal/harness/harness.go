package harness

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/roach88/qopt/internal/check"
	"github.com/roach88/qopt/internal/eval"
	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/irtext"
	"github.com/roach88/qopt/internal/optimizer"
	"github.com/roach88/qopt/internal/passes"
)

// Harness runs scenarios with a deterministic clock and the validation
// oracle installed.
type Harness struct {
	logger *slog.Logger
}

// New returns a harness that logs pass activity to logger. A nil logger
// discards.
func New(logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Harness{logger: logger}
}

// Run executes a scenario with a silent harness.
func Run(scenario *Scenario) (*Result, error) {
	return New(nil).Run(scenario)
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Parse the plan and build the catalog from the scenario tables
// 2. Optimize a copy of the plan with the scenario's pipeline
// 3. Evaluate both copies
// 4. Check agreement and expectations
//
// An error means the scenario could not be executed; failed checks are
// reported in the result.
func (h *Harness) Run(scenario *Scenario) (*Result, error) {
	orig, err := irtext.Parse(scenario.Name, scenario.Plan)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	cat, err := buildCatalog(scenario.Tables)
	if err != nil {
		return nil, fmt.Errorf("failed to build tables: %w", err)
	}

	ctx := optimizer.NewContext()
	ctx.Logger = h.logger
	ctx.Catalog = cat
	if scenario.Partitions > 0 {
		ctx.Options.Partitions = scenario.Partitions
	}

	d := optimizer.NewDriver(passes.NewRegistry(), nil,
		optimizer.WithClock(optimizer.NewStepClock(time.Microsecond)),
		optimizer.WithValidator(check.Oracle{}),
		optimizer.WithLogger(h.logger),
	)

	opt := orig.Clone()
	rep, err := runPipeline(d, ctx, opt, scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to optimize: %w", err)
	}

	result := NewResult()
	result.Listing = opt.String()
	for _, run := range rep.Runs {
		result.Actions[run.Pass] += run.Actions
	}

	before, err := eval.Run(orig, cat)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate original plan: %w", err)
	}
	after, err := eval.Run(opt, cat)
	if err != nil {
		result.AddError(fmt.Sprintf("optimized plan does not evaluate: %v", err))
		return result, nil
	}

	for _, msg := range checkExpectations(scenario.Expect, opt, before, after, result) {
		result.AddError(msg)
	}
	return result, nil
}

func runPipeline(d *optimizer.Driver, ctx *optimizer.Context, b *ir.Block, s *Scenario) (optimizer.Report, error) {
	if s.Preset != "" {
		preset, ok := optimizer.ParsePreset(s.Preset)
		if !ok {
			return optimizer.Report{}, fmt.Errorf("unknown preset %q", s.Preset)
		}
		return d.RunPipeline(ctx, b, preset.Passes(b))
	}
	return d.RunPipelineNamed(ctx, b, s.Pipeline)
}

// buildCatalog converts YAML column values to constants.
func buildCatalog(tables map[string][]any) (eval.Catalog, error) {
	cat := make(eval.Catalog, len(tables))
	keys := make([]string, 0, len(tables))
	for k := range tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vals := make([]ir.Value, len(tables[k]))
		for i, raw := range tables[k] {
			v, err := toValue(raw)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", k, i, err)
			}
			vals[i] = v
		}
		cat[k] = vals
	}
	return cat, nil
}

// toValue converts a decoded YAML scalar to a constant.
func toValue(raw any) (ir.Value, error) {
	switch v := raw.(type) {
	case nil:
		return ir.Nil{}, nil
	case int:
		return ir.Int(v), nil
	case int64:
		return ir.Int(v), nil
	case uint64:
		return ir.Int(int64(v)), nil
	case float64:
		return ir.Dbl(v), nil
	case string:
		return ir.Str(v), nil
	case bool:
		return ir.Bit(v), nil
	default:
		return nil, fmt.Errorf("unsupported value %v (%T)", raw, raw)
	}
}

// toDatum converts an expected result: lists become columns.
func toDatum(raw any) (eval.Datum, error) {
	list, ok := raw.([]any)
	if !ok {
		return toValue(raw)
	}
	vals := make([]ir.Value, len(list))
	for i, x := range list {
		v, err := toValue(x)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		vals[i] = v
	}
	return eval.NewColumn(ir.KindAny, vals...), nil
}

// instrNames returns the "module.function" names used by b.
func instrNames(b *ir.Block) map[string]bool {
	names := make(map[string]bool)
	for _, p := range b.Instrs {
		if name := p.Name(); name != "" {
			names[name] = true
		}
	}
	return names
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func indent(s string) string {
	return "    " + strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n    ")
}
