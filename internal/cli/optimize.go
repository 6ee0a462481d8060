package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/irtext"
	"github.com/roach88/qopt/internal/optimizer"
	"github.com/roach88/qopt/internal/passes"
	"github.com/roach88/qopt/internal/store"
)

// OptimizeOptions holds flags for the optimize command.
type OptimizeOptions struct {
	*RootOptions
	Pipeline   string
	Passes     []string
	Partitions int
	Database   string
}

// PassResult is one pass invocation in JSON output.
type PassResult struct {
	Pass    string `json:"pass"`
	Actions int    `json:"actions"`
	Usec    int64  `json:"usec"`
}

// OptimizeResult is the JSON payload of the optimize command.
type OptimizeResult struct {
	Listing     string       `json:"listing"`
	Actions     []PassResult `json:"actions"`
	Fingerprint string       `json:"fingerprint"`
	Unit        string       `json:"unit,omitempty"`
}

// NewOptimizeCommand creates the optimize command.
func NewOptimizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OptimizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "optimize <plan>",
		Short: "Optimize a plan",
		Long: `Run a pipeline of passes over a plan and print the result.

The pipeline is a preset (minimal, default), a pipeline named in the
config file, or an explicit comma-separated pass list. Every pass that
changes the plan is followed by type, flow and declaration checks.

With --db, the input plan, the optimized plan and every pass run are
recorded in a SQLite database.

Examples:
  qopt optimize plan.mal
  qopt optimize --pipeline minimal plan.mal
  qopt optimize --passes mitosis,mergetable,deadcode --partitions 8 plan.mal
  qopt optimize --db runs.db --format json plan.mal`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Pipeline, "pipeline", string(optimizer.PresetDefault), "preset or configured pipeline")
	cmd.Flags().StringSliceVar(&opts.Passes, "passes", nil, "explicit pass list (overrides --pipeline)")
	cmd.Flags().IntVar(&opts.Partitions, "partitions", 0, "partitions per table (overrides config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")

	return cmd
}

func runOptimize(opts *OptimizeOptions, planPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	b, err := irtext.ParseFile(planPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeParse, "failed to parse plan", err)
	}

	cfg, err := loadConfig(opts.Config, passes.NewRegistry())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	names, err := resolvePipeline(cfg, opts.Pipeline, opts.Passes, b)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodePipeline, "failed to resolve pipeline", err)
	}

	stdCtx := cmd.Context()
	if stdCtx == nil {
		stdCtx = context.Background()
	}
	var (
		st    *store.Store
		unit  *store.Unit
		extra []optimizer.DriverOption
	)
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		if unit, err = st.BeginUnit(stdCtx, b); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to record unit", err)
		}
		if err := st.SavePlan(stdCtx, unit.ID, "input", b); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to save plan", err)
		}
		extra = append(extra, optimizer.WithRecorder(unit))
	}

	ctx := optimizer.NewContext()
	ctx.Logger = logger
	ctx.Options = cfg.Options()
	if cmd.Flags().Changed("partitions") {
		ctx.Options.Partitions = opts.Partitions
	}

	logger.Debug("optimizing", "plan", planPath, "pipeline", names, "partitions", ctx.Options.Partitions)
	d := newDriver(logger, extra...)
	rep, err := d.RunPipelineNamed(ctx, b, names)
	if err != nil {
		code, exit := ErrCodeOptimize, ExitFailure
		if optimizer.IsNotFound(err) {
			code, exit = ErrCodePipeline, ExitCommandError
		}
		return formatter.Fail(exit, code, "optimization failed", err)
	}

	result := OptimizeResult{
		Listing:     b.String(),
		Actions:     make([]PassResult, len(rep.Runs)),
		Fingerprint: ir.Fingerprint(b),
	}
	for i, run := range rep.Runs {
		result.Actions[i] = PassResult{Pass: run.Pass, Actions: run.Actions, Usec: run.Usec}
	}
	if unit != nil {
		if err := st.SavePlan(stdCtx, unit.ID, "optimized", b); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to save plan", err)
		}
		result.Unit = unit.ID
	}

	text := result.Listing
	if opts.Verbose {
		text += fmt.Sprintf("# fingerprint %s\n", result.Fingerprint)
	}
	return formatter.Success(result, text)
}
