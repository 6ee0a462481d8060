package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/qopt/internal/irtext"
	"github.com/roach88/qopt/internal/optimizer"
)

// PassStat is one row of the passes command.
type PassStat struct {
	Name  string `json:"name"`
	Calls int    `json:"calls"`
	Usec  int64  `json:"usec"`
}

// NewPassesCommand creates the passes command.
func NewPassesCommand(rootOpts *RootOptions) *cobra.Command {
	var pipeline string

	cmd := &cobra.Command{
		Use:   "passes [plan...]",
		Short: "List optimizer passes",
		Long: `List the registered passes in registration order with their
invocation counts and cumulative time.

Without arguments the counters are zero. Each plan argument is optimized
with --pipeline first, so the counters cover those runs.

Examples:
  qopt passes
  qopt passes --pipeline minimal q1.mal q2.mal`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPasses(rootOpts, pipeline, args, cmd)
		},
	}

	cmd.Flags().StringVar(&pipeline, "pipeline", string(optimizer.PresetDefault), "preset or configured pipeline for plan arguments")

	return cmd
}

func runPasses(opts *RootOptions, pipeline string, plans []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	d := newDriver(logger)

	cfg, err := loadConfig(opts.Config, d.Registry())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}

	for _, path := range plans {
		b, err := irtext.ParseFile(path)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeParse, "failed to parse plan", err)
		}
		names, err := resolvePipeline(cfg, pipeline, nil, b)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodePipeline, "failed to resolve pipeline", err)
		}
		ctx := optimizer.NewContext()
		ctx.Logger = logger
		ctx.Options = cfg.Options()
		if _, err := d.RunPipelineNamed(ctx, b, names); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeOptimize, "optimization of "+path+" failed", err)
		}
	}

	names, calls, usecs := d.Stats().Statistics()
	stats := make([]PassStat, len(names))
	rows := make([][]string, len(names))
	for i := range names {
		stats[i] = PassStat{Name: names[i], Calls: calls[i], Usec: usecs[i]}
		rows[i] = []string{names[i], strconv.Itoa(calls[i]), usecString(usecs[i])}
	}
	return formatter.Success(stats, formatTable([]string{"PASS", "CALLS", "TIME"}, rows))
}
