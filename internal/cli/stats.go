package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/qopt/internal/store"
)

// StatsResult is the JSON payload of the stats command.
type StatsResult struct {
	Units  []store.UnitInfo  `json:"units"`
	Totals []store.PassTotal `json:"totals"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show recorded pass statistics",
		Long: `Show per-pass totals recorded by "qopt optimize --db".

Example:
  qopt stats --db runs.db
  qopt stats --db runs.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(rootOpts, database, cmd)
		},
	}

	cmd.Flags().StringVar(&database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runStats(opts *RootOptions, database string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	// Opening would create an empty database.
	if _, err := os.Stat(database); os.IsNotExist(err) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", database), nil)
	}
	st, err := store.Open(database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	units, err := st.Units(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read units", err)
	}
	totals, err := st.PassTotals(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read totals", err)
	}

	rows := make([][]string, len(totals))
	for i, t := range totals {
		rows[i] = []string{
			t.Pass,
			strconv.FormatInt(t.Calls, 10),
			strconv.FormatInt(t.Actions, 10),
			usecString(t.Usec),
		}
	}
	text := fmt.Sprintf("%d unit(s)\n", len(units)) +
		formatTable([]string{"PASS", "CALLS", "ACTIONS", "TIME"}, rows)
	return formatter.Success(StatsResult{Units: units, Totals: totals}, text)
}
