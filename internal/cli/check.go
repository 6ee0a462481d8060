package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/qopt/internal/check"
	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/irtext"
)

// CheckFailure is one rejected check.
type CheckFailure struct {
	Check   string `json:"check"`
	Message string `json:"message"`
}

// CheckResult is the JSON payload of the check command.
type CheckResult struct {
	Valid    bool           `json:"valid"`
	Failures []CheckFailure `json:"failures,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <plan>",
		Short: "Run the validation oracle on a plan",
		Long: `Run the type, flow and declaration checks on a plan without
optimizing it. Every check runs; each failure is reported.

Exit codes:
  0 - All checks passed
  1 - One or more checks failed
  2 - Command error (unreadable plan)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}
}

func runCheck(opts *RootOptions, planPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	b, err := irtext.ParseFile(planPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeParse, "failed to parse plan", err)
	}

	var oracle check.Oracle
	checks := []struct {
		name string
		fn   func(*ir.Block) error
	}{
		{"type", oracle.TypeCheck},
		{"flow", oracle.FlowCheck},
		{"declaration", oracle.DeclCheck},
	}
	result := CheckResult{Valid: true}
	for _, c := range checks {
		if err := c.fn(b); err != nil {
			result.Valid = false
			result.Failures = append(result.Failures, CheckFailure{Check: c.name, Message: err.Error()})
		}
	}

	if result.Valid {
		return formatter.Success(result, "✓ plan is valid\n")
	}
	if opts.Format == "json" {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: ErrCodeCheck, Message: "plan failed validation"},
		}); err != nil {
			return err
		}
	} else {
		for _, f := range result.Failures {
			fmt.Fprintf(cmd.OutOrStdout(), "✗ %s check: %s\n", f.Check, f.Message)
		}
	}
	return NewExitError(ExitFailure, "plan failed validation")
}
