package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/qopt/internal/eval"
	"github.com/roach88/qopt/internal/ir"
)

// AssertionError is returned when an expectation fails.
// It includes the optimized listing to help debug the failure.
type AssertionError struct {
	Type     string // actions, results, contains, absent
	Expected string
	Actual   string
	Listing  string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Listing != "" {
		fmt.Fprintf(&buf, "\nOptimized plan:\n%s\n", indent(e.Listing))
	}
	return buf.String()
}

// checkExpectations evaluates every expectation in a fixed order and
// returns one message per failure. Evaluated results are recorded in
// result.
func checkExpectations(exp Expect, opt *ir.Block, before, after *eval.Env, result *Result) []string {
	var errs []string
	fail := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	for _, pass := range sortedKeys(exp.Actions) {
		fail(assertActions(pass, exp.Actions[pass], result))
	}
	for _, name := range sortedKeys(exp.Results) {
		fail(assertResult(name, exp.Results[name], before, after, result))
	}
	names := instrNames(opt)
	for _, op := range exp.Contains {
		if !names[op] {
			fail(&AssertionError{Type: "contains", Expected: op + " in plan", Actual: "not found", Listing: result.Listing})
		}
	}
	for _, op := range exp.Absent {
		if names[op] {
			fail(&AssertionError{Type: "absent", Expected: op + " not in plan", Actual: "found", Listing: result.Listing})
		}
	}
	return errs
}

func assertActions(pass string, want int, result *Result) error {
	got, ran := result.Actions[pass]
	if !ran {
		return &AssertionError{
			Type:     "actions",
			Expected: fmt.Sprintf("%d actions by %s", want, pass),
			Actual:   "pass not in pipeline",
		}
	}
	if got != want {
		return &AssertionError{
			Type:     "actions",
			Expected: fmt.Sprintf("%d actions by %s", want, pass),
			Actual:   fmt.Sprintf("%d actions", got),
			Listing:  result.Listing,
		}
	}
	return nil
}

// assertResult checks that name evaluates to the same value before and
// after optimization, and that the value is the expected one.
func assertResult(name string, raw any, before, after *eval.Env, result *Result) error {
	want, err := toDatum(raw)
	if err != nil {
		return fmt.Errorf("expect.results[%s]: %w", name, err)
	}
	orig, ok := before.Lookup(name)
	if !ok {
		return &AssertionError{Type: "results", Expected: name + " in original plan", Actual: "not defined"}
	}
	got, ok := after.Lookup(name)
	if !ok {
		return &AssertionError{Type: "results", Expected: name + " in optimized plan", Actual: "not defined", Listing: result.Listing}
	}
	result.Results[name] = eval.Format(got)

	if !eval.Equivalent(orig, got) {
		return &AssertionError{
			Type:     "results",
			Expected: fmt.Sprintf("%s = %s as in the original plan", name, eval.Format(orig)),
			Actual:   eval.Format(got),
			Listing:  result.Listing,
		}
	}
	if !eval.Equivalent(want, got) {
		return &AssertionError{
			Type:     "results",
			Expected: fmt.Sprintf("%s = %s", name, eval.Format(want)),
			Actual:   eval.Format(got),
		}
	}
	return nil
}
