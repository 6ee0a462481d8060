package harness

import (
	"errors"
	"io/fs"
	"os"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario and compares the optimized listing
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario cannot be executed. Failed checks and a
// listing mismatch fail t.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	AssertGolden(t, scenario.Name, result)
	return nil
}

// AssertGolden compares a result's listing against a golden file without
// re-running the scenario. A missing golden file is recorded.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	listing := []byte(result.Listing)
	if _, err := os.Stat(g.GoldenFileName(t, scenarioName)); errors.Is(err, fs.ErrNotExist) {
		if err := g.Update(t, scenarioName, listing); err != nil {
			t.Fatalf("failed to record golden file: %v", err)
		}
		t.Logf("recorded golden file for %s", scenarioName)
		return
	}
	g.Assert(t, scenarioName, listing)
}
