package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/qopt/internal/optimizer"
)

// Scenario defines an optimizer scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Partitions overrides the partition count used by mitosis.
	// Zero keeps the default.
	Partitions int `yaml:"partitions,omitempty"`

	// Pipeline lists the passes to run, in order.
	Pipeline []string `yaml:"pipeline,omitempty"`

	// Preset names a builtin pipeline. Exactly one of Pipeline and Preset
	// must be set.
	Preset string `yaml:"preset,omitempty"`

	// Tables maps "schema.table.column" to the column's values.
	Tables map[string][]any `yaml:"tables,omitempty"`

	// Plan is the plan text.
	Plan string `yaml:"plan"`

	Expect Expect `yaml:"expect"`
}

// Expect lists the checks run against the optimized plan.
type Expect struct {
	// Actions maps pass names to their expected total actions.
	Actions map[string]int `yaml:"actions,omitempty"`

	// Results maps variable names to expected values.
	Results map[string]any `yaml:"results,omitempty"`

	// Contains lists "module.function" names that must appear in the
	// optimized plan.
	Contains []string `yaml:"contains,omitempty"`

	// Absent lists "module.function" names that must not appear.
	Absent []string `yaml:"absent,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Reject unknown fields ("expects:" vs "expect:").
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the scenario files in dir, sorted by name.
func FindScenarios(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if strings.TrimSpace(s.Plan) == "" {
		return fmt.Errorf("plan is required")
	}
	if s.Partitions < 0 {
		return fmt.Errorf("partitions must be non-negative")
	}

	switch {
	case len(s.Pipeline) > 0 && s.Preset != "":
		return fmt.Errorf("pipeline and preset are mutually exclusive")
	case len(s.Pipeline) == 0 && s.Preset == "":
		return fmt.Errorf("pipeline or preset is required")
	case s.Preset != "" && !optimizer.IsPreset(s.Preset):
		return fmt.Errorf("unknown preset %q", s.Preset)
	}

	for key := range s.Tables {
		if strings.Count(key, ".") != 2 {
			return fmt.Errorf("tables: %q is not schema.table.column", key)
		}
	}
	for pass, n := range s.Expect.Actions {
		if n < 0 {
			return fmt.Errorf("expect.actions[%s]: must be non-negative", pass)
		}
	}
	return nil
}
