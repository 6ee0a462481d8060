package harness

// Result is the outcome of running a scenario.
type Result struct {
	// Passed is true when the optimized plan agrees with the original and
	// every expectation holds.
	Passed bool `json:"passed"`

	// Errors describes each failed check. Empty if Passed is true.
	Errors []string `json:"errors,omitempty"`

	// Listing is the optimized plan with its pass history.
	Listing string `json:"listing"`

	// Actions maps each pass of the pipeline to its total actions.
	Actions map[string]int `json:"actions"`

	// Results holds the evaluated value of every expected result variable,
	// formatted for display.
	Results map[string]string `json:"results,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Passed:  true,
		Errors:  []string{},
		Actions: make(map[string]int),
		Results: make(map[string]string),
	}
}

// AddError records a failed check and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Passed = false
}
