package config

import (
	"fmt"

	"github.com/roach88/qopt/internal/optimizer"
)

// Validation error codes (E100-E199)
const (
	ErrPartitions     = "E101" // partitions < 1
	ErrMaxVars        = "E102" // negative max_vars
	ErrUnknownPass    = "E103" // pipeline names an unregistered pass
	ErrEmptyPipeline  = "E104" // pipeline without passes
	ErrShadowedPreset = "E105" // pipeline name is a builtin preset
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks cfg. known reports whether a pass name is registered.
// Returns all errors found (does not fail-fast).
func Validate(cfg *Config, known func(string) bool) []ValidationError {
	var errs []ValidationError

	if cfg.Partitions < 1 {
		errs = append(errs, ValidationError{
			Field:   "partitions",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Partitions),
			Code:    ErrPartitions,
		})
	}
	if cfg.MaxVars < 0 {
		errs = append(errs, ValidationError{
			Field:   "max_vars",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.MaxVars),
			Code:    ErrMaxVars,
		})
	}

	for _, name := range cfg.PipelineNames() {
		field := "pipelines." + name
		line := 0
		if pos, ok := cfg.pos[name]; ok && pos.IsValid() {
			line = pos.Line()
		}
		if optimizer.IsPreset(name) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%q is a builtin preset", name),
				Code:    ErrShadowedPreset,
				Line:    line,
			})
		}
		passes := cfg.Pipelines[name]
		if len(passes) == 0 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "pipeline has no passes",
				Code:    ErrEmptyPipeline,
				Line:    line,
			})
		}
		for _, p := range passes {
			if !known(p) {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("unknown pass %q", p),
					Code:    ErrUnknownPass,
					Line:    line,
				})
			}
		}
	}
	return errs
}
