package cli

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/qopt/internal/check"
	"github.com/roach88/qopt/internal/config"
	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/optimizer"
	"github.com/roach88/qopt/internal/passes"
)

// ConfigError lists the problems found in a config file.
type ConfigError struct {
	Errors []config.ValidationError
}

func (e *ConfigError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// loadConfig loads and validates the config at path against the passes of
// reg. An empty path yields the defaults.
func loadConfig(path string, reg *optimizer.Registry) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if errs := config.Validate(cfg, reg.Has); len(errs) > 0 {
		return nil, &ConfigError{Errors: errs}
	}
	return cfg, nil
}

// resolvePipeline returns the pass names to run on b. An explicit pass
// list wins over a pipeline name; a pipeline name is a preset or a
// pipeline from the config.
func resolvePipeline(cfg *config.Config, pipeline string, passList []string, b *ir.Block) ([]string, error) {
	if len(passList) > 0 {
		return passList, nil
	}
	if preset, ok := optimizer.ParsePreset(pipeline); ok {
		ids := preset.Passes(b)
		names := make([]string, len(ids))
		for i, id := range ids {
			names[i] = id.String()
		}
		return names, nil
	}
	if names, ok := cfg.Pipelines[pipeline]; ok {
		return names, nil
	}
	return nil, fmt.Errorf("unknown pipeline %q", pipeline)
}

// newDriver returns a driver over the builtin passes with the validation
// oracle installed.
func newDriver(logger *slog.Logger, extra ...optimizer.DriverOption) *optimizer.Driver {
	opts := []optimizer.DriverOption{
		optimizer.WithValidator(check.Oracle{}),
		optimizer.WithLogger(logger),
	}
	return optimizer.NewDriver(passes.NewRegistry(), nil, append(opts, extra...)...)
}

func usecString(usec int64) string {
	return (time.Duration(usec) * time.Microsecond).String()
}
