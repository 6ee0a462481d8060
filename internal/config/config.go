// Package config loads optimizer settings from CUE.
//
// A configuration file holds one optimizer struct:
//
//	optimizer: {
//		partitions: 4
//		max_vars:   0
//		pipelines: custom: ["inline", "mitosis", "mergetable", "deadcode"]
//	}
//
// Every field is optional. Compile extracts the values; Validate checks
// them against the pass registry.
package config

import (
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/qopt/internal/optimizer"
)

// Config is the compiled optimizer configuration.
type Config struct {
	Partitions int
	MaxVars    int

	// Pipelines maps custom pipeline names to pass names.
	Pipelines map[string][]string

	pos map[string]token.Pos
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Partitions: optimizer.DefaultPartitions,
		Pipelines:  map[string][]string{},
	}
}

// PipelineNames returns the custom pipeline names in sorted order.
func (c *Config) PipelineNames() []string {
	names := make([]string, 0, len(c.Pipelines))
	for name := range c.Pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options returns the pass options the configuration sets.
func (c *Config) Options() optimizer.Options {
	return optimizer.Options{Partitions: c.Partitions, MaxVars: c.MaxVars}
}

// CompileError reports a configuration value that could not be read.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads a configuration from a .cue file, or from the CUE package in
// a directory.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	ctx := cuecontext.New()
	var v cue.Value
	if info.IsDir() {
		instances := load.Instances([]string{"."}, &load.Config{Dir: path})
		if len(instances) == 0 {
			return nil, fmt.Errorf("no CUE instances in %s", path)
		}
		if err := instances[0].Err; err != nil {
			return nil, fmt.Errorf("loading CUE files: %w", err)
		}
		v = ctx.BuildInstance(instances[0])
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		v = ctx.CompileBytes(data, cue.Filename(path))
	}
	return Compile(v)
}

// Compile extracts the optimizer configuration from a CUE value. Missing
// fields keep their defaults.
func Compile(v cue.Value) (*Config, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	cfg := Default()
	cfg.pos = make(map[string]token.Pos)

	opt := v.LookupPath(cue.ParsePath("optimizer"))
	if !opt.Exists() {
		return cfg, nil
	}

	var err error
	if cfg.Partitions, err = intField(opt, "partitions", cfg.Partitions); err != nil {
		return nil, err
	}
	if cfg.MaxVars, err = intField(opt, "max_vars", cfg.MaxVars); err != nil {
		return nil, err
	}

	pipes := opt.LookupPath(cue.ParsePath("pipelines"))
	if !pipes.Exists() {
		return cfg, nil
	}
	iter, err := pipes.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		list, err := iter.Value().List()
		if err != nil {
			return nil, &CompileError{
				Field:   "pipelines." + name,
				Message: "pipeline must be a list of pass names",
				Pos:     iter.Value().Pos(),
			}
		}
		passes := []string{}
		for list.Next() {
			s, err := list.Value().String()
			if err != nil {
				return nil, &CompileError{
					Field:   "pipelines." + name,
					Message: "pass names must be strings",
					Pos:     list.Value().Pos(),
				}
			}
			passes = append(passes, s)
		}
		cfg.Pipelines[name] = passes
		cfg.pos[name] = iter.Value().Pos()
	}
	return cfg, nil
}

func intField(v cue.Value, field string, def int) (int, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return def, nil
	}
	n, err := f.Int64()
	if err != nil {
		return 0, &CompileError{
			Field:   field,
			Message: "must be an integer",
			Pos:     f.Pos(),
		}
	}
	return int(n), nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
