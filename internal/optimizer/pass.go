package optimizer

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/qopt/internal/ir"
)

// Pass is a named block rewrite.
//
// Run returns the number of rewrites it performed. A pass that cannot
// apply returns 0 and leaves the block untouched. call is the invoking
// "optimizer.<name>" instruction, or nil when the pass is run directly.
type Pass interface {
	Name() string
	Run(ctx *Context, b *ir.Block, call *ir.Instruction) (int, error)
}

// PassFunc adapts a function to the Pass interface.
type PassFunc struct {
	PassName string
	Fn       func(ctx *Context, b *ir.Block, call *ir.Instruction) (int, error)
}

// Name implements Pass.
func (f PassFunc) Name() string { return f.PassName }

// Run implements Pass.
func (f PassFunc) Run(ctx *Context, b *ir.Block, call *ir.Instruction) (int, error) {
	return f.Fn(ctx, b, call)
}

// PassID identifies a builtin pass.
type PassID int

const (
	PassInline PassID = iota + 1
	PassBincopyfrom
	PassCoercion
	PassCandidates
	PassCommonterms
	PassPushselect
	PassCostmodel
	PassMitosis
	PassMergetable
	PassDeadcode
	PassGenerator
	PassMultiplex
	PassPostfix
)

var passNames = map[PassID]string{
	PassInline:      "inline",
	PassBincopyfrom: "bincopyfrom",
	PassCoercion:    "coercion",
	PassCandidates:  "candidates",
	PassCommonterms: "commonterms",
	PassPushselect:  "pushselect",
	PassCostmodel:   "costmodel",
	PassMitosis:     "mitosis",
	PassMergetable:  "mergetable",
	PassDeadcode:    "deadcode",
	PassGenerator:   "generator",
	PassMultiplex:   "multiplex",
	PassPostfix:     "postfix",
}

func (id PassID) String() string {
	if s, ok := passNames[id]; ok {
		return s
	}
	return fmt.Sprintf("pass(%d)", int(id))
}

// ParsePassID resolves a builtin pass name.
func ParsePassID(name string) (PassID, bool) {
	for id, s := range passNames {
		if s == name {
			return id, true
		}
	}
	return 0, false
}

// DefaultPartitions is the partition count mitosis uses when none is set.
const DefaultPartitions = 4

// Options tunes pass behaviour.
type Options struct {
	// Partitions is the number of horizontal partitions mitosis creates.
	Partitions int
	// MaxVars bounds the variable table of optimized blocks (0 = unlimited).
	MaxVars int
}

// Context carries per-invocation inputs to a pass.
type Context struct {
	Logger  *slog.Logger
	Options Options

	// Library holds callable blocks by name ("module.function") for the
	// inline pass.
	Library map[string]*Function

	// Catalog supplies table sizes to mitosis and the cost model. It may
	// be nil.
	Catalog RowCounter
}

// RowCounter reports the number of rows of a table.
type RowCounter interface {
	Rows(schema, table string) (int, bool)
}

// Function is a library block that may be inlined at call sites. The
// block's Params are bound to the call's parameters and its return
// statement names the values bound to the call's results.
type Function struct {
	Block  *ir.Block
	Inline bool
}

// NewContext creates a pass context with default options and a logger
// that discards output.
func NewContext() *Context {
	return &Context{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Options: Options{Partitions: DefaultPartitions},
	}
}

// Log returns the context logger, or a discarding logger for a nil
// context.
func (c *Context) Log() *slog.Logger {
	if c == nil || c.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.Logger
}
