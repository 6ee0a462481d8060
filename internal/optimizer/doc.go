// Package optimizer implements the pass framework: the Pass interface, the
// registry of builtin passes, the driver that times and validates each pass
// invocation, and the fixed pipeline presets.
//
// A pass receives a block and rewrites it in place or swaps in a new
// instruction sequence. It reports the number of rewrites it performed;
// zero means the block was left untouched (including bailouts).
//
// The driver:
//  1. resolves a pass by PassID or by exact name
//  2. runs it and measures elapsed microseconds with an injected Clock
//  3. calls the validation oracle (type, flow, declaration) when the pass
//     reported actions > 0
//  4. appends the annotation line to the block history
//  5. updates the PipelineContext statistics and notifies the Recorder
//
// Statistics live in a PipelineContext that callers construct and inject.
// There is no package-level mutable state.
package optimizer
