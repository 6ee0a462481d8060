package optimizer

import "sync"

// PipelineContext accumulates per-pass statistics across invocations.
//
// Construct one per process (or per test) and inject it into every Driver
// that should share counters. Safe for concurrent use.
type PipelineContext struct {
	mu    sync.Mutex
	names []string
	index map[string]int
	calls []int
	usecs []int64
}

// NewPipelineContext creates statistics slots for every pass in reg, in
// registration order.
func NewPipelineContext(reg *Registry) *PipelineContext {
	pc := &PipelineContext{index: make(map[string]int)}
	for _, name := range reg.Names() {
		pc.slot(name)
	}
	return pc
}

func (pc *PipelineContext) slot(name string) int {
	if i, ok := pc.index[name]; ok {
		return i
	}
	i := len(pc.names)
	pc.index[name] = i
	pc.names = append(pc.names, name)
	pc.calls = append(pc.calls, 0)
	pc.usecs = append(pc.usecs, 0)
	return i
}

// record adds one invocation of pass taking usec microseconds.
func (pc *PipelineContext) record(pass string, usec int64) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	i := pc.slot(pass)
	pc.calls[i]++
	pc.usecs[i] += usec
}

// Statistics returns pass names, invocation counts and cumulative
// microseconds as parallel slices in registration order.
func (pc *PipelineContext) Statistics() (names []string, calls []int, usecs []int64) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	names = append([]string(nil), pc.names...)
	calls = append([]int(nil), pc.calls...)
	usecs = append([]int64(nil), pc.usecs...)
	return names, calls, usecs
}

// Reset clears all counters.
func (pc *PipelineContext) Reset() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	clear(pc.calls)
	clear(pc.usecs)
}
