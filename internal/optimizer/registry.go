package optimizer

import (
	"github.com/cockroachdb/errors"
)

type entry struct {
	id   PassID
	pass Pass
}

// Registry maps builtin pass IDs and names to implementations. Entries
// keep their registration order.
type Registry struct {
	entries []entry
	byID    map[PassID]int
	byName  map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[PassID]int),
		byName: make(map[string]int),
	}
}

// Register adds a pass under id. The pass name must match id's name and
// neither may be registered twice.
func (r *Registry) Register(id PassID, p Pass) error {
	if p.Name() != id.String() {
		return errors.Newf("pass %q registered as %s", p.Name(), id)
	}
	if _, dup := r.byID[id]; dup {
		return errors.Newf("pass %s already registered", id)
	}
	r.byID[id] = len(r.entries)
	r.byName[p.Name()] = len(r.entries)
	r.entries = append(r.entries, entry{id: id, pass: p})
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(id PassID, p Pass) {
	if err := r.Register(id, p); err != nil {
		panic(err)
	}
}

// Get returns the pass registered under id.
func (r *Registry) Get(id PassID) (Pass, bool) {
	i, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return r.entries[i].pass, true
}

// Lookup resolves a pass by exact name.
func (r *Registry) Lookup(name string) (Pass, error) {
	i, ok := r.byName[name]
	if !ok {
		return nil, NewNotFound(name)
	}
	return r.entries[i].pass, nil
}

// Has reports whether a pass with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Names returns the registered pass names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.pass.Name()
	}
	return names
}

// Len returns the number of registered passes.
func (r *Registry) Len() int { return len(r.entries) }
