// FILE: logveil/src/internal/stage/registry.go
package stage

import (
	"fmt"
	"sync"
)

// Registry holds an ordered list of named stages. Registration order is
// execution order. Safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	stages []Named
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a stage under a unique name.
func (r *Registry) Register(name string, s Stage) error {
	if name == "" {
		return fmt.Errorf("stage name cannot be empty")
	}
	if s == nil {
		return fmt.Errorf("stage %q is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ns := range r.stages {
		if ns.Name == name {
			return fmt.Errorf("duplicate stage name: %q", name)
		}
	}
	r.stages = append(r.stages, Named{Name: name, Stage: s})
	return nil
}

// Remove deletes the stage registered under name, preserving the order
// of the rest. It reports whether anything was removed.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, ns := range r.stages {
		if ns.Name == name {
			r.stages = append(r.stages[:i], r.stages[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes every stage.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = nil
}

// Snapshot returns a copy of the current list. The slice belongs to
// the caller; the stage instances are shared.
func (r *Registry) Snapshot() []Named {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Named, len(r.stages))
	copy(out, r.stages)
	return out
}

// Clone returns a new registry holding the same named instances.
// Later changes to either registry do not affect the other.
func (r *Registry) Clone() *Registry {
	return &Registry{stages: r.Snapshot()}
}

// Len returns the number of registered stages.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stages)
}
