package orchestrator

import (
	"fmt"
	"sync"
)

// RunRegistry keeps the in-process runs by ID. Runs are process-local
// state: stage outputs are what persists, the run record itself is
// observability plus a handle for feedback.
type RunRegistry struct {
	mu    sync.RWMutex
	runs  map[string]*Run
	order []string
}

// NewRunRegistry creates an empty registry.
func NewRunRegistry() *RunRegistry {
	return &RunRegistry{runs: map[string]*Run{}}
}

// Add stores a run.
func (r *RunRegistry) Add(run *Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runs[run.ID]; !exists {
		r.order = append(r.order, run.ID)
	}
	r.runs[run.ID] = run
}

// Get returns a run by ID.
func (r *RunRegistry) Get(id string) (*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s not found", id)
	}
	return run, nil
}

// Latest returns the most recently added run, or nil when none exist.
func (r *RunRegistry) Latest() *Run {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return nil
	}
	return r.runs[r.order[len(r.order)-1]]
}

// IDs returns the run IDs in creation order.
func (r *RunRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
