package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/MarisolVega/artifex/internal/generator"
)

// StageContext is the input a handler receives for one stage execution.
// Upstream carries the persisted content of prior stages keyed by slug -
// during a cascade these are the already-revised versions, never stale
// ones.
type StageContext struct {
	RunID      string
	WorkflowID string
	Stage      Stage
	Upstream   map[string]string
	Feedback   string
	Flags      map[string]bool
}

// StageHandler runs one stage and returns its output envelope.
type StageHandler interface {
	Run(ctx context.Context, sc StageContext) (*generator.StageOutput, error)
}

// HandlerFunc adapts a function to the StageHandler interface.
type HandlerFunc func(ctx context.Context, sc StageContext) (*generator.StageOutput, error)

// Run implements StageHandler.
func (f HandlerFunc) Run(ctx context.Context, sc StageContext) (*generator.StageOutput, error) {
	return f(ctx, sc)
}

// Registry maps producer refs to stage handlers. The set of kinds is
// closed at wiring time - stages resolve by slug lookup, not reflection.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]StageHandler
}

// NewRegistry returns an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: map[string]StageHandler{}}
}

// Register installs a handler for a producer ref. Registering the same
// ref twice is an error.
func (r *Registry) Register(ref string, h StageHandler) error {
	if ref == "" {
		return fmt.Errorf("workflow: producer ref is required")
	}
	if h == nil {
		return fmt.Errorf("workflow: handler is required for %s", ref)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[ref]; exists {
		return fmt.Errorf("workflow: producer %s already registered", ref)
	}
	r.handlers[ref] = h
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(ref string, h StageHandler) {
	if err := r.Register(ref, h); err != nil {
		panic(err)
	}
}

// Resolve returns the handler for a producer ref.
func (r *Registry) Resolve(ref string) (StageHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[ref]
	if !ok {
		return nil, fmt.Errorf("workflow: unknown producer %s", ref)
	}
	return h, nil
}

// Refs returns the registered producer refs, sorted.
func (r *Registry) Refs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for ref := range r.handlers {
		out = append(out, ref)
	}
	sort.Strings(out)
	return out
}
