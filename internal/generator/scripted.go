package generator

import (
	"context"
	"fmt"
	"sync"
)

// Scripted is an in-memory Generator that replays canned outputs per
// stage slug. It backs tests and dry runs, and records every invocation
// so callers can assert on cascade order and prompt context.
type Scripted struct {
	mu      sync.Mutex
	outputs map[string]*StageOutput
	errs    map[string]error
	calls   []Call
}

// Call records one Invoke for later inspection.
type Call struct {
	Stage         string
	PromptContext string
	Feedback      string
}

// NewScripted creates an empty scripted generator.
func NewScripted() *Scripted {
	return &Scripted{
		outputs: map[string]*StageOutput{},
		errs:    map[string]error{},
	}
}

// Script sets the output returned for a stage slug.
func (s *Scripted) Script(stage string, out *StageOutput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs[stage] = out
}

// Fail makes the given stage return an error.
func (s *Scripted) Fail(stage string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[stage] = err
}

// Invoke replays the scripted output for the stage.
func (s *Scripted) Invoke(_ context.Context, stageSlug, promptContext, feedback string) (*StageOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Stage: stageSlug, PromptContext: promptContext, Feedback: feedback})

	if err, ok := s.errs[stageSlug]; ok {
		return nil, &Error{Stage: stageSlug, Err: err}
	}
	if out, ok := s.outputs[stageSlug]; ok {
		copied := *out
		return &copied, nil
	}
	// Unscripted stages synthesize a minimal envelope, so happy-path tests
	// don't have to script every stage.
	return &StageOutput{
		TLDR:    fmt.Sprintf("%s output", stageSlug),
		Content: fmt.Sprintf("generated content for %s", stageSlug),
	}, nil
}

// Calls returns the recorded invocations in order.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}
