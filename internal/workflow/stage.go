// Package workflow models the stage graph: named stages grouped into
// workflows with directed transitions, conditional branches, and
// entry-condition gates between workflows.
//
// The graph is data, not code: stages reference producers by slug and the
// orchestrator resolves them through a closed handler registry. Stage
// order within a workflow is the authoritative cascade order for the
// feedback engine.
package workflow

import (
	"fmt"
)

// ExecutionMode controls how a stage's producer sub-tasks run.
type ExecutionMode string

const (
	// Single runs one producer call for the stage.
	Single ExecutionMode = "single"
	// Parallel runs the stage's sub-producers concurrently; results are
	// concatenated in declared sub-producer order, never completion order.
	Parallel ExecutionMode = "parallel"
)

// validExecutionModes is the set of allowed execution modes.
var validExecutionModes = map[ExecutionMode]bool{
	Single:   true,
	Parallel: true,
}

// ValidateExecutionMode returns an error if the mode is not recognized.
func ValidateExecutionMode(m ExecutionMode) error {
	if !validExecutionModes[m] {
		return fmt.Errorf("invalid execution mode %q: must be one of: single, parallel", m)
	}
	return nil
}

// Stage is one named step in a workflow, backed by a producer call.
type Stage struct {
	Slug                 string        `json:"slug" yaml:"slug"`
	DisplayName          string        `json:"display_name" yaml:"display_name"`
	WorkflowID           string        `json:"workflow_id" yaml:"-"`
	ProducerRef          string        `json:"producer_ref" yaml:"producer"`
	RequiredContextSlugs []string      `json:"required_context_slugs,omitempty" yaml:"required_context,omitempty"`
	IsOptional           bool          `json:"is_optional,omitempty" yaml:"optional,omitempty"`
	ExecutionMode        ExecutionMode `json:"execution_mode" yaml:"execution_mode,omitempty"`
	// SubProducers lists the producer refs for parallel stages, in the
	// fixed order their outputs are concatenated.
	SubProducers []string `json:"sub_producers,omitempty" yaml:"sub_producers,omitempty"`
}

// Transition is a directed edge between two stages of one workflow.
// When names a runtime flag; an empty When is unconditional. Conditional
// transitions are evaluated before the unconditional one.
type Transition struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
	When string `json:"when,omitempty" yaml:"when,omitempty"`
}

// Workflow is an ordered/branching group of stages with one entry point.
type Workflow struct {
	ID          string       `json:"id" yaml:"id"`
	DisplayName string       `json:"display_name" yaml:"display_name"`
	Entry       string       `json:"entry" yaml:"entry"`
	Stages      []Stage      `json:"stages" yaml:"stages"`
	Transitions []Transition `json:"transitions" yaml:"transitions"`
}

// Stage returns the stage with the given slug, or nil.
func (w *Workflow) Stage(slug string) *Stage {
	for i := range w.Stages {
		if w.Stages[i].Slug == slug {
			return &w.Stages[i]
		}
	}
	return nil
}

// StageSlugs returns the workflow's stage slugs in declared order. This
// order is the cascade order.
func (w *Workflow) StageSlugs() []string {
	out := make([]string, len(w.Stages))
	for i, s := range w.Stages {
		out[i] = s.Slug
	}
	return out
}

// StageIndex returns the ordinal position of a slug, or -1.
func (w *Workflow) StageIndex(slug string) int {
	for i, s := range w.Stages {
		if s.Slug == slug {
			return i
		}
	}
	return -1
}

// Next resolves the transition out of the current stage under the given
// runtime flags. Conditional transitions win over the unconditional one;
// ok is false at a terminal stage.
func (w *Workflow) Next(current string, flags map[string]bool) (string, bool) {
	var fallback string
	var haveFallback bool
	for _, t := range w.Transitions {
		if t.From != current {
			continue
		}
		if t.When == "" {
			fallback, haveFallback = t.To, true
			continue
		}
		if flags[t.When] {
			return t.To, true
		}
	}
	return fallback, haveFallback
}

// Validate checks the workflow's structural invariants: a known entry
// stage, unique slugs, transitions between known stages, and a valid
// execution mode on every stage.
func (w *Workflow) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("workflow: id is required")
	}
	if len(w.Stages) == 0 {
		return fmt.Errorf("workflow %s: no stages", w.ID)
	}

	seen := map[string]bool{}
	for i := range w.Stages {
		s := &w.Stages[i]
		if s.Slug == "" {
			return fmt.Errorf("workflow %s: stage %d has no slug", w.ID, i)
		}
		if seen[s.Slug] {
			return fmt.Errorf("workflow %s: duplicate stage slug %q", w.ID, s.Slug)
		}
		seen[s.Slug] = true

		if s.ExecutionMode == "" {
			s.ExecutionMode = Single
		}
		if err := ValidateExecutionMode(s.ExecutionMode); err != nil {
			return fmt.Errorf("workflow %s: stage %s: %w", w.ID, s.Slug, err)
		}
		if s.ExecutionMode == Parallel && len(s.SubProducers) == 0 {
			return fmt.Errorf("workflow %s: parallel stage %s declares no sub-producers", w.ID, s.Slug)
		}
		for _, req := range s.RequiredContextSlugs {
			if req == s.Slug {
				return fmt.Errorf("workflow %s: stage %s requires its own output", w.ID, s.Slug)
			}
		}
		if s.WorkflowID == "" {
			s.WorkflowID = w.ID
		}
	}

	if w.Entry == "" {
		w.Entry = w.Stages[0].Slug
	}
	if !seen[w.Entry] {
		return fmt.Errorf("workflow %s: entry stage %q does not exist", w.ID, w.Entry)
	}

	for _, t := range w.Transitions {
		if !seen[t.From] || !seen[t.To] {
			return fmt.Errorf("workflow %s: transition %s -> %s references an unknown stage", w.ID, t.From, t.To)
		}
	}
	return nil
}
