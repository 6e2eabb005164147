package cascade

import (
	"context"
	"fmt"

	"github.com/MarisolVega/artifex/internal/generator"
	"github.com/MarisolVega/artifex/internal/workflow"
)

// RevisionStatus summarizes a cascade run.
type RevisionStatus string

const (
	// StatusComplete means every stage in scope was revised or vacuously
	// skipped.
	StatusComplete RevisionStatus = "complete"
	// StatusPartial means at least one stage failed but others succeeded.
	StatusPartial RevisionStatus = "partial"
	// StatusFailed means no stage in scope could be revised.
	StatusFailed RevisionStatus = "failed"
)

// StageFailure records one stage that could not be revised. Succeeded
// stages are never rolled back because of a later failure.
type StageFailure struct {
	Slug   string `json:"slug"`
	Reason string `json:"reason"`
}

// RevisionResult reports what a cascade did, stage by stage.
type RevisionResult struct {
	Scope        []string                          `json:"scope"`
	Revised      map[string]*generator.StageOutput `json:"-"`
	RevisedSlugs []string                          `json:"revised"`
	Skipped      []string                          `json:"skipped,omitempty"`
	Failures     []StageFailure                    `json:"failures,omitempty"`
	Status       RevisionStatus                    `json:"status"`
}

// Executor re-derives a contiguous stage range after feedback. The first
// stage in scope receives the original feedback text; every later stage
// runs in cascade mode, consuming the already-revised outputs of prior
// stages as upstream context.
type Executor struct {
	registry *workflow.Registry
}

// NewExecutor creates an executor resolving producers through the given
// registry.
func NewExecutor(registry *workflow.Registry) *Executor {
	return &Executor{registry: registry}
}

// Revise runs the cascade. outputs holds the persisted stage outputs of
// the original run, keyed by slug; it is not mutated. A failure in one
// stage does not abort the stages after it, since each failure only
// leaves that stage's prior output in place.
func (e *Executor) Revise(ctx context.Context, runID string, wf *workflow.Workflow, affected []string, feedback string, outputs map[string]*generator.StageOutput) (*RevisionResult, error) {
	scope := StagesToRevise(wf, affected)
	if len(scope) == 0 {
		return nil, fmt.Errorf("cascade: no affected stage is part of workflow %s", wf.ID)
	}

	merged := make(map[string]*generator.StageOutput, len(outputs))
	for slug, out := range outputs {
		merged[slug] = out
	}

	result := &RevisionResult{
		Scope:   scope,
		Revised: map[string]*generator.StageOutput{},
	}

	for i, slug := range scope {
		stage := wf.Stage(slug)
		direct := i == 0

		if merged[slug] == nil {
			if direct {
				return nil, fmt.Errorf("cascade: stage %s has no prior output to revise", slug)
			}
			// The original run never reached this stage, so there is
			// nothing stale to re-derive. Vacuously successful.
			result.Skipped = append(result.Skipped, slug)
			continue
		}

		handler, err := e.registry.Resolve(stage.ProducerRef)
		if err != nil {
			result.Failures = append(result.Failures, StageFailure{Slug: slug, Reason: err.Error()})
			continue
		}

		sc := workflow.StageContext{
			RunID:      runID,
			WorkflowID: wf.ID,
			Stage:      *stage,
			Upstream:   upstreamFor(wf, slug, merged),
		}
		if direct {
			sc.Feedback = feedback
		}

		out, err := handler.Run(ctx, sc)
		if err != nil {
			result.Failures = append(result.Failures, StageFailure{Slug: slug, Reason: err.Error()})
			continue
		}

		merged[slug] = out
		result.Revised[slug] = out
		result.RevisedSlugs = append(result.RevisedSlugs, slug)
	}

	switch {
	case len(result.Failures) == 0:
		result.Status = StatusComplete
	case len(result.RevisedSlugs) == 0:
		result.Status = StatusFailed
	default:
		result.Status = StatusPartial
	}
	return result, nil
}

// upstreamFor collects the content of every stage before the current one,
// in workflow order, from the merged (revised-wins) view. Cascaded stages
// must never see the stale pre-revision versions.
func upstreamFor(wf *workflow.Workflow, current string, merged map[string]*generator.StageOutput) map[string]string {
	upstream := map[string]string{}
	for _, slug := range wf.StageSlugs() {
		if slug == current {
			break
		}
		if out := merged[slug]; out != nil {
			upstream[slug] = out.Content
		}
	}
	return upstream
}
