// Package orchestrator composes the stage graph, producer registry and
// gates into an end-to-end run. It is deliberately thin: stages do the
// work, the orchestrator only walks the graph and keeps the run record.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MarisolVega/artifex/internal/generator"
	"github.com/MarisolVega/artifex/internal/workflow"
)

// timeNow is a package-level var to allow test injection.
var timeNow = time.Now

// CheckpointStatus marks how one stage ended.
type CheckpointStatus string

const (
	CheckpointCompleted CheckpointStatus = "completed"
	CheckpointFailed    CheckpointStatus = "failed"
	CheckpointSkipped   CheckpointStatus = "skipped"
)

// Checkpoint records one stage execution for observability. Nothing
// downstream consumes it.
type Checkpoint struct {
	Stage       string                   `json:"stage"`
	WorkflowID  string                   `json:"workflow_id"`
	Status      CheckpointStatus         `json:"status"`
	StartedAt   string                   `json:"started_at"`
	FinishedAt  string                   `json:"finished_at"`
	Durations   map[string]time.Duration `json:"durations,omitempty"`
	FailureNote string                   `json:"failure_note,omitempty"`
}

// Run is the explicit state of one end-to-end execution. It replaces any
// notion of ambient session state: every component receives the run it
// operates on.
type Run struct {
	ID          string                            `json:"id"`
	WorkflowID  string                            `json:"workflow_id"`
	Outputs     map[string]*generator.StageOutput `json:"outputs"`
	Flags       map[string]bool                   `json:"flags"`
	Checkpoints []Checkpoint                      `json:"checkpoints"`
	Override    bool                              `json:"override"`
}

// NewRun creates an empty run record.
func NewRun() *Run {
	return &Run{
		ID:      uuid.NewString(),
		Outputs: map[string]*generator.StageOutput{},
		Flags:   map[string]bool{},
	}
}

// Orchestrator walks workflows stage by stage, evaluating gates at
// workflow boundaries.
type Orchestrator struct {
	set      *workflow.Set
	registry *workflow.Registry
}

// New creates an orchestrator over a workflow set and producer registry.
func New(set *workflow.Set, registry *workflow.Registry) *Orchestrator {
	return &Orchestrator{set: set, registry: registry}
}

// Execute runs every workflow of the set in declared order against the
// given run. A gate failure or stage failure stops the run; work already
// persisted on the run is retained, never rolled back.
func (o *Orchestrator) Execute(ctx context.Context, run *Run) error {
	for i := range o.set.Workflows {
		wf := &o.set.Workflows[i]
		if gate := o.set.GateInto(wf.ID); gate != nil {
			if _, err := gate.Evaluate(run.Outputs, run.Override); err != nil {
				return err
			}
		}
		if err := o.ExecuteWorkflow(ctx, run, wf); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteWorkflow walks one workflow from its entry stage, following
// transitions under the run's flags, until a terminal stage. Stages run
// strictly in sequence: each consumes the persisted output of the prior
// ones as context.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, run *Run, wf *workflow.Workflow) error {
	run.WorkflowID = wf.ID

	current := wf.Entry
	for {
		// A run may be aborted between stages; completed stage outputs
		// stay on the run.
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run %s aborted before stage %s: %w", run.ID, current, err)
		}

		stage := wf.Stage(current)
		if stage == nil {
			return fmt.Errorf("workflow %s: unknown stage %s", wf.ID, current)
		}

		if missing := o.missingContext(run, stage); len(missing) > 0 {
			if !stage.IsOptional {
				return fmt.Errorf("stage %s: missing required context from %v", stage.Slug, missing)
			}
			run.Checkpoints = append(run.Checkpoints, Checkpoint{
				Stage:      stage.Slug,
				WorkflowID: wf.ID,
				Status:     CheckpointSkipped,
				StartedAt:  timeNow().UTC().Format(time.RFC3339),
				FinishedAt: timeNow().UTC().Format(time.RFC3339),
			})
		} else if err := o.executeStage(ctx, run, wf, stage); err != nil {
			return err
		}

		next, ok := wf.Next(current, run.Flags)
		if !ok {
			return nil
		}
		current = next
	}
}

func (o *Orchestrator) missingContext(run *Run, stage *workflow.Stage) []string {
	var missing []string
	for _, slug := range stage.RequiredContextSlugs {
		if run.Outputs[slug] == nil {
			missing = append(missing, slug)
		}
	}
	return missing
}

func (o *Orchestrator) executeStage(ctx context.Context, run *Run, wf *workflow.Workflow, stage *workflow.Stage) error {
	cp := Checkpoint{
		Stage:      stage.Slug,
		WorkflowID: wf.ID,
		StartedAt:  timeNow().UTC().Format(time.RFC3339),
		Durations:  map[string]time.Duration{},
	}

	var out *generator.StageOutput
	var err error
	if stage.ExecutionMode == workflow.Parallel {
		out, err = o.runParallel(ctx, run, wf, stage, cp.Durations)
	} else {
		out, err = o.runSingle(ctx, run, wf, stage, cp.Durations)
	}

	cp.FinishedAt = timeNow().UTC().Format(time.RFC3339)
	if err != nil {
		cp.Status = CheckpointFailed
		cp.FailureNote = err.Error()
		run.Checkpoints = append(run.Checkpoints, cp)
		return fmt.Errorf("stage %s: %w", stage.Slug, err)
	}
	cp.Status = CheckpointCompleted
	run.Checkpoints = append(run.Checkpoints, cp)

	run.Outputs[stage.Slug] = out
	applyFlags(run, out)
	return nil
}

func (o *Orchestrator) runSingle(ctx context.Context, run *Run, wf *workflow.Workflow, stage *workflow.Stage, durations map[string]time.Duration) (*generator.StageOutput, error) {
	handler, err := o.registry.Resolve(stage.ProducerRef)
	if err != nil {
		return nil, err
	}

	started := timeNow()
	out, err := handler.Run(ctx, o.stageContext(run, wf, stage))
	durations[stage.ProducerRef] = timeNow().Sub(started)
	return out, err
}

// runParallel fans the stage's sub-producers out to goroutines and
// concatenates their outputs in declared sub-producer order, never
// completion order.
func (o *Orchestrator) runParallel(ctx context.Context, run *Run, wf *workflow.Workflow, stage *workflow.Stage, durations map[string]time.Duration) (*generator.StageOutput, error) {
	type result struct {
		out      *generator.StageOutput
		err      error
		duration time.Duration
	}
	results := make([]result, len(stage.SubProducers))

	var wg sync.WaitGroup
	for i, ref := range stage.SubProducers {
		handler, err := o.registry.Resolve(ref)
		if err != nil {
			return nil, err
		}
		wg.Add(1)
		go func(i int, h workflow.StageHandler) {
			defer wg.Done()
			started := timeNow()
			out, err := h.Run(ctx, o.stageContext(run, wf, stage))
			results[i] = result{out: out, err: err, duration: timeNow().Sub(started)}
		}(i, handler)
	}
	wg.Wait()

	merged := &generator.StageOutput{}
	for i, ref := range stage.SubProducers {
		res := results[i]
		durations[ref] = res.duration
		if res.err != nil {
			return nil, fmt.Errorf("sub-producer %s: %w", ref, res.err)
		}
		if merged.Content != "" {
			merged.Content += "\n\n"
		}
		merged.Content += res.out.Content
		merged.Claims = append(merged.Claims, res.out.Claims...)
		if merged.TLDR != "" && res.out.TLDR != "" {
			merged.TLDR += "; "
		}
		merged.TLDR += res.out.TLDR
	}
	return merged, nil
}

func (o *Orchestrator) stageContext(run *Run, wf *workflow.Workflow, stage *workflow.Stage) workflow.StageContext {
	upstream := map[string]string{}
	for slug, out := range run.Outputs {
		if out != nil {
			upstream[slug] = out.Content
		}
	}
	return workflow.StageContext{
		RunID:      run.ID,
		WorkflowID: wf.ID,
		Stage:      *stage,
		Upstream:   upstream,
		Flags:      run.Flags,
	}
}

// applyFlags lifts flag claims off a stage output onto the run, where
// conditional transitions can see them. A producer raises a flag with a
// claim whose metadata carries flag=true.
func applyFlags(run *Run, out *generator.StageOutput) {
	for _, claim := range out.Claims {
		if claim.Metadata["flag"] == "true" {
			run.Flags[claim.Name] = true
		}
	}
}
