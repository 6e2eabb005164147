package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MarisolVega/artifex/internal/generator"
	"github.com/MarisolVega/artifex/internal/workflow"
)

func wiredOrchestrator(t *testing.T, gen generator.Generator) (*Orchestrator, *workflow.Set) {
	t.Helper()
	set := workflow.Default()
	reg := workflow.NewRegistry()
	if err := RegisterProducers(reg, gen, set); err != nil {
		t.Fatalf("RegisterProducers: %v", err)
	}
	return New(set, reg), set
}

func scriptValidationRun(gen *generator.Scripted, verdict string) {
	gen.Script("validation-summary", &generator.StageOutput{
		TLDR:    "summary",
		Content: "a validation summary comfortably past the length gate",
		Claims: []generator.Claim{{
			Name:     "recommendation",
			Metadata: map[string]string{"verdict": verdict},
		}},
	})
}

func TestExecute_FullRun(t *testing.T) {
	gen := generator.NewScripted()
	scriptValidationRun(gen, "go")
	orc, _ := wiredOrchestrator(t, gen)

	run := NewRun()
	if err := orc.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// Both workflows completed; the optional remediation stage was not
	// reached because nothing raised the high_risk flag.
	for _, slug := range []string{"idea-analysis", "market-context", "risk-assessment", "validation-summary", "story-interpretation", "design-evolution", "task-breakdown"} {
		if run.Outputs[slug] == nil {
			t.Errorf("no output for %s", slug)
		}
	}
	if run.Outputs["risk-remediation"] != nil {
		t.Error("risk-remediation ran without the high_risk flag")
	}
	if run.ID == "" {
		t.Error("run has no id")
	}
}

func TestExecute_HighRiskBranch(t *testing.T) {
	gen := generator.NewScripted()
	scriptValidationRun(gen, "go")
	gen.Script("risk-assessment", &generator.StageOutput{
		TLDR:    "risky",
		Content: "risk register content",
		Claims: []generator.Claim{{
			Name:     "high_risk",
			Metadata: map[string]string{"flag": "true"},
		}},
	})
	orc, _ := wiredOrchestrator(t, gen)

	run := NewRun()
	if err := orc.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !run.Flags["high_risk"] {
		t.Error("high_risk flag not lifted off the stage output")
	}
	if run.Outputs["risk-remediation"] == nil {
		t.Error("high_risk flag did not route through risk-remediation")
	}
}

func TestExecute_GateBlocksOnNoGo(t *testing.T) {
	gen := generator.NewScripted()
	scriptValidationRun(gen, "no-go")
	orc, _ := wiredOrchestrator(t, gen)

	run := NewRun()
	err := orc.Execute(context.Background(), run)
	var econd *workflow.EntryConditionError
	if !errors.As(err, &econd) {
		t.Fatalf("err = %v, want EntryConditionError", err)
	}

	// The validation workflow's outputs are retained; delivery never ran.
	if run.Outputs["validation-summary"] == nil {
		t.Error("validation outputs lost")
	}
	if run.Outputs["story-interpretation"] != nil {
		t.Error("delivery ran despite the gate")
	}

	// An explicit override lets a fresh run through.
	run2 := NewRun()
	run2.Override = true
	if err := orc.Execute(context.Background(), run2); err != nil {
		t.Fatalf("Execute with override: %v", err)
	}
	if run2.Outputs["task-breakdown"] == nil {
		t.Error("delivery did not complete under override")
	}
}

func TestExecute_ParallelStageConcatenatesInDeclaredOrder(t *testing.T) {
	gen := generator.NewScripted()
	scriptValidationRun(gen, "go")
	gen.Script("market-sizing", &generator.StageOutput{TLDR: "sizing", Content: "SIZING"})
	gen.Script("competitor-scan", &generator.StageOutput{TLDR: "scan", Content: "SCAN"})
	orc, _ := wiredOrchestrator(t, gen)

	run := NewRun()
	if err := orc.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got := run.Outputs["market-context"].Content
	if want := "SIZING\n\nSCAN"; got != want {
		t.Errorf("parallel content = %q, want %q (declared order, not completion order)", got, want)
	}
}

func TestExecute_StageFailureStopsRun(t *testing.T) {
	gen := generator.NewScripted()
	gen.Fail("risk-assessment", errors.New("producer down"))
	orc, _ := wiredOrchestrator(t, gen)

	run := NewRun()
	err := orc.Execute(context.Background(), run)
	if err == nil {
		t.Fatal("Execute succeeded despite stage failure")
	}

	// Work before the failure is retained, nothing after it ran.
	if run.Outputs["market-context"] == nil {
		t.Error("outputs before the failure lost")
	}
	if run.Outputs["validation-summary"] != nil {
		t.Error("stages after the failure ran")
	}

	var failed *Checkpoint
	for i := range run.Checkpoints {
		if run.Checkpoints[i].Stage == "risk-assessment" {
			failed = &run.Checkpoints[i]
		}
	}
	if failed == nil || failed.Status != CheckpointFailed || failed.FailureNote == "" {
		t.Errorf("failure checkpoint = %+v", failed)
	}
}

func TestExecute_CancellationBetweenStages(t *testing.T) {
	gen := generator.NewScripted()
	orc, set := wiredOrchestrator(t, gen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run := NewRun()
	err := orc.ExecuteWorkflow(ctx, run, set.Workflow("validation"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(run.Outputs) != 0 {
		t.Errorf("cancelled run produced outputs: %v", run.Outputs)
	}
}

func TestExecute_Checkpoints(t *testing.T) {
	gen := generator.NewScripted()
	scriptValidationRun(gen, "go")
	orc, set := wiredOrchestrator(t, gen)

	run := NewRun()
	if err := orc.ExecuteWorkflow(context.Background(), run, set.Workflow("validation")); err != nil {
		t.Fatalf("ExecuteWorkflow: %v", err)
	}

	var market *Checkpoint
	for i := range run.Checkpoints {
		if run.Checkpoints[i].Stage == "market-context" {
			market = &run.Checkpoints[i]
		}
	}
	if market == nil {
		t.Fatal("no checkpoint for market-context")
	}
	if market.Status != CheckpointCompleted || market.StartedAt == "" || market.FinishedAt == "" {
		t.Errorf("checkpoint = %+v", market)
	}
	// Parallel stages record one duration per sub-producer.
	if _, ok := market.Durations["market-sizing"]; !ok {
		t.Errorf("no duration for market-sizing: %v", market.Durations)
	}
	if _, ok := market.Durations["competitor-scan"]; !ok {
		t.Errorf("no duration for competitor-scan: %v", market.Durations)
	}
}

func TestGeneratorHandler_PromptCarriesUpstream(t *testing.T) {
	gen := generator.NewScripted()
	h := GeneratorHandler(gen, "risk-assessment")

	_, err := h.Run(context.Background(), workflow.StageContext{
		RunID:      "run-1",
		WorkflowID: "validation",
		Stage:      workflow.Stage{Slug: "risk-assessment"},
		Upstream: map[string]string{
			"idea-analysis":  "the idea",
			"market-context": "the market",
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	calls := gen.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d", len(calls))
	}
	prompt := calls[0].PromptContext
	for _, want := range []string{"## Upstream: idea-analysis", "the idea", "## Upstream: market-context", "the market"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	// Deterministic ordering: idea-analysis section precedes market-context.
	if strings.Index(prompt, "idea-analysis") > strings.Index(prompt, "market-context") {
		t.Error("upstream sections not sorted by slug")
	}
}
