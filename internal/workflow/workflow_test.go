package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/MarisolVega/artifex/internal/generator"
)

// --- Workflow graph ---

func TestNext_ConditionalBranch(t *testing.T) {
	set := Default()
	wf := set.Workflow("validation")

	// Without the flag, risk-assessment goes straight to the summary.
	next, ok := wf.Next("risk-assessment", nil)
	if !ok || next != "validation-summary" {
		t.Errorf("Next without flag = (%q, %v), want validation-summary", next, ok)
	}

	// With high_risk set, the remediation branch wins.
	next, ok = wf.Next("risk-assessment", map[string]bool{"high_risk": true})
	if !ok || next != "risk-remediation" {
		t.Errorf("Next with high_risk = (%q, %v), want risk-remediation", next, ok)
	}
}

func TestNext_TerminalStage(t *testing.T) {
	wf := Default().Workflow("validation")
	if next, ok := wf.Next("validation-summary", nil); ok {
		t.Errorf("terminal stage has a next: %q", next)
	}
}

func TestValidate_DefaultSet(t *testing.T) {
	for _, wf := range Default().Workflows {
		if err := wf.Validate(); err != nil {
			t.Errorf("default workflow %s invalid: %v", wf.ID, err)
		}
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		wf   Workflow
	}{
		{"no stages", Workflow{ID: "w"}},
		{"duplicate slug", Workflow{ID: "w", Stages: []Stage{{Slug: "a"}, {Slug: "a"}}}},
		{"unknown entry", Workflow{ID: "w", Entry: "ghost", Stages: []Stage{{Slug: "a"}}}},
		{"bad transition", Workflow{ID: "w", Stages: []Stage{{Slug: "a"}}, Transitions: []Transition{{From: "a", To: "ghost"}}}},
		{"parallel without sub-producers", Workflow{ID: "w", Stages: []Stage{{Slug: "a", ExecutionMode: Parallel}}}},
		{"self context", Workflow{ID: "w", Stages: []Stage{{Slug: "a", RequiredContextSlugs: []string{"a"}}}}},
	}
	for _, tt := range tests {
		if err := tt.wf.Validate(); err == nil {
			t.Errorf("%s: Validate succeeded, want error", tt.name)
		}
	}
}

func TestValidate_DefaultsEntryAndMode(t *testing.T) {
	wf := Workflow{ID: "w", Stages: []Stage{{Slug: "first"}, {Slug: "second"}}}
	if err := wf.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if wf.Entry != "first" {
		t.Errorf("Entry defaulted to %q, want first", wf.Entry)
	}
	if wf.Stages[0].ExecutionMode != Single {
		t.Errorf("ExecutionMode defaulted to %q, want single", wf.Stages[0].ExecutionMode)
	}
	if wf.Stages[0].WorkflowID != "w" {
		t.Errorf("WorkflowID defaulted to %q, want w", wf.Stages[0].WorkflowID)
	}
}

// --- Registry ---

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	h := HandlerFunc(func(_ context.Context, sc StageContext) (*generator.StageOutput, error) {
		return &generator.StageOutput{Content: "ran " + sc.Stage.Slug}, nil
	})

	if err := r.Register("idea-analysis", h); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("idea-analysis", h); err == nil {
		t.Error("duplicate Register succeeded")
	}
	if err := r.Register("", h); err == nil {
		t.Error("empty ref Register succeeded")
	}

	got, err := r.Resolve("idea-analysis")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	out, err := got.Run(context.Background(), StageContext{Stage: Stage{Slug: "idea-analysis"}})
	if err != nil || out.Content != "ran idea-analysis" {
		t.Errorf("Run = (%+v, %v)", out, err)
	}

	if _, err := r.Resolve("ghost"); err == nil {
		t.Error("Resolve of unknown ref succeeded")
	}
}

// --- Gates ---

func outputs(slugContent map[string]string) map[string]*generator.StageOutput {
	out := map[string]*generator.StageOutput{}
	for slug, content := range slugContent {
		out[slug] = &generator.StageOutput{Content: content}
	}
	return out
}

func TestGate_HardFailureNotOverridable(t *testing.T) {
	set := Default()
	gate := set.GateInto("delivery")
	if gate == nil {
		t.Fatal("no gate into delivery")
	}

	// Nothing produced yet: PriorWorkflowComplete fails hard.
	_, err := gate.Evaluate(map[string]*generator.StageOutput{}, true)
	var econd *EntryConditionError
	if !errors.As(err, &econd) {
		t.Fatalf("err = %v, want EntryConditionError", err)
	}
	if econd.Result.CanOverride {
		t.Error("missing prerequisite output must not be overridable")
	}
}

func completeValidationOutputs() map[string]*generator.StageOutput {
	outs := outputs(map[string]string{
		"idea-analysis":      "a thorough analysis of the idea and its users",
		"market-context":     "sizing and competitor context for the market",
		"risk-assessment":    "risk register with mitigations for each entry",
		"validation-summary": "summary long enough to clear the minimum length gate",
	})
	return outs
}

func TestGate_HardRejectionIsSoft(t *testing.T) {
	gate := Default().GateInto("delivery")

	outs := completeValidationOutputs()
	outs["validation-summary"].Claims = []generator.Claim{{
		Name:     "recommendation",
		Metadata: map[string]string{"verdict": "no-go"},
	}}

	// Blocked without override.
	_, err := gate.Evaluate(outs, false)
	var econd *EntryConditionError
	if !errors.As(err, &econd) {
		t.Fatalf("err = %v, want EntryConditionError", err)
	}
	if !econd.Result.CanOverride {
		t.Error("a negative recommendation should be overridable")
	}
	if econd.Result.Recommendation != "no-go" {
		t.Errorf("Recommendation = %q, want no-go", econd.Result.Recommendation)
	}

	// The explicit override bypasses it, demoted to a warning.
	results, err := gate.Evaluate(outs, true)
	if err != nil {
		t.Fatalf("Evaluate with override: %v", err)
	}
	last := results[len(results)-1]
	if last.Passed || len(last.Warnings) == 0 {
		t.Errorf("overridden result = %+v, want failed-with-warning", last)
	}
}

func TestGate_PassesWhenComplete(t *testing.T) {
	gate := Default().GateInto("delivery")

	outs := completeValidationOutputs()
	outs["validation-summary"].Claims = []generator.Claim{{
		Name:     "recommendation",
		Metadata: map[string]string{"verdict": "go"},
	}}

	results, err := gate.Evaluate(outs, false)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	for _, res := range results {
		if !res.Passed {
			t.Errorf("check failed: %+v", res)
		}
	}
}

// --- YAML definitions ---

const yamlDef = `
workflows:
  - id: triage
    display_name: Triage
    entry: intake
    stages:
      - slug: intake
        display_name: Intake
        producer: intake
      - slug: deep-dive
        display_name: Deep Dive
        producer: deep-dive
        required_context: [intake]
        execution_mode: parallel
        sub_producers: [tech-dive, ux-dive]
    transitions:
      - from: intake
        to: deep-dive
  - id: build
    display_name: Build
    entry: plan
    stages:
      - slug: plan
        display_name: Plan
        producer: plan
    transitions: []
gates:
  - from: triage
    to: build
    require_prior_complete: true
    min_claims:
      - stage: deep-dive
        count: 1
`

func TestParse_YAMLDefinition(t *testing.T) {
	set, err := Parse([]byte(yamlDef))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	wf := set.Workflow("triage")
	if wf == nil {
		t.Fatal("triage workflow missing")
	}
	stage := wf.Stage("deep-dive")
	if stage == nil || stage.ExecutionMode != Parallel || len(stage.SubProducers) != 2 {
		t.Errorf("deep-dive stage = %+v", stage)
	}
	if stage.WorkflowID != "triage" {
		t.Errorf("stage.WorkflowID = %q, want triage", stage.WorkflowID)
	}

	gate := set.GateInto("build")
	if gate == nil || len(gate.Checks) != 2 {
		t.Fatalf("gate into build = %+v", gate)
	}

	// The min_claims check fires on an empty deep-dive envelope.
	outs := outputs(map[string]string{"intake": "intake content", "deep-dive": "dive content"})
	_, err = gate.Evaluate(outs, false)
	if err == nil {
		t.Error("gate passed despite missing claims")
	}
}

func TestParse_Errors(t *testing.T) {
	cases := []string{
		"workflows: []",
		"{not yaml",
		`
workflows:
  - id: a
    stages: [{slug: x}]
  - id: a
    stages: [{slug: y}]
`,
		`
workflows:
  - id: a
    stages: [{slug: x}]
gates:
  - from: a
    to: ghost
`,
	}
	for i, in := range cases {
		if _, err := Parse([]byte(in)); err == nil {
			t.Errorf("case %d: Parse succeeded, want error", i)
		}
	}
}
