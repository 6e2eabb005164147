package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Set is a validated collection of workflows plus the gates between them.
type Set struct {
	Workflows []Workflow
	Gates     []Gate
}

// Workflow returns the workflow with the given ID, or nil.
func (s *Set) Workflow(id string) *Workflow {
	for i := range s.Workflows {
		if s.Workflows[i].ID == id {
			return &s.Workflows[i]
		}
	}
	return nil
}

// GateInto returns the gate guarding entry into the given workflow, or nil
// when entry is unguarded.
func (s *Set) GateInto(workflowID string) *Gate {
	for i := range s.Gates {
		if s.Gates[i].To == workflowID {
			return &s.Gates[i]
		}
	}
	return nil
}

// --- YAML definitions ---
//
// Workflow structure is declarative; gate checks are assembled from a
// fixed vocabulary of rule kinds so the YAML stays data, not code.

type fileDoc struct {
	Workflows []Workflow `yaml:"workflows"`
	Gates     []gateDoc  `yaml:"gates"`
}

type gateDoc struct {
	From                 string `yaml:"from"`
	To                   string `yaml:"to"`
	RequirePriorComplete bool   `yaml:"require_prior_complete"`
	MinContent           []struct {
		Stage string `yaml:"stage"`
		Chars int    `yaml:"chars"`
	} `yaml:"min_content"`
	MinClaims []struct {
		Stage string `yaml:"stage"`
		Count int    `yaml:"count"`
	} `yaml:"min_claims"`
	NoHardRejection string `yaml:"no_hard_rejection"`
}

// Parse decodes and validates a YAML workflow definition.
func Parse(data []byte) (*Set, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing workflow definition: %w", err)
	}
	if len(doc.Workflows) == 0 {
		return nil, fmt.Errorf("workflow definition declares no workflows")
	}

	set := &Set{Workflows: doc.Workflows}
	ids := map[string]bool{}
	for i := range set.Workflows {
		w := &set.Workflows[i]
		if err := w.Validate(); err != nil {
			return nil, err
		}
		if ids[w.ID] {
			return nil, fmt.Errorf("duplicate workflow id %q", w.ID)
		}
		ids[w.ID] = true
	}

	for _, gd := range doc.Gates {
		if !ids[gd.From] || !ids[gd.To] {
			return nil, fmt.Errorf("gate %s -> %s references an unknown workflow", gd.From, gd.To)
		}
		gate := Gate{From: gd.From, To: gd.To}
		if gd.RequirePriorComplete {
			gate.Checks = append(gate.Checks, PriorWorkflowComplete(set.Workflow(gd.From)))
		}
		for _, mc := range gd.MinContent {
			gate.Checks = append(gate.Checks, MinContentLength(mc.Stage, mc.Chars))
		}
		for _, mc := range gd.MinClaims {
			gate.Checks = append(gate.Checks, MinClaims(mc.Stage, mc.Count))
		}
		if gd.NoHardRejection != "" {
			gate.Checks = append(gate.Checks, NoHardRejection(gd.NoHardRejection))
		}
		set.Gates = append(set.Gates, gate)
	}
	return set, nil
}

// LoadFile reads a workflow definition from disk. A missing file falls
// back to the built-in default set.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading workflow definition: %w", err)
	}
	return Parse(data)
}

// Default returns the built-in two-workflow set: idea validation feeding
// story delivery, with a soft gate between them.
func Default() *Set {
	validation := Workflow{
		ID:          "validation",
		DisplayName: "Idea Validation",
		Entry:       "idea-analysis",
		Stages: []Stage{
			{Slug: "idea-analysis", DisplayName: "Idea Analysis", WorkflowID: "validation", ProducerRef: "idea-analysis", ExecutionMode: Single},
			{Slug: "market-context", DisplayName: "Market Context", WorkflowID: "validation", ProducerRef: "market-context", ExecutionMode: Parallel,
				SubProducers:         []string{"market-sizing", "competitor-scan"},
				RequiredContextSlugs: []string{"idea-analysis"}},
			{Slug: "risk-assessment", DisplayName: "Risk Assessment", WorkflowID: "validation", ProducerRef: "risk-assessment", ExecutionMode: Single,
				RequiredContextSlugs: []string{"idea-analysis", "market-context"}},
			{Slug: "risk-remediation", DisplayName: "Risk Remediation", WorkflowID: "validation", ProducerRef: "risk-remediation", ExecutionMode: Single,
				RequiredContextSlugs: []string{"risk-assessment"}, IsOptional: true},
			{Slug: "validation-summary", DisplayName: "Validation Summary", WorkflowID: "validation", ProducerRef: "validation-summary", ExecutionMode: Single,
				RequiredContextSlugs: []string{"idea-analysis", "market-context", "risk-assessment"}},
		},
		Transitions: []Transition{
			{From: "idea-analysis", To: "market-context"},
			{From: "market-context", To: "risk-assessment"},
			// The remediation branch only runs when the risk producer
			// raised the high_risk flag.
			{From: "risk-assessment", To: "risk-remediation", When: "high_risk"},
			{From: "risk-assessment", To: "validation-summary"},
			{From: "risk-remediation", To: "validation-summary"},
		},
	}

	delivery := Workflow{
		ID:          "delivery",
		DisplayName: "Story Delivery",
		Entry:       "story-interpretation",
		Stages: []Stage{
			{Slug: "story-interpretation", DisplayName: "Story Interpretation", WorkflowID: "delivery", ProducerRef: "story-interpretation", ExecutionMode: Single},
			{Slug: "design-evolution", DisplayName: "Design Evolution", WorkflowID: "delivery", ProducerRef: "design-evolution", ExecutionMode: Single,
				RequiredContextSlugs: []string{"story-interpretation"}},
			{Slug: "task-breakdown", DisplayName: "Task Breakdown", WorkflowID: "delivery", ProducerRef: "task-breakdown", ExecutionMode: Single,
				RequiredContextSlugs: []string{"design-evolution"}},
		},
		Transitions: []Transition{
			{From: "story-interpretation", To: "design-evolution"},
			{From: "design-evolution", To: "task-breakdown"},
		},
	}

	set := &Set{Workflows: []Workflow{validation, delivery}}
	set.Gates = []Gate{{
		From: "validation",
		To:   "delivery",
		Checks: []Check{
			PriorWorkflowComplete(set.Workflow("validation")),
			MinContentLength("validation-summary", 40),
			NoHardRejection("validation-summary"),
		},
	}}
	return set
}
