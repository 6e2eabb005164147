// Package generator defines the contract with the generative producer
// behind every pipeline stage. The producer is an opaque external
// collaborator: Artifex specifies the envelope it must return and treats
// everything about its internal reasoning as out of scope.
package generator

import (
	"context"
	"fmt"
)

// Claim is one structured assertion extracted from a producer response,
// shaped like a persistable semantic-store artifact record.
type Claim struct {
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Affects     []string          `json:"affects,omitempty"`
	DependsOn   []string          `json:"depends_on,omitempty"`
	Supersedes  string            `json:"supersedes,omitempty"`
	SourceStage string            `json:"source_stage,omitempty"`
	Rationale   string            `json:"rationale,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// StageOutput is the envelope every producer call returns. Content is the
// persisted stage artifact; the rest is metadata for downstream validators.
type StageOutput struct {
	TLDR             string  `json:"tldr"`
	ComplianceReport string  `json:"compliance_report,omitempty"`
	Claims           []Claim `json:"claims,omitempty"`
	Content          string  `json:"content"`
}

// Generator invokes the producer for one stage. feedback is empty for
// normal derivation and carries the user's text during a feedback
// revision. Implementations must not retry - retry policy is caller-owned.
type Generator interface {
	Invoke(ctx context.Context, stageSlug, promptContext, feedback string) (*StageOutput, error)
}

// Error wraps a producer failure with the stage it happened on.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("generator: stage %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
