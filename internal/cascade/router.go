package cascade

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MarisolVega/artifex/internal/generator"
	"github.com/MarisolVega/artifex/internal/workflow"
)

// routingStage is the slug the classifier call is invoked under. It is
// not a workflow stage; it only labels the producer call.
const routingStage = "feedback-routing"

// Route is the outcome of classifying a piece of feedback.
type Route struct {
	AffectedStages []string `json:"affected_stages"`
	Reasoning      string   `json:"reasoning,omitempty"`
}

// Router maps free-form feedback onto the stages it affects, using the
// generator as a classifier. The router never trusts the classifier
// blindly: slugs outside the workflow are discarded, and an empty
// classification defaults to the workflow's last stage.
type Router struct {
	gen generator.Generator
}

// NewRouter creates a router backed by the given generator.
func NewRouter(gen generator.Generator) *Router {
	return &Router{gen: gen}
}

// Route classifies feedback against the workflow's stage list.
func (r *Router) Route(ctx context.Context, wf *workflow.Workflow, feedback string) (*Route, error) {
	if strings.TrimSpace(feedback) == "" {
		return nil, fmt.Errorf("cascade: feedback text is required")
	}

	out, err := r.gen.Invoke(ctx, routingStage, routingPrompt(wf), feedback)
	if err != nil {
		return nil, fmt.Errorf("routing feedback: %w", err)
	}

	affected := keepKnown(wf, parseSlugs(out.Content))
	if len(affected) == 0 {
		// Nothing recognizable: treat the feedback as a revision of the
		// final stage, the narrowest possible scope.
		slugs := wf.StageSlugs()
		affected = []string{slugs[len(slugs)-1]}
	}
	return &Route{AffectedStages: affected, Reasoning: out.TLDR}, nil
}

func routingPrompt(wf *workflow.Workflow) string {
	var b strings.Builder
	b.WriteString("You are a feedback router. Given user feedback on a pipeline run,\n")
	b.WriteString("identify which stages the feedback is about.\n\n")
	b.WriteString("## Stages\n\n")
	for _, s := range wf.Stages {
		fmt.Fprintf(&b, "- %s: %s\n", s.Slug, s.DisplayName)
	}
	b.WriteString("\nRespond with a JSON array of affected stage slugs in the content field.\n")
	return b.String()
}

// parseSlugs accepts either a JSON string array or a loose list separated
// by commas or newlines. Classifier output is text, so both shapes occur.
func parseSlugs(content string) []string {
	content = strings.TrimSpace(content)

	var arr []string
	if err := json.Unmarshal([]byte(content), &arr); err == nil {
		return arr
	}

	fields := strings.FieldsFunc(content, func(r rune) bool {
		return r == ',' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(strings.TrimSpace(f), `"-* `)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// keepKnown filters to the workflow's stages, preserving workflow order
// and dropping duplicates.
func keepKnown(wf *workflow.Workflow, slugs []string) []string {
	wanted := map[string]bool{}
	for _, s := range slugs {
		if wf.StageIndex(s) >= 0 {
			wanted[s] = true
		}
	}
	var out []string
	for _, s := range wf.StageSlugs() {
		if wanted[s] {
			out = append(out, s)
		}
	}
	return out
}
