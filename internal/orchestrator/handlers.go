package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/MarisolVega/artifex/internal/generator"
	"github.com/MarisolVega/artifex/internal/workflow"
)

// GeneratorHandler adapts a producer ref to a generator call: the stage's
// upstream outputs become the prompt context, and the envelope comes back
// as-is.
func GeneratorHandler(gen generator.Generator, ref string) workflow.StageHandler {
	return workflow.HandlerFunc(func(ctx context.Context, sc workflow.StageContext) (*generator.StageOutput, error) {
		return gen.Invoke(ctx, ref, promptContext(sc), sc.Feedback)
	})
}

// RegisterProducers installs a generator-backed handler for every
// producer ref the workflow set names, sub-producers included.
func RegisterProducers(reg *workflow.Registry, gen generator.Generator, set *workflow.Set) error {
	seen := map[string]bool{}
	for _, wf := range set.Workflows {
		for _, stage := range wf.Stages {
			refs := append([]string{stage.ProducerRef}, stage.SubProducers...)
			for _, ref := range refs {
				if ref == "" || seen[ref] {
					continue
				}
				if err := reg.Register(ref, GeneratorHandler(gen, ref)); err != nil {
					return err
				}
				seen[ref] = true
			}
		}
	}
	return nil
}

// promptContext renders the upstream outputs as markdown sections, keyed
// and ordered by slug so the same inputs always produce the same prompt.
func promptContext(sc workflow.StageContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Stage: %s\n\n", sc.Stage.Slug)
	if sc.WorkflowID != "" {
		fmt.Fprintf(&b, "Workflow: %s\n", sc.WorkflowID)
	}
	if sc.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", sc.RunID)
	}

	slugs := make([]string, 0, len(sc.Upstream))
	for slug := range sc.Upstream {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	for _, slug := range slugs {
		fmt.Fprintf(&b, "\n## Upstream: %s\n\n%s\n", slug, sc.Upstream[slug])
	}
	return b.String()
}
