// Package cascade routes free-form feedback onto workflow stages and
// re-derives the contiguous downstream range that the change invalidates.
//
// The cascade scope is always a suffix of the workflow's declared stage
// order: a change to stage N invalidates N and everything after it,
// because later stages consumed N's output as context.
package cascade

import (
	"github.com/MarisolVega/artifex/internal/workflow"
)

// StagesToRevise returns the contiguous suffix of the workflow's stages
// starting at the earliest affected index. Slugs not in the workflow are
// ignored; an empty result means nothing known was affected.
func StagesToRevise(wf *workflow.Workflow, affected []string) []string {
	earliest := earliestIndex(wf, affected)
	if earliest < 0 {
		return nil
	}
	return wf.StageSlugs()[earliest:]
}

// IsCascadeNeeded reports whether revising the affected stages implies
// re-deriving anything downstream. Feedback landing on the last stage
// alone revises that stage only.
func IsCascadeNeeded(wf *workflow.Workflow, affected []string) bool {
	earliest := earliestIndex(wf, affected)
	return earliest >= 0 && earliest < len(wf.Stages)-1
}

func earliestIndex(wf *workflow.Workflow, affected []string) int {
	earliest := -1
	for _, slug := range affected {
		idx := wf.StageIndex(slug)
		if idx < 0 {
			continue
		}
		if earliest < 0 || idx < earliest {
			earliest = idx
		}
	}
	return earliest
}
