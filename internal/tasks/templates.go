// Package tasks expands a designed story into typed implementation tasks
// and drives their execution state machine, rolling completion up to the
// entity and story level.
package tasks

import (
	"fmt"
	"strings"

	"github.com/MarisolVega/artifex/internal/artifact"
	"github.com/MarisolVega/artifex/internal/impact"
)

// taskTemplate is instantiated with the story's extracted object noun.
type taskTemplate struct {
	kind     artifact.TaskKind
	titleFmt string
	descFmt  string
}

// taskTemplates maps each canonical verb to its task expansion. Unknown
// verbs never reach this table - Classify falls back to read.
var taskTemplates = map[impact.Verb][]taskTemplate{
	impact.VerbCreate: {
		{artifact.TaskBackend, "Define the %s model", "Model the %s entity with its attributes and relationships"},
		{artifact.TaskBackend, "Build the %s creation endpoint", "Accept, validate, and persist new %s records"},
		{artifact.TaskFrontend, "Build the %s creation form", "Form with validation feedback for creating a %s"},
		{artifact.TaskTest, "Test %s creation", "Cover the happy path and validation failures for %s creation"},
	},
	impact.VerbRead: {
		{artifact.TaskBackend, "Build the %s retrieval endpoint", "Fetch %s records with their related data"},
		{artifact.TaskFrontend, "Build the %s view", "Render %s records in list and detail views"},
		{artifact.TaskTest, "Test %s viewing", "Cover %s retrieval including the empty state"},
	},
	impact.VerbUpdate: {
		{artifact.TaskBackend, "Build the %s update endpoint", "Validate and apply partial updates to %s records"},
		{artifact.TaskFrontend, "Build the %s edit form", "Pre-populated edit form for %s records"},
		{artifact.TaskTest, "Test %s editing", "Cover %s updates including concurrent-edit conflicts"},
	},
	impact.VerbDelete: {
		{artifact.TaskBackend, "Build the %s removal endpoint", "Remove %s records per the agreed deletion strategy"},
		{artifact.TaskFrontend, "Add the %s removal control", "Confirmation flow for removing a %s"},
		{artifact.TaskTest, "Test %s removal", "Cover %s removal and reference integrity"},
	},
	impact.VerbSearch: {
		{artifact.TaskBackend, "Define the %s search index", "Index %s records for the chosen search implementation"},
		{artifact.TaskBackend, "Build the %s search endpoint", "Query the %s index with filters and ranking"},
		{artifact.TaskFrontend, "Build the %s search UI", "Search input with result list for %s records"},
		{artifact.TaskTest, "Test %s search", "Cover %s search matching, filtering, and the no-result case"},
	},
}

// modelTaskMarkers identify tasks whose completion means the story's
// dependent entities now exist in code.
var modelTaskMarkers = []string{"model", "define"}

// isModelTask reports whether a task title matches the model/define pattern.
func isModelTask(title string) bool {
	lower := strings.ToLower(title)
	for _, marker := range modelTaskMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// instantiate renders the template for an object noun.
func (tpl taskTemplate) instantiate(storyID, object string) artifact.Task {
	return artifact.Task{
		StoryID:     storyID,
		Kind:        tpl.kind,
		Title:       fmt.Sprintf(tpl.titleFmt, object),
		Description: fmt.Sprintf(tpl.descFmt, object),
	}
}
