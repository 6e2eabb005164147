package tasks

import (
	"fmt"

	"github.com/MarisolVega/artifex/internal/artifact"
	"github.com/MarisolVega/artifex/internal/impact"
)

// Generator expands designed stories into tasks.
type Generator struct {
	store artifact.Store
}

// NewGenerator creates a task generator over the given store.
func NewGenerator(store artifact.Store) *Generator {
	return &Generator{store: store}
}

// Generate expands the story into its verb's task template set and
// persists the tasks, advancing the story to implementing. The story must
// not already have tasks - regeneration goes through the feedback cascade,
// not through blind re-expansion.
func (g *Generator) Generate(storyID string) ([]artifact.Task, error) {
	story, err := g.store.GetStory(storyID)
	if err != nil {
		return nil, fmt.Errorf("loading story: %w", err)
	}
	if len(story.TaskIDs) > 0 {
		return nil, &artifact.ValidationError{ArtifactID: storyID, Reason: "story already has tasks"}
	}

	verb, object := impact.Classify(story.UserStoryText)
	templates, ok := taskTemplates[verb]
	if !ok {
		templates = taskTemplates[impact.VerbRead]
	}

	out := make([]artifact.Task, 0, len(templates))
	for _, tpl := range templates {
		task := tpl.instantiate(storyID, object)
		id, err := g.store.AddTask(task)
		if err != nil {
			return out, fmt.Errorf("adding task %q: %w", task.Title, err)
		}
		task.ID = id
		task.Status = artifact.TaskPending
		out = append(out, task)
	}

	if err := g.store.UpdateStatus(storyID, string(artifact.StoryImplementing), nil); err != nil {
		return out, fmt.Errorf("advancing story: %w", err)
	}
	return out, nil
}
