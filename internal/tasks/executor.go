package tasks

import (
	"fmt"

	"github.com/MarisolVega/artifex/internal/artifact"
)

// Executor drives the per-task state machine:
//
//	pending -> in_progress -> completed | failed
//
// Completion has two rollup side effects: a model/define task marks the
// story's dependent entities implemented, and completing the story's last
// open task completes the story. Failure increments the advisory retry
// counter; whether to retry or give up is the caller's call.
type Executor struct {
	store artifact.Store
}

// NewExecutor creates a task executor over the given store.
func NewExecutor(store artifact.Store) *Executor {
	return &Executor{store: store}
}

// Start transitions a pending (or failed, for a retry) task to in_progress.
func (e *Executor) Start(taskID string) error {
	task, err := e.store.GetTask(taskID)
	if err != nil {
		return err
	}
	if task.Status != artifact.TaskPending && task.Status != artifact.TaskFailed {
		return &artifact.ValidationError{
			ArtifactID: taskID,
			Reason:     fmt.Sprintf("cannot start from status %q", task.Status),
		}
	}
	return e.store.UpdateStatus(taskID, string(artifact.TaskInProgress), nil)
}

// Complete transitions an in_progress task to completed and applies the
// rollups. filePath optionally records where the work landed.
func (e *Executor) Complete(taskID, filePath string) error {
	task, err := e.store.GetTask(taskID)
	if err != nil {
		return err
	}
	if task.Status != artifact.TaskInProgress {
		return &artifact.ValidationError{
			ArtifactID: taskID,
			Reason:     fmt.Sprintf("cannot complete from status %q (start it first)", task.Status),
		}
	}

	extra := map[string]string{}
	if filePath != "" {
		extra["file_path"] = filePath
	}
	if err := e.store.UpdateStatus(taskID, string(artifact.TaskCompleted), extra); err != nil {
		return err
	}

	if isModelTask(task.Title) {
		if err := e.markEntitiesImplemented(task.StoryID, filePath); err != nil {
			return err
		}
	}
	return e.rollupStory(task.StoryID)
}

// Fail transitions an in_progress task to failed with a reason. The retry
// counter is advisory; the executor never retries on its own.
func (e *Executor) Fail(taskID, reason string) error {
	task, err := e.store.GetTask(taskID)
	if err != nil {
		return err
	}
	if task.Status != artifact.TaskInProgress {
		return &artifact.ValidationError{
			ArtifactID: taskID,
			Reason:     fmt.Sprintf("cannot fail from status %q", task.Status),
		}
	}
	return e.store.UpdateStatus(taskID, string(artifact.TaskFailed), map[string]string{"fail_reason": reason})
}

// markEntitiesImplemented flips the story's entity dependencies to
// implemented once their model task completes.
func (e *Executor) markEntitiesImplemented(storyID, filePath string) error {
	story, err := e.store.GetStory(storyID)
	if err != nil {
		return err
	}
	for _, dep := range story.DependsOn {
		prefix, ok := artifact.PrefixOf(dep)
		if !ok || prefix != artifact.PrefixEntity {
			continue
		}
		extra := map[string]string{}
		if filePath != "" {
			extra["file_path"] = filePath
		}
		if err := e.store.UpdateStatus(dep, string(artifact.EntityImplemented), extra); err != nil {
			return fmt.Errorf("marking entity %s implemented: %w", dep, err)
		}
	}
	return nil
}

// rollupStory completes the story once every one of its tasks is
// completed. Anything still pending, in progress, or failed holds the
// story at implementing.
func (e *Executor) rollupStory(storyID string) error {
	all, err := e.store.TasksForStory(storyID)
	if err != nil {
		return err
	}
	for _, t := range all {
		if t.Status != artifact.TaskCompleted {
			return nil
		}
	}
	return e.store.UpdateStatus(storyID, string(artifact.StoryCompleted), nil)
}
