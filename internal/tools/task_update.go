package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/MarisolVega/artifex/internal/artifact"
	"github.com/MarisolVega/artifex/internal/tasks"
)

// TaskUpdateTool handles the artifex_task_update MCP tool.
// It drives the per-task state machine and the derived rollups.
type TaskUpdateTool struct {
	store    artifact.Store
	executor *tasks.Executor
}

// NewTaskUpdateTool creates a TaskUpdateTool with the given store and executor.
func NewTaskUpdateTool(store artifact.Store, executor *tasks.Executor) *TaskUpdateTool {
	return &TaskUpdateTool{store: store, executor: executor}
}

// Definition returns the MCP tool definition for registration.
func (t *TaskUpdateTool) Definition() mcp.Tool {
	return mcp.NewTool("artifex_task_update",
		mcp.WithDescription(
			"Advance a task through its state machine: `start` (pending or "+
				"failed -> in_progress), `complete` (in_progress -> completed, "+
				"optionally recording the file path) or `fail` (in_progress -> "+
				"failed with a reason, incrementing the retry counter). Completing "+
				"a story's last task completes the story; completing a model task "+
				"marks its entities implemented.",
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("The task to update (T-NNN)."),
		),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("One of: start, complete, fail."),
		),
		mcp.WithString("file_path",
			mcp.Description("File produced by the task (for `complete`)."),
		),
		mcp.WithString("reason",
			mcp.Description("Failure reason (for `fail`)."),
		),
	)
}

// Handle processes the artifex_task_update tool call.
func (t *TaskUpdateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	action := req.GetString("action", "")

	var err error
	switch action {
	case "start":
		err = t.executor.Start(taskID)
	case "complete":
		err = t.executor.Complete(taskID, req.GetString("file_path", ""))
	case "fail":
		err = t.executor.Fail(taskID, req.GetString("reason", ""))
	default:
		return mcp.NewToolResultError(fmt.Sprintf("Unknown action %q: must be one of: start, complete, fail", action)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Updating %s failed: %v", taskID, err)), nil
	}

	task, err := t.store.GetTask(taskID)
	if err != nil {
		return nil, fmt.Errorf("reloading task: %w", err)
	}
	story, err := t.store.GetStory(task.StoryID)
	if err != nil {
		return nil, fmt.Errorf("reloading story: %w", err)
	}

	response := fmt.Sprintf(
		"# Task Updated\n\n**Task:** `%s` -> %s\n**Story:** `%s` (%s)\n",
		task.ID, task.Status, story.ID, story.Status,
	)
	if task.Status == artifact.TaskFailed {
		response += fmt.Sprintf("**Retries so far:** %d\n**Reason:** %s\n", task.RetryCount, task.FailReason)
	}
	return mcp.NewToolResultText(response), nil
}
