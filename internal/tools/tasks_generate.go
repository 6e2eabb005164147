package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/MarisolVega/artifex/internal/tasks"
)

// TasksGenerateTool handles the artifex_tasks_generate MCP tool.
// It expands a designed story into typed implementation tasks.
type TasksGenerateTool struct {
	generator *tasks.Generator
}

// NewTasksGenerateTool creates a TasksGenerateTool with the given generator.
func NewTasksGenerateTool(generator *tasks.Generator) *TasksGenerateTool {
	return &TasksGenerateTool{generator: generator}
}

// Definition returns the MCP tool definition for registration.
func (t *TasksGenerateTool) Definition() mcp.Tool {
	return mcp.NewTool("artifex_tasks_generate",
		mcp.WithDescription(
			"Expand a designed story into typed tasks (backend, frontend, test) "+
				"from its classified action. The story moves to `implementing`. "+
				"Fails if the story already has tasks - task generation is not "+
				"idempotent by design.",
		),
		mcp.WithString("story_id",
			mcp.Required(),
			mcp.Description("The designed story to expand (S-NNN)."),
		),
	)
}

// Handle processes the artifex_tasks_generate tool call.
func (t *TasksGenerateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	storyID := req.GetString("story_id", "")

	generated, err := t.generator.Generate(storyID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Generating tasks for %s failed: %v", storyID, err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Tasks Generated: %s\n\n| ID | Kind | Title |\n|----|------|-------|\n", storyID)
	for _, task := range generated {
		fmt.Fprintf(&b, "| `%s` | %s | %s |\n", task.ID, task.Kind, task.Title)
	}
	b.WriteString("\nThe story is now `implementing`. Drive tasks with `artifex_task_update`.\n")
	return mcp.NewToolResultText(b.String()), nil
}
