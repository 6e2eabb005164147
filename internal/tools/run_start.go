package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/MarisolVega/artifex/internal/orchestrator"
	"github.com/MarisolVega/artifex/internal/workflow"
)

// RunStartTool handles the artifex_run_start MCP tool.
// It executes the configured workflows end to end.
type RunStartTool struct {
	orch *orchestrator.Orchestrator
	runs *orchestrator.RunRegistry
}

// NewRunStartTool creates a RunStartTool with the given orchestrator.
func NewRunStartTool(orch *orchestrator.Orchestrator, runs *orchestrator.RunRegistry) *RunStartTool {
	return &RunStartTool{orch: orch, runs: runs}
}

// Definition returns the MCP tool definition for registration.
func (t *RunStartTool) Definition() mcp.Tool {
	return mcp.NewTool("artifex_run_start",
		mcp.WithDescription(
			"Execute the configured workflows end to end: each stage's producer "+
				"runs in sequence, entry gates are evaluated at workflow boundaries, "+
				"and every stage output is kept on the run. An overridable gate "+
				"failure (a negative recommendation) can be bypassed with `override`.",
		),
		mcp.WithBoolean("override",
			mcp.Description("Bypass overridable gate failures."),
		),
	)
}

// Handle processes the artifex_run_start tool call.
func (t *RunStartTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	run := orchestrator.NewRun()
	run.Override = boolArg(req, "override", false)
	t.runs.Add(run)

	err := t.orch.Execute(ctx, run)

	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s\n\n", run.ID)

	var econd *workflow.EntryConditionError
	switch {
	case errors.As(err, &econd):
		fmt.Fprintf(&b, "**Blocked entering %s:** %s\n", econd.To, econd.Result.Message)
		if econd.Result.CanOverride {
			b.WriteString("\nThis block is overridable: re-run with `override: true` to proceed anyway.\n")
		}
	case err != nil:
		fmt.Fprintf(&b, "**Failed:** %v\n\nCompleted stage outputs are retained on the run.\n", err)
	default:
		b.WriteString("**Completed.**\n")
	}

	b.WriteString("\n## Stages\n\n| Stage | Status |\n|-------|--------|\n")
	for _, cp := range run.Checkpoints {
		fmt.Fprintf(&b, "| %s | %s |\n", cp.Stage, cp.Status)
	}
	fmt.Fprintf(&b, "\nInspect with `artifex_run_status` (run_id `%s`).\n", run.ID)
	return mcp.NewToolResultText(b.String()), nil
}
