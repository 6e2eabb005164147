package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/MarisolVega/artifex/internal/orchestrator"
)

// RunStatusTool handles the artifex_run_status MCP tool.
// It renders a run's checkpoints and persisted stage outputs.
type RunStatusTool struct {
	runs *orchestrator.RunRegistry
}

// NewRunStatusTool creates a RunStatusTool over the run registry.
func NewRunStatusTool(runs *orchestrator.RunRegistry) *RunStatusTool {
	return &RunStatusTool{runs: runs}
}

// Definition returns the MCP tool definition for registration.
func (t *RunStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("artifex_run_status",
		mcp.WithDescription(
			"Show a run's per-stage checkpoints (status, timestamps, producer "+
				"durations) and which stages have persisted output. Checkpoints "+
				"are observability only - nothing downstream consumes them.",
		),
		mcp.WithString("run_id",
			mcp.Description("Run to inspect. Defaults to the latest run."),
		),
	)
}

// Handle processes the artifex_run_status tool call.
func (t *RunStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var run *orchestrator.Run
	if id := req.GetString("run_id", ""); id != "" {
		var err error
		run, err = t.runs.Get(id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Run %q not found. Known runs: %s", id, strings.Join(t.runs.IDs(), ", "))), nil
		}
	} else {
		run = t.runs.Latest()
		if run == nil {
			return mcp.NewToolResultError("No runs yet. Start one with `artifex_run_start`."), nil
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Run Status: %s\n\n**Workflow:** %s\n\n", run.ID, run.WorkflowID)

	b.WriteString("## Checkpoints\n\n| Stage | Status | Started | Finished | Producers |\n|-------|--------|---------|----------|-----------|\n")
	for _, cp := range run.Checkpoints {
		var durations []string
		for ref, d := range cp.Durations {
			durations = append(durations, fmt.Sprintf("%s: %s", ref, d))
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			cp.Stage, cp.Status, cp.StartedAt, cp.FinishedAt, strings.Join(durations, ", "))
	}

	b.WriteString("\n## Outputs\n\n")
	if len(run.Outputs) == 0 {
		b.WriteString("- (none)\n")
	}
	for slug, out := range run.Outputs {
		fmt.Fprintf(&b, "- `%s`: %d chars, %d claims\n", slug, len(out.Content), len(out.Claims))
	}
	if len(run.Flags) > 0 {
		b.WriteString("\n## Flags\n\n")
		for flag := range run.Flags {
			fmt.Fprintf(&b, "- %s\n", flag)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}
