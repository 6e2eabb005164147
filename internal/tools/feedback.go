package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/MarisolVega/artifex/internal/cascade"
	"github.com/MarisolVega/artifex/internal/orchestrator"
	"github.com/MarisolVega/artifex/internal/workflow"
)

// FeedbackTool handles the artifex_feedback MCP tool.
// It routes feedback onto a run's stages and cascades the revision.
type FeedbackTool struct {
	set      *workflow.Set
	runs     *orchestrator.RunRegistry
	router   *cascade.Router
	executor *cascade.Executor
}

// NewFeedbackTool creates a FeedbackTool with the given collaborators.
func NewFeedbackTool(set *workflow.Set, runs *orchestrator.RunRegistry, router *cascade.Router, executor *cascade.Executor) *FeedbackTool {
	return &FeedbackTool{set: set, runs: runs, router: router, executor: executor}
}

// Definition returns the MCP tool definition for registration.
func (t *FeedbackTool) Definition() mcp.Tool {
	return mcp.NewTool("artifex_feedback",
		mcp.WithDescription(
			"Apply free-form feedback to a run. The feedback is routed onto "+
				"the stages it concerns; the earliest affected stage is re-derived "+
				"with the feedback text and every later stage is re-derived in "+
				"cascade, consuming the already-revised upstream outputs. A failing "+
				"stage does not abort the cascade - the result reports partial.",
		),
		mcp.WithString("feedback",
			mcp.Required(),
			mcp.Description("The feedback text."),
		),
		mcp.WithString("run_id",
			mcp.Description("Run to revise. Defaults to the latest run."),
		),
		mcp.WithString("workflow_id",
			mcp.Description("Workflow the feedback concerns. Defaults to the run's current workflow."),
		),
	)
}

// Handle processes the artifex_feedback tool call.
func (t *FeedbackTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	feedback := req.GetString("feedback", "")

	run, err := t.resolveRun(req.GetString("run_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	workflowID := req.GetString("workflow_id", run.WorkflowID)
	wf := t.set.Workflow(workflowID)
	if wf == nil {
		return mcp.NewToolResultError(fmt.Sprintf("Unknown workflow %q", workflowID)), nil
	}

	route, err := t.router.Route(ctx, wf, feedback)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Routing feedback failed: %v", err)), nil
	}

	result, err := t.executor.Revise(ctx, run.ID, wf, route.AffectedStages, feedback, run.Outputs)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Revision failed: %v", err)), nil
	}

	// Fold the revised outputs back onto the run.
	for slug, out := range result.Revised {
		run.Outputs[slug] = out
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Feedback Applied: %s\n\n**Status:** %s\n", run.ID, result.Status)
	if route.Reasoning != "" {
		fmt.Fprintf(&b, "**Routing:** %s\n", route.Reasoning)
	}
	b.WriteString("\n## Revised\n\n" + bulletList(result.RevisedSlugs))
	if len(result.Skipped) > 0 {
		b.WriteString("\n## Skipped (no prior output)\n\n" + bulletList(result.Skipped))
	}
	if len(result.Failures) > 0 {
		b.WriteString("\n## Failed\n\n")
		for _, f := range result.Failures {
			fmt.Fprintf(&b, "- `%s`: %s\n", f.Slug, f.Reason)
		}
		b.WriteString("\nSucceeded stages were kept; re-run feedback to retry the failed ones.\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (t *FeedbackTool) resolveRun(runID string) (*orchestrator.Run, error) {
	if runID != "" {
		run, err := t.runs.Get(runID)
		if err != nil {
			return nil, fmt.Errorf("Run %q not found. Start one with `artifex_run_start`.", runID)
		}
		return run, nil
	}
	run := t.runs.Latest()
	if run == nil {
		return nil, fmt.Errorf("No runs yet. Start one with `artifex_run_start`.")
	}
	return run, nil
}
