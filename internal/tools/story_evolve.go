package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/MarisolVega/artifex/internal/evolution"
)

// StoryEvolveTool handles the artifex_story_evolve MCP tool.
// It runs impact analysis and design evolution for a submitted story.
type StoryEvolveTool struct {
	engine *evolution.Engine
}

// NewStoryEvolveTool creates a StoryEvolveTool with the given engine.
func NewStoryEvolveTool(engine *evolution.Engine) *StoryEvolveTool {
	return &StoryEvolveTool{engine: engine}
}

// Definition returns the MCP tool definition for registration.
func (t *StoryEvolveTool) Definition() mcp.Tool {
	return mcp.NewTool("artifex_story_evolve",
		mcp.WithDescription(
			"Analyze a story's design impact and evolve the artifact graph. "+
				"Without `apply`, this is a dry run: proposed entities and decisions "+
				"are reported but nothing is written. With `apply`, auto-resolvable "+
				"decisions are recorded and new entities registered as planned; "+
				"decisions requiring approval block unless `approved` is set. "+
				"Conflicting decisions always block - resolve them by superseding "+
				"the existing decision first.",
		),
		mcp.WithString("story_id",
			mcp.Required(),
			mcp.Description("The story to evolve (S-NNN)."),
		),
		mcp.WithBoolean("apply",
			mcp.Description("Apply the evolution instead of only reporting it."),
		),
		mcp.WithBoolean("approved",
			mcp.Description("Confirm decisions that require human approval."),
		),
	)
}

// Handle processes the artifex_story_evolve tool call.
func (t *StoryEvolveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	storyID := req.GetString("story_id", "")
	apply := boolArg(req, "apply", false)
	approved := boolArg(req, "approved", false)

	var ev *evolution.Evolution
	var err error
	if apply {
		ev, err = t.engine.EvolveAndApply(storyID, approved)
	} else {
		ev, err = t.engine.Evolve(storyID)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Evolving %s failed: %v", storyID, err)), nil
	}

	return mcp.NewToolResultText(renderEvolution(ev, apply)), nil
}

func renderEvolution(ev *evolution.Evolution, applied bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Design Evolution: %s\n\n**Status:** %s\n\n", ev.StoryID, ev.Status)

	if len(ev.Conflicts) > 0 {
		b.WriteString("## Conflicts\n\n")
		for _, c := range ev.Conflicts {
			fmt.Fprintf(&b, "- Topic `%s`: proposed \"%s\" contradicts `%s` (\"%s\")\n",
				c.Topic, c.ProposedTitle, c.ExistingDecisionID, c.ExistingTitle)
			for _, s := range c.Suggestions {
				fmt.Fprintf(&b, "  - %s\n", s)
			}
		}
		b.WriteString("\nNothing was applied. Supersede the existing decision or withdraw the proposal.\n")
		return b.String()
	}

	if len(ev.Entities) > 0 {
		b.WriteString("## Entities\n\n")
		for _, e := range ev.Entities {
			fmt.Fprintf(&b, "- %s (%s)\n", e.Name, e.Reason)
		}
		b.WriteString("\n")
	}

	if len(ev.Decisions) > 0 {
		b.WriteString("## Decisions\n\n| Topic | Title | Auto-resolvable |\n|-------|-------|-----------------|\n")
		for _, d := range ev.Decisions {
			fmt.Fprintf(&b, "| %s | %s | %t |\n", d.Topic, d.Title, d.AutoResolvable)
		}
		b.WriteString("\n")
	}

	switch {
	case ev.Status == evolution.StatusBlockedOnApproval:
		b.WriteString("Approval required. Re-run with `apply: true, approved: true` to proceed.\n")
	case applied:
		b.WriteString("## Applied\n\n")
		b.WriteString("Decisions:\n" + bulletList(ev.AppliedDecisionIDs))
		b.WriteString("Entities registered as planned:\n" + bulletList(ev.RegisteredEntityIDs))
		b.WriteString("\nThe story is now `designed`. Next: `artifex_tasks_generate`.\n")
	default:
		b.WriteString("Dry run only. Re-run with `apply: true` to write the evolution.\n")
	}
	return b.String()
}
