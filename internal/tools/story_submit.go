package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/MarisolVega/artifex/internal/artifact"
)

// StorySubmitTool handles the artifex_story_submit MCP tool.
// It validates and persists a new user story into the artifact graph.
type StorySubmitTool struct {
	store artifact.Store
}

// NewStorySubmitTool creates a StorySubmitTool with the given store.
func NewStorySubmitTool(store artifact.Store) *StorySubmitTool {
	return &StorySubmitTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *StorySubmitTool) Definition() mcp.Tool {
	return mcp.NewTool("artifex_story_submit",
		mcp.WithDescription(
			"Submit a new user story to the artifact graph. The story is "+
				"validated (required fields, resolvable references, no dependency "+
				"cycles) and stored with status `pending`. Returns the allocated "+
				"story ID.",
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Short story title."),
		),
		mcp.WithString("user_story_text",
			mcp.Required(),
			mcp.Description("The full user story text (As a..., I want..., so that...)."),
		),
		mcp.WithString("priority",
			mcp.Description("Priority: high, medium or low."),
		),
		mcp.WithString("acceptance_criteria",
			mcp.Description("Acceptance criteria, one per line or comma-separated."),
		),
		mcp.WithString("depends_on",
			mcp.Description("Dependencies: entity IDs (E-NNN), story IDs (S-NNN) or bare entity names, comma-separated."),
		),
	)
}

// Handle processes the artifex_story_submit tool call.
func (t *StorySubmitTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	story := artifact.Story{
		Title:              req.GetString("title", ""),
		UserStoryText:      req.GetString("user_story_text", ""),
		Priority:           req.GetString("priority", "medium"),
		AcceptanceCriteria: splitList(req.GetString("acceptance_criteria", "")),
		DependsOn:          splitList(req.GetString("depends_on", "")),
	}

	id, err := t.store.AddStory(story)
	if err != nil {
		var verr *artifact.ValidationError
		if errors.As(err, &verr) {
			return mcp.NewToolResultError(fmt.Sprintf("Story rejected: %v", verr)), nil
		}
		return nil, fmt.Errorf("adding story: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Story Submitted\n\n**ID:** `%s`\n**Title:** %s\n**Status:** pending\n", id, story.Title)
	if len(story.DependsOn) > 0 {
		b.WriteString("\n## Depends On\n\n")
		b.WriteString(bulletList(story.DependsOn))
	}
	b.WriteString("\nNext: run `artifex_story_evolve` to analyze its design impact.\n")
	return mcp.NewToolResultText(b.String()), nil
}
