package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/MarisolVega/artifex/internal/semstore"
)

// CapabilitySupersedeTool handles the artifex_capability_supersede MCP
// tool. Supersession is the only way to replace a capability record:
// the store is append-only.
type CapabilitySupersedeTool struct {
	sem *semstore.Store
}

// NewCapabilitySupersedeTool creates the tool over the semantic store.
func NewCapabilitySupersedeTool(sem *semstore.Store) *CapabilitySupersedeTool {
	return &CapabilitySupersedeTool{sem: sem}
}

// Definition returns the MCP tool definition for registration.
func (t *CapabilitySupersedeTool) Definition() mcp.Tool {
	return mcp.NewTool("artifex_capability_supersede",
		mcp.WithDescription(
			"Replace a capability record with a new version. The old record is "+
				"marked superseded and the new one inserted with a back-reference, "+
				"atomically. Run `artifex_coverage_report` afterwards to see which "+
				"decisions, entities and stories the change affects.",
		),
		mcp.WithString("old_id",
			mcp.Required(),
			mcp.Description("The capability being replaced (e.g. CAP-F-001)."),
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name of the replacement capability."),
		),
		mcp.WithString("description",
			mcp.Description("Description of the replacement."),
		),
		mcp.WithString("subtype",
			mcp.Description("Capability subtype: functional, non_functional or operational. Defaults to functional."),
		),
		mcp.WithString("rationale",
			mcp.Description("Why the capability changed."),
		),
	)
}

// Handle processes the artifex_capability_supersede tool call.
func (t *CapabilitySupersedeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	oldID := req.GetString("old_id", "")
	subtype := semstore.Subtype(req.GetString("subtype", string(semstore.SubtypeFunctional)))

	newID, err := t.sem.Supersede(oldID, semstore.Record{
		Type:        semstore.TypeCapability,
		Subtype:     subtype,
		Name:        req.GetString("name", ""),
		Description: req.GetString("description", ""),
		Rationale:   req.GetString("rationale", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Superseding %s failed: %v", oldID, err)), nil
	}

	chain, err := t.sem.Chain(newID)
	if err != nil {
		return nil, fmt.Errorf("loading chain: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Capability Superseded\n\n`%s` -> `%s`\n\n## Chain\n\n", oldID, newID)
	for i, rec := range chain {
		marker := ""
		if i == len(chain)-1 {
			marker = " (head)"
		}
		fmt.Fprintf(&b, "%d. `%s` %s%s\n", i+1, rec.ID, rec.Name, marker)
	}
	b.WriteString("\nRun `artifex_coverage_report` to see the affected artifacts.\n")
	return mcp.NewToolResultText(b.String()), nil
}
