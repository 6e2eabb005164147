package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/MarisolVega/artifex/internal/artifact"
	"github.com/MarisolVega/artifex/internal/coverage"
	"github.com/MarisolVega/artifex/internal/semstore"
)

// CoverageReportTool handles the artifex_coverage_report MCP tool.
// It computes the coverage diff from the semantic store and the
// artifact graph.
type CoverageReportTool struct {
	store artifact.Store
	sem   *semstore.Store
}

// NewCoverageReportTool creates a CoverageReportTool over both stores.
func NewCoverageReportTool(store artifact.Store, sem *semstore.Store) *CoverageReportTool {
	return &CoverageReportTool{store: store, sem: sem}
}

// Definition returns the MCP tool definition for registration.
func (t *CoverageReportTool) Definition() mcp.Tool {
	return mcp.NewTool("artifex_coverage_report",
		mcp.WithDescription(
			"Compute the coverage diff: which capabilities no decision serves, "+
				"which served capabilities lack an implementing story, and which "+
				"decisions, entities and stories a supersession affects. Pure "+
				"read, nothing is mutated.",
		),
	)
}

// Handle processes the artifex_coverage_report tool call.
func (t *CoverageReportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caps, err := capabilityInputs(t.sem)
	if err != nil {
		return nil, fmt.Errorf("loading capabilities: %w", err)
	}

	graph := t.store.Graph()
	diff := coverage.Compute(caps, graph.Decisions, graph.Entities, graph.Stories)

	var b strings.Builder
	b.WriteString("# Coverage Report\n\n")
	b.WriteString("## Uncovered Capabilities\n\n" + bulletList(diff.UncoveredCapabilities) + "\n")
	b.WriteString("## Served Capabilities Without Stories\n\n" + bulletList(diff.CapabilitiesWithoutStories) + "\n")
	b.WriteString("## Affected By Supersession\n\n")
	b.WriteString("Decisions:\n" + bulletList(diff.AffectedDecisions))
	b.WriteString("Entities:\n" + bulletList(diff.AffectedEntities))
	b.WriteString("Stories:\n" + bulletList(diff.AffectedStories))
	return mcp.NewToolResultText(b.String()), nil
}

// capabilityInputs projects semantic-store capability records, the
// whole chains included, into the diff's minimal capability view.
func capabilityInputs(sem *semstore.Store) ([]coverage.Capability, error) {
	active, err := sem.ListActive(semstore.TypeCapability)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var caps []coverage.Capability
	for _, rec := range active {
		chain, err := sem.Chain(rec.ID)
		if err != nil {
			return nil, err
		}
		for _, link := range chain {
			if seen[link.ID] {
				continue
			}
			seen[link.ID] = true
			caps = append(caps, coverage.Capability{
				ID:           link.ID,
				Subtype:      string(link.Subtype),
				SupersededBy: link.SupersededBy,
			})
		}
	}
	return caps, nil
}
