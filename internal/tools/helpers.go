// Package tools implements the MCP tool handlers for the Artifex
// pipeline.
//
// Each tool is a struct that receives its dependencies at construction
// and exposes a Definition for registration plus a Handle compatible
// with mcp-go's CallToolRequest signature. One file per tool.
package tools

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// splitList parses a human-typed list argument: items separated by
// commas or newlines, blanks dropped.
func splitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n'
	})
	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// bulletList renders ids as a markdown list, or a dash when empty.
func bulletList(ids []string) string {
	if len(ids) == 0 {
		return "- (none)\n"
	}
	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "- `%s`\n", id)
	}
	return b.String()
}
