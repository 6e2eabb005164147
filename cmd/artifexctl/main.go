// Artifexctl: read-only CLI over the Artifex artifact graph
//
// Inspects the persisted graph and semantic store without going through
// the MCP server: story listings, the task board and coverage reports.
package main

import (
	"os"

	"github.com/MarisolVega/artifex/cmd/artifexctl/commands"
)

var version = "dev"

func main() {
	commands.SetVersion(version)
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
