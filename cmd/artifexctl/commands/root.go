package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MarisolVega/artifex/internal/artifact"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "artifexctl",
	Short: "Artifexctl - inspect the Artifex artifact graph",
	Long: `Artifexctl reads the persisted artifact graph and semantic store of an
Artifex project and renders stories, the task board and coverage reports.

It never mutates anything; all writes go through the MCP server.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
// This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the CLI version shown by --version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// projectRoot walks up from the working directory looking for an
// artifex/ data directory.
func projectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}

	current := dir
	for {
		if _, err := os.Stat(filepath.Join(current, "artifex", "graph.json")); err == nil {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no artifex project found above %s", dir)
		}
		current = parent
	}
}

// openStore opens the artifact graph of the enclosing project.
func openStore() (artifact.Store, error) {
	root, err := projectRoot()
	if err != nil {
		return nil, err
	}
	return artifact.NewFileStore(artifact.GraphPath(root))
}
