package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MarisolVega/artifex/internal/artifact"
)

var (
	storiesJSON   bool
	storiesStatus string
)

var storiesCmd = &cobra.Command{
	Use:   "stories",
	Short: "List the stories in the artifact graph",
	Long: `List all stories with their status, priority and task counts.

Use --status to filter (pending, interpreting, designing, designed,
implementing, completed) and --json for machine-readable output.`,
	RunE: runStories,
}

func init() {
	storiesCmd.Flags().BoolVar(&storiesJSON, "json", false, "Output in JSON format")
	storiesCmd.Flags().StringVar(&storiesStatus, "status", "", "Filter by story status")
	rootCmd.AddCommand(storiesCmd)
}

func runStories(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	var stories []artifact.Story
	if storiesStatus != "" {
		status := artifact.StoryStatus(storiesStatus)
		if err := artifact.ValidateStoryStatus(status); err != nil {
			return err
		}
		stories = store.ListStoriesByStatus(status)
	} else {
		stories = store.Graph().Stories
	}

	if storiesJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stories)
	}

	if len(stories) == 0 {
		fmt.Println("No stories.")
		return nil
	}
	fmt.Printf("%-8s %-12s %-8s %-6s %s\n", "ID", "STATUS", "PRIORITY", "TASKS", "TITLE")
	for _, s := range stories {
		fmt.Printf("%-8s %-12s %-8s %-6d %s\n", s.ID, s.Status, s.Priority, len(s.TaskIDs), s.Title)
	}
	return nil
}
