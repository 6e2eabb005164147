package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MarisolVega/artifex/internal/artifact"
)

var boardJSON bool

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show the task board, grouped by story",
	Long: `Render every story with its tasks and their states, like a kanban
board flattened into a table. Failed tasks show their retry count and
reason.

Use --json for machine-readable output.`,
	RunE: runBoard,
}

func init() {
	boardCmd.Flags().BoolVar(&boardJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(boardCmd)
}

type boardEntry struct {
	Story artifact.Story  `json:"story"`
	Tasks []artifact.Task `json:"tasks"`
}

func runBoard(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	graph := store.Graph()
	var entries []boardEntry
	for _, s := range graph.Stories {
		tasks, err := store.TasksForStory(s.ID)
		if err != nil {
			return err
		}
		entries = append(entries, boardEntry{Story: s, Tasks: tasks})
	}

	if boardJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No stories.")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %s  [%s]\n", e.Story.ID, e.Story.Title, e.Story.Status)
		for _, t := range e.Tasks {
			marker := " "
			switch t.Status {
			case artifact.TaskCompleted:
				marker = "x"
			case artifact.TaskInProgress:
				marker = ">"
			case artifact.TaskFailed:
				marker = "!"
			}
			fmt.Printf("  [%s] %-8s %-10s %s", marker, t.ID, t.Kind, t.Title)
			if t.Status == artifact.TaskFailed {
				fmt.Printf("  (retries: %d, reason: %s)", t.RetryCount, t.FailReason)
			}
			fmt.Println()
		}
		fmt.Println()
	}
	return nil
}
