// Package server wires all MCP components and creates the server
// instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools that depend on abstractions. No business
// logic lives here, only wiring.
package server

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/MarisolVega/artifex/internal/artifact"
	"github.com/MarisolVega/artifex/internal/cascade"
	"github.com/MarisolVega/artifex/internal/evolution"
	"github.com/MarisolVega/artifex/internal/generator"
	"github.com/MarisolVega/artifex/internal/orchestrator"
	"github.com/MarisolVega/artifex/internal/semstore"
	"github.com/MarisolVega/artifex/internal/tasks"
	"github.com/MarisolVega/artifex/internal/tools"
	"github.com/MarisolVega/artifex/internal/workflow"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools registered.
// This is the single place where all dependencies are resolved.
//
// The returned cleanup function closes the semantic store's database
// connection and must be called on shutdown (typically via defer). It is
// always non-nil and safe to call even if semantic-store init failed.
func New() (*server.MCPServer, func(), error) {
	root, err := findProjectRoot()
	if err != nil {
		return nil, noop, err
	}

	// --- Create shared dependencies ---

	store, err := artifact.NewFileStore(artifact.GraphPath(root))
	if err != nil {
		return nil, noop, fmt.Errorf("opening artifact graph: %w", err)
	}

	set, err := workflow.LoadFile(filepath.Join(root, "artifex", "workflows.yaml"))
	if err != nil {
		return nil, noop, fmt.Errorf("loading workflow definitions: %w", err)
	}

	gen := generator.NewCLI(generator.CLIConfig{
		Binary: os.Getenv("ARTIFEX_GENERATOR"),
	})

	registry := workflow.NewRegistry()
	if err := orchestrator.RegisterProducers(registry, gen, set); err != nil {
		return nil, noop, fmt.Errorf("registering producers: %w", err)
	}
	runs := orchestrator.NewRunRegistry()
	orch := orchestrator.New(set, registry)

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"artifex",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register artifact tools ---

	storySubmitTool := tools.NewStorySubmitTool(store)
	s.AddTool(storySubmitTool.Definition(), storySubmitTool.Handle)

	storyEvolveTool := tools.NewStoryEvolveTool(evolution.New(store))
	s.AddTool(storyEvolveTool.Definition(), storyEvolveTool.Handle)

	tasksGenerateTool := tools.NewTasksGenerateTool(tasks.NewGenerator(store))
	s.AddTool(tasksGenerateTool.Definition(), tasksGenerateTool.Handle)

	taskUpdateTool := tools.NewTaskUpdateTool(store, tasks.NewExecutor(store))
	s.AddTool(taskUpdateTool.Definition(), taskUpdateTool.Handle)

	// --- Register run tools ---

	runStartTool := tools.NewRunStartTool(orch, runs)
	s.AddTool(runStartTool.Definition(), runStartTool.Handle)

	runStatusTool := tools.NewRunStatusTool(runs)
	s.AddTool(runStatusTool.Definition(), runStatusTool.Handle)

	feedbackTool := tools.NewFeedbackTool(set, runs, cascade.NewRouter(gen), cascade.NewExecutor(registry))
	s.AddTool(feedbackTool.Definition(), feedbackTool.Handle)

	// --- Register semantic-store tools ---
	//
	// The semantic store is an independent subsystem: if it fails to
	// initialize, story and run tools keep working. Coverage and
	// supersession tools are skipped with a warning.

	cleanup := noop
	sem, semErr := semstore.New(semstore.DefaultConfig(root))
	if semErr != nil {
		log.Printf("WARNING: semantic store disabled: %v", semErr)
	} else {
		cleanup = func() {
			if err := sem.Close(); err != nil {
				log.Printf("WARNING: closing semantic store: %v", err)
			}
		}

		coverageTool := tools.NewCoverageReportTool(store, sem)
		s.AddTool(coverageTool.Definition(), coverageTool.Handle)

		supersedeTool := tools.NewCapabilitySupersedeTool(sem)
		s.AddTool(supersedeTool.Definition(), supersedeTool.Handle)
	}

	return s, cleanup, nil
}

// noop is the default cleanup when the semantic store is disabled.
func noop() {}

// findProjectRoot walks up from the current working directory looking
// for an existing artifex/ data directory. A fresh directory is
// initialized at cwd when none is found.
func findProjectRoot() (string, error) {
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
			return dir, nil
		}
		current = parent
	}
}

// serverInstructions returns the instructions surfaced to MCP clients.
func serverInstructions() string {
	return `Artifex drives a staged generative pipeline over a persistent artifact graph.

Typical flow:
1. artifex_story_submit - add a user story to the graph.
2. artifex_story_evolve - analyze impact; apply with apply=true (approved=true when decisions need sign-off).
3. artifex_tasks_generate - expand the designed story into typed tasks.
4. artifex_task_update - drive tasks; completing the last one completes the story.
5. artifex_run_start / artifex_run_status - execute and inspect full workflow runs.
6. artifex_feedback - revise a run; downstream stages re-derive automatically.
7. artifex_coverage_report / artifex_capability_supersede - track capability coverage.

Conflicting decisions block evolution; supersede the existing decision instead of forcing a write.`
}
