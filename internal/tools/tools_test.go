package tools

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/MarisolVega/artifex/internal/artifact"
	"github.com/MarisolVega/artifex/internal/cascade"
	"github.com/MarisolVega/artifex/internal/evolution"
	"github.com/MarisolVega/artifex/internal/generator"
	"github.com/MarisolVega/artifex/internal/orchestrator"
	"github.com/MarisolVega/artifex/internal/semstore"
	"github.com/MarisolVega/artifex/internal/tasks"
	"github.com/MarisolVega/artifex/internal/workflow"
)

// --- Helpers ---

func newStore(t *testing.T) artifact.Store {
	t.Helper()
	store, err := artifact.NewFileStore(filepath.Join(t.TempDir(), "graph.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store
}

func callTool(t *testing.T, handle func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	return result
}

// isErrorResult checks if the result is a tool error.
func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// getResultText extracts the text content from a CallToolResult.
func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// --- StorySubmitTool ---

func TestStorySubmitTool_Handle_Success(t *testing.T) {
	store := newStore(t)
	tool := NewStorySubmitTool(store)

	if tool.Definition().Name != "artifex_story_submit" {
		t.Errorf("name = %q", tool.Definition().Name)
	}

	result := callTool(t, tool.Handle, map[string]interface{}{
		"title":               "Create notes",
		"user_story_text":     "As a user, I want to create notes so that I can remember things",
		"acceptance_criteria": "note is persisted\nnote has a title",
	})
	if isErrorResult(result) {
		t.Fatalf("expected success, got: %s", getResultText(result))
	}

	text := getResultText(result)
	if !strings.Contains(text, "S-001") {
		t.Errorf("result should carry the allocated id:\n%s", text)
	}

	story, err := store.GetStory("S-001")
	if err != nil {
		t.Fatalf("story not persisted: %v", err)
	}
	if story.Status != artifact.StoryPending || len(story.AcceptanceCriteria) != 2 {
		t.Errorf("story = %+v", story)
	}
}

func TestStorySubmitTool_Handle_ValidationError(t *testing.T) {
	tool := NewStorySubmitTool(newStore(t))

	result := callTool(t, tool.Handle, map[string]interface{}{
		"title": "No text",
	})
	if !isErrorResult(result) {
		t.Fatal("expected a tool error for a story without text")
	}
	if !strings.Contains(getResultText(result), "rejected") {
		t.Errorf("error text = %s", getResultText(result))
	}
}

// --- StoryEvolveTool and the downstream pipeline ---

func submitStory(t *testing.T, store artifact.Store, title, text string) string {
	t.Helper()
	id, err := store.AddStory(artifact.Story{Title: title, UserStoryText: text})
	if err != nil {
		t.Fatalf("AddStory: %v", err)
	}
	return id
}

func TestStoryEvolveTool_Handle_DryRunThenApply(t *testing.T) {
	store := newStore(t)
	tool := NewStoryEvolveTool(evolution.New(store))
	storyID := submitStory(t, store, "Create notes", "As a user, I want to create a note so that I can remember")

	// Dry run mutates nothing.
	result := callTool(t, tool.Handle, map[string]interface{}{"story_id": storyID})
	if isErrorResult(result) {
		t.Fatalf("dry run failed: %s", getResultText(result))
	}
	story, _ := store.GetStory(storyID)
	if story.Status != artifact.StoryPending {
		t.Errorf("dry run advanced the story to %s", story.Status)
	}

	// Apply with approval writes entities and decisions and designs the story.
	result = callTool(t, tool.Handle, map[string]interface{}{
		"story_id": storyID,
		"apply":    true,
		"approved": true,
	})
	if isErrorResult(result) {
		t.Fatalf("apply failed: %s", getResultText(result))
	}
	story, _ = store.GetStory(storyID)
	if story.Status != artifact.StoryDesigned {
		t.Errorf("story status = %s, want designed", story.Status)
	}
}

func TestPipeline_EvolveGenerateComplete(t *testing.T) {
	store := newStore(t)
	storyID := submitStory(t, store, "Create notes", "As a user, I want to create a note so that I can remember")

	if _, err := evolution.New(store).EvolveAndApply(storyID, true); err != nil {
		t.Fatalf("EvolveAndApply: %v", err)
	}

	genTool := NewTasksGenerateTool(tasks.NewGenerator(store))
	result := callTool(t, genTool.Handle, map[string]interface{}{"story_id": storyID})
	if isErrorResult(result) {
		t.Fatalf("tasks_generate failed: %s", getResultText(result))
	}

	// Regeneration is refused.
	result = callTool(t, genTool.Handle, map[string]interface{}{"story_id": storyID})
	if !isErrorResult(result) {
		t.Fatal("regeneration should be refused")
	}

	story, _ := store.GetStory(storyID)
	if len(story.TaskIDs) == 0 {
		t.Fatal("no tasks generated")
	}

	updateTool := NewTaskUpdateTool(store, tasks.NewExecutor(store))
	for _, taskID := range story.TaskIDs {
		result = callTool(t, updateTool.Handle, map[string]interface{}{"task_id": taskID, "action": "start"})
		if isErrorResult(result) {
			t.Fatalf("start %s: %s", taskID, getResultText(result))
		}
		result = callTool(t, updateTool.Handle, map[string]interface{}{"task_id": taskID, "action": "complete"})
		if isErrorResult(result) {
			t.Fatalf("complete %s: %s", taskID, getResultText(result))
		}
	}

	story, _ = store.GetStory(storyID)
	if story.Status != artifact.StoryCompleted {
		t.Errorf("story status after all tasks = %s, want completed", story.Status)
	}
	if !strings.Contains(getResultText(result), "completed") {
		t.Errorf("final update text = %s", getResultText(result))
	}
}

func TestTaskUpdateTool_Handle_UnknownAction(t *testing.T) {
	store := newStore(t)
	tool := NewTaskUpdateTool(store, tasks.NewExecutor(store))

	result := callTool(t, tool.Handle, map[string]interface{}{"task_id": "T-001", "action": "pause"})
	if !isErrorResult(result) {
		t.Fatal("unknown action should be a tool error")
	}
}

// --- Run + feedback tools ---

func newRunFixture(t *testing.T, gen generator.Generator) (*RunStartTool, *FeedbackTool, *orchestrator.RunRegistry) {
	t.Helper()
	set := workflow.Default()
	registry := workflow.NewRegistry()
	if err := orchestrator.RegisterProducers(registry, gen, set); err != nil {
		t.Fatalf("RegisterProducers: %v", err)
	}
	runs := orchestrator.NewRunRegistry()
	start := NewRunStartTool(orchestrator.New(set, registry), runs)
	feedback := NewFeedbackTool(set, runs, cascade.NewRouter(gen), cascade.NewExecutor(registry))
	return start, feedback, runs
}

func scriptedGen() *generator.Scripted {
	gen := generator.NewScripted()
	gen.Script("validation-summary", &generator.StageOutput{
		TLDR:    "summary",
		Content: "a validation summary comfortably past the length gate",
		Claims: []generator.Claim{{
			Name:     "recommendation",
			Metadata: map[string]string{"verdict": "go"},
		}},
	})
	return gen
}

func TestRunStartTool_Handle_CompletesAndRegisters(t *testing.T) {
	start, _, runs := newRunFixture(t, scriptedGen())

	result := callTool(t, start.Handle, map[string]interface{}{})
	if isErrorResult(result) {
		t.Fatalf("run_start failed: %s", getResultText(result))
	}
	text := getResultText(result)
	if !strings.Contains(text, "Completed") {
		t.Errorf("result = %s", text)
	}

	run := runs.Latest()
	if run == nil || run.Outputs["task-breakdown"] == nil {
		t.Fatal("run not registered or incomplete")
	}

	status := NewRunStatusTool(runs)
	result = callTool(t, status.Handle, map[string]interface{}{"run_id": run.ID})
	if isErrorResult(result) {
		t.Fatalf("run_status failed: %s", getResultText(result))
	}
	if !strings.Contains(getResultText(result), "validation-summary") {
		t.Errorf("status missing checkpoints:\n%s", getResultText(result))
	}
}

func TestFeedbackTool_Handle_CascadesAndFoldsBack(t *testing.T) {
	gen := scriptedGen()
	gen.Script("feedback-routing", &generator.StageOutput{
		TLDR:    "concerns the market numbers",
		Content: `["market-context"]`,
	})
	start, feedback, runs := newRunFixture(t, gen)

	callTool(t, start.Handle, map[string]interface{}{})
	run := runs.Latest()
	before := run.Outputs["risk-assessment"]

	gen.Script("risk-assessment", &generator.StageOutput{TLDR: "revised", Content: "revised risk register"})
	result := callTool(t, feedback.Handle, map[string]interface{}{
		"feedback":    "the TAM numbers look wrong",
		"workflow_id": "validation",
	})
	if isErrorResult(result) {
		t.Fatalf("feedback failed: %s", getResultText(result))
	}
	text := getResultText(result)
	if !strings.Contains(text, "market-context") || !strings.Contains(text, "complete") {
		t.Errorf("feedback result:\n%s", text)
	}

	after := run.Outputs["risk-assessment"]
	if after == before || after.Content != "revised risk register" {
		t.Error("revised output not folded back onto the run")
	}
}

func TestFeedbackTool_Handle_NoRuns(t *testing.T) {
	_, feedback, _ := newRunFixture(t, scriptedGen())
	result := callTool(t, feedback.Handle, map[string]interface{}{"feedback": "anything"})
	if !isErrorResult(result) {
		t.Fatal("feedback without runs should be a tool error")
	}
}

// --- Coverage + supersession tools ---

func TestCoverageAndSupersedeTools(t *testing.T) {
	store := newStore(t)
	sem, err := semstore.New(semstore.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("semstore.New: %v", err)
	}
	defer func() { _ = sem.Close() }()

	capID, _ := sem.Put(semstore.Record{Type: semstore.TypeCapability, Subtype: semstore.SubtypeFunctional, Name: "Search notes"})
	sem.Put(semstore.Record{Type: semstore.TypeCapability, Subtype: semstore.SubtypeFunctional, Name: "Tag notes"})

	coverageTool := NewCoverageReportTool(store, sem)
	result := callTool(t, coverageTool.Handle, map[string]interface{}{})
	if isErrorResult(result) {
		t.Fatalf("coverage_report failed: %s", getResultText(result))
	}
	// No decisions serve anything yet: both capabilities are uncovered.
	text := getResultText(result)
	if !strings.Contains(text, "CAP-F-001") || !strings.Contains(text, "CAP-F-002") {
		t.Errorf("coverage report:\n%s", text)
	}

	supersedeTool := NewCapabilitySupersedeTool(sem)
	result = callTool(t, supersedeTool.Handle, map[string]interface{}{
		"old_id": capID,
		"name":   "Search notes by body",
	})
	if isErrorResult(result) {
		t.Fatalf("capability_supersede failed: %s", getResultText(result))
	}
	if !strings.Contains(getResultText(result), "CAP-F-003") {
		t.Errorf("supersede result:\n%s", getResultText(result))
	}

	// The superseded capability drops out of uncovered; the head appears.
	result = callTool(t, coverageTool.Handle, map[string]interface{}{})
	text = getResultText(result)
	if !strings.Contains(text, "CAP-F-003") {
		t.Errorf("coverage after supersession:\n%s", text)
	}

	// Re-superseding the old head fails.
	result = callTool(t, supersedeTool.Handle, map[string]interface{}{
		"old_id": capID,
		"name":   "again",
	})
	if !isErrorResult(result) {
		t.Fatal("re-supersession should be a tool error")
	}
}
