package tasks

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/MarisolVega/artifex/internal/artifact"
)

// --- Helpers ---

func testStore(t *testing.T) *artifact.FileStore {
	t.Helper()
	fs, err := artifact.NewFileStore(filepath.Join(t.TempDir(), artifact.GraphFile))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return fs
}

func addStory(t *testing.T, fs *artifact.FileStore, s artifact.Story) string {
	t.Helper()
	id, err := fs.AddStory(s)
	if err != nil {
		t.Fatalf("AddStory: %v", err)
	}
	return id
}

// --- Generator ---

func TestGenerate_CreateTemplates(t *testing.T) {
	fs := testStore(t)
	sid := addStory(t, fs, artifact.Story{
		Title:         "Create invoices",
		UserStoryText: "As a clerk, I want to create an invoice",
	})

	got, err := NewGenerator(fs).Generate(sid)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("generated %d tasks, want 4", len(got))
	}
	if got[0].Title != "Define the invoice model" || got[0].Kind != artifact.TaskBackend {
		t.Errorf("task[0] = %+v", got[0])
	}

	kinds := map[artifact.TaskKind]int{}
	for _, task := range got {
		kinds[task.Kind]++
	}
	if kinds[artifact.TaskBackend] != 2 || kinds[artifact.TaskFrontend] != 1 || kinds[artifact.TaskTest] != 1 {
		t.Errorf("kind distribution = %v", kinds)
	}

	story, _ := fs.GetStory(sid)
	if story.Status != artifact.StoryImplementing {
		t.Errorf("story status = %s, want implementing", story.Status)
	}
	if len(story.TaskIDs) != 4 {
		t.Errorf("story.TaskIDs = %v, want 4 linked tasks", story.TaskIDs)
	}
}

func TestGenerate_UnknownVerbFallsBackToRead(t *testing.T) {
	fs := testStore(t)
	sid := addStory(t, fs, artifact.Story{
		Title:         "Vague",
		UserStoryText: "Something nobody classified",
	})

	got, err := NewGenerator(fs).Generate(sid)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != len(taskTemplates["read"]) {
		t.Errorf("generated %d tasks, want the read template set (%d)", len(got), len(taskTemplates["read"]))
	}
}

func TestGenerate_RefusesRegeneration(t *testing.T) {
	fs := testStore(t)
	sid := addStory(t, fs, artifact.Story{Title: "S", UserStoryText: "create an invoice"})

	gen := NewGenerator(fs)
	if _, err := gen.Generate(sid); err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	_, err := gen.Generate(sid)
	var verr *artifact.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("second Generate err = %v, want ValidationError", err)
	}
}

// --- Executor state machine ---

func TestExecutor_Transitions(t *testing.T) {
	fs := testStore(t)
	sid := addStory(t, fs, artifact.Story{Title: "S", UserStoryText: "view the orders"})
	tid, err := fs.AddTask(artifact.Task{StoryID: sid, Title: "Build the orders retrieval endpoint"})
	if err != nil {
		t.Fatal(err)
	}

	ex := NewExecutor(fs)

	// Completing a pending task is rejected.
	if err := ex.Complete(tid, ""); err == nil {
		t.Error("Complete on pending task should fail")
	}

	if err := ex.Start(tid); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := ex.Start(tid); err == nil {
		t.Error("Start on in_progress task should fail")
	}
	if err := ex.Complete(tid, "internal/orders/handler.go"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	task, _ := fs.GetTask(tid)
	if task.Status != artifact.TaskCompleted || task.FilePath != "internal/orders/handler.go" {
		t.Errorf("task = %+v", task)
	}
}

func TestExecutor_FailAndRetry(t *testing.T) {
	fs := testStore(t)
	sid := addStory(t, fs, artifact.Story{Title: "S", UserStoryText: "view the orders"})
	tid, _ := fs.AddTask(artifact.Task{StoryID: sid, Title: "Build the view"})

	ex := NewExecutor(fs)
	if err := ex.Start(tid); err != nil {
		t.Fatal(err)
	}
	if err := ex.Fail(tid, "flaky dependency"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	task, _ := fs.GetTask(tid)
	if task.Status != artifact.TaskFailed || task.RetryCount != 1 || task.FailReason != "flaky dependency" {
		t.Errorf("task after failure = %+v", task)
	}

	// Failed tasks may be restarted by the caller.
	if err := ex.Start(tid); err != nil {
		t.Fatalf("Start after failure: %v", err)
	}
}

// --- Rollups ---

func TestRollup_FourTasks(t *testing.T) {
	fs := testStore(t)
	sid := addStory(t, fs, artifact.Story{
		Title:         "Create invoices",
		UserStoryText: "create an invoice",
	})
	tasks, err := NewGenerator(fs).Generate(sid)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 4 {
		t.Fatalf("want 4 tasks, got %d", len(tasks))
	}

	ex := NewExecutor(fs)

	// Completing tasks 1-3 leaves the story implementing.
	for _, task := range tasks[:3] {
		if err := ex.Start(task.ID); err != nil {
			t.Fatal(err)
		}
		if err := ex.Complete(task.ID, ""); err != nil {
			t.Fatal(err)
		}
	}
	story, _ := fs.GetStory(sid)
	if story.Status != artifact.StoryImplementing {
		t.Fatalf("story after 3/4 = %s, want implementing", story.Status)
	}

	// Completing the fourth transitions it to completed.
	if err := ex.Start(tasks[3].ID); err != nil {
		t.Fatal(err)
	}
	if err := ex.Complete(tasks[3].ID, ""); err != nil {
		t.Fatal(err)
	}
	story, _ = fs.GetStory(sid)
	if story.Status != artifact.StoryCompleted {
		t.Errorf("story after 4/4 = %s, want completed", story.Status)
	}
}

func TestRollup_FailedTaskHoldsStory(t *testing.T) {
	fs := testStore(t)
	sid := addStory(t, fs, artifact.Story{Title: "S", UserStoryText: "view the orders"})
	tasks, err := NewGenerator(fs).Generate(sid)
	if err != nil {
		t.Fatal(err)
	}

	ex := NewExecutor(fs)
	for _, task := range tasks[:len(tasks)-1] {
		if err := ex.Start(task.ID); err != nil {
			t.Fatal(err)
		}
		if err := ex.Complete(task.ID, ""); err != nil {
			t.Fatal(err)
		}
	}
	last := tasks[len(tasks)-1]
	if err := ex.Start(last.ID); err != nil {
		t.Fatal(err)
	}
	if err := ex.Fail(last.ID, "broken"); err != nil {
		t.Fatal(err)
	}

	story, _ := fs.GetStory(sid)
	if story.Status != artifact.StoryImplementing {
		t.Errorf("story with failed task = %s, want implementing", story.Status)
	}
}

func TestModelTaskMarksEntitiesImplemented(t *testing.T) {
	fs := testStore(t)
	eid, err := fs.AddEntity(artifact.Entity{Name: "Invoice"})
	if err != nil {
		t.Fatal(err)
	}
	sid := addStory(t, fs, artifact.Story{
		Title:         "Create invoices",
		UserStoryText: "create an invoice",
		DependsOn:     []string{eid},
	})
	tid, _ := fs.AddTask(artifact.Task{StoryID: sid, Title: "Define the invoice model"})

	ex := NewExecutor(fs)
	if err := ex.Start(tid); err != nil {
		t.Fatal(err)
	}
	if err := ex.Complete(tid, "internal/model/invoice.go"); err != nil {
		t.Fatal(err)
	}

	entity, _ := fs.GetEntity(eid)
	if entity.Status != artifact.EntityImplemented {
		t.Errorf("entity status = %s, want implemented", entity.Status)
	}
	if entity.FilePath != "internal/model/invoice.go" {
		t.Errorf("entity file path = %q", entity.FilePath)
	}
}
