package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// GraphFile is the filename the artifact graph is persisted under.
	GraphFile = "graph.json"
	// DataDir is the subdirectory under the project root where Artifex
	// keeps its state.
	DataDir = "artifex"
)

// Store defines the persistence interface for the artifact graph.
// Abstracted for testability (DIP).
type Store interface {
	// Graph returns a deep copy of the current graph for read-only use.
	Graph() *Graph

	AddEntity(e Entity) (string, error)
	AddStory(s Story) (string, error)
	AddTask(t Task) (string, error)
	AddDecision(d Decision) (string, error)

	GetEntity(id string) (*Entity, error)
	GetStory(id string) (*Story, error)
	GetTask(id string) (*Task, error)
	GetDecision(id string) (*Decision, error)

	FindEntityByName(name string) (*Entity, error)

	// UpdateStatus transitions an artifact's status in place, dispatching
	// on the ID prefix. extra carries optional side data (file_path,
	// fail_reason). Unknown keys are ignored.
	UpdateStatus(id string, status string, extra map[string]string) error

	// PutStory and PutEntity replace an existing record wholesale,
	// re-validating references first.
	PutStory(s Story) error
	PutEntity(e Entity) error

	// SupersedeDecision atomically marks oldID superseded and inserts the
	// replacement with a back-reference. There is no public delete.
	SupersedeDecision(oldID string, replacement Decision) (string, error)

	ListStoriesByStatus(status StoryStatus) []Story
	ListTasksByStatus(status TaskStatus) []Task
	TasksForStory(storyID string) ([]Task, error)
	StoriesDependingOn(id string) []Story
}

// FileStore implements Store on a single JSON file. Every mutation
// re-persists the full graph synchronously, so readers never observe a
// partial write. Callers must serialize writes - the store assumes a
// single writer per graph file.
type FileStore struct {
	path  string
	graph Graph
}

// GraphPath returns the absolute path to the graph file for a project root.
func GraphPath(projectRoot string) string {
	return filepath.Join(projectRoot, DataDir, GraphFile)
}

// NewFileStore opens (or initializes) the graph at the given path.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, fmt.Errorf("reading graph: %w", err)
	}
	if err := json.Unmarshal(data, &fs.graph); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return fs, nil
}

// persist writes the whole graph back to disk.
func (fs *FileStore) persist() error {
	fs.graph.UpdatedAt = nowRFC3339()

	data, err := json.MarshalIndent(&fs.graph, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling graph: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(fs.path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return os.WriteFile(fs.path, data, 0o644)
}

// Graph returns a deep copy of the current graph.
func (fs *FileStore) Graph() *Graph {
	data, err := json.Marshal(&fs.graph)
	if err != nil {
		// The graph round-trips by construction; failure here is
		// programmer error.
		panic(fmt.Sprintf("artifact: graph marshal: %v", err))
	}
	var out Graph
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("artifact: graph unmarshal: %v", err))
	}
	return &out
}

// --- Add ---

// AddEntity validates and inserts an entity, assigning the next E- ID when
// absent. Returns the assigned ID.
func (fs *FileStore) AddEntity(e Entity) (string, error) {
	if err := validateEntity(&fs.graph, &e); err != nil {
		return "", err
	}
	if e.ID == "" {
		e.ID = fs.graph.NextID(PrefixEntity)
	} else if fs.graph.Entity(e.ID) != nil {
		return "", &ValidationError{ArtifactID: e.ID, Reason: "entity already exists"}
	}
	if e.Status == "" {
		e.Status = EntityPlanned
	}
	now := nowRFC3339()
	e.CreatedAt, e.UpdatedAt = now, now

	fs.graph.Entities = append(fs.graph.Entities, e)
	if err := fs.persist(); err != nil {
		fs.graph.Entities = fs.graph.Entities[:len(fs.graph.Entities)-1]
		return "", err
	}
	return e.ID, nil
}

// AddStory validates and inserts a story, assigning the next S- ID when
// absent.
func (fs *FileStore) AddStory(s Story) (string, error) {
	if s.ID == "" {
		s.ID = fs.graph.NextID(PrefixStory)
	} else if fs.graph.Story(s.ID) != nil {
		return "", &ValidationError{ArtifactID: s.ID, Reason: "story already exists"}
	}
	if err := validateStory(&fs.graph, &s); err != nil {
		return "", err
	}
	if s.Status == "" {
		s.Status = StoryPending
	}
	now := nowRFC3339()
	s.CreatedAt, s.UpdatedAt = now, now

	fs.graph.Stories = append(fs.graph.Stories, s)
	if err := fs.persist(); err != nil {
		fs.graph.Stories = fs.graph.Stories[:len(fs.graph.Stories)-1]
		return "", err
	}
	return s.ID, nil
}

// AddTask validates and inserts a task, assigning the next T- ID when
// absent, and links it to its story.
func (fs *FileStore) AddTask(t Task) (string, error) {
	if err := validateTask(&fs.graph, &t); err != nil {
		return "", err
	}
	if t.ID == "" {
		t.ID = fs.graph.NextID(PrefixTask)
	} else if fs.graph.Task(t.ID) != nil {
		return "", &ValidationError{ArtifactID: t.ID, Reason: "task already exists"}
	}
	if t.Status == "" {
		t.Status = TaskPending
	}
	now := nowRFC3339()
	t.CreatedAt, t.UpdatedAt = now, now

	fs.graph.Tasks = append(fs.graph.Tasks, t)
	story := fs.graph.Story(t.StoryID)
	story.TaskIDs = append(story.TaskIDs, t.ID)
	story.UpdatedAt = now

	if err := fs.persist(); err != nil {
		fs.graph.Tasks = fs.graph.Tasks[:len(fs.graph.Tasks)-1]
		story.TaskIDs = story.TaskIDs[:len(story.TaskIDs)-1]
		return "", err
	}
	return t.ID, nil
}

// AddDecision validates and inserts a decision, assigning the next D- ID
// when absent. The topic is normalized on the way in.
func (fs *FileStore) AddDecision(d Decision) (string, error) {
	d.Topic = NormalizeTopic(d.Topic)
	if err := validateDecision(&fs.graph, &d); err != nil {
		return "", err
	}
	if d.ID == "" {
		d.ID = fs.graph.NextID(PrefixDecision)
	} else if fs.graph.Decision(d.ID) != nil {
		return "", &ValidationError{ArtifactID: d.ID, Reason: "decision already exists"}
	}
	if d.MadeAt == "" {
		d.MadeAt = nowRFC3339()
	}

	fs.graph.Decisions = append(fs.graph.Decisions, d)
	if err := fs.persist(); err != nil {
		fs.graph.Decisions = fs.graph.Decisions[:len(fs.graph.Decisions)-1]
		return "", err
	}
	return d.ID, nil
}

// --- Get ---

// GetEntity returns a copy of the entity with the given ID.
func (fs *FileStore) GetEntity(id string) (*Entity, error) {
	e := fs.graph.Entity(id)
	if e == nil {
		return nil, notFound(id)
	}
	out := *e
	return &out, nil
}

// GetStory returns a copy of the story with the given ID.
func (fs *FileStore) GetStory(id string) (*Story, error) {
	s := fs.graph.Story(id)
	if s == nil {
		return nil, notFound(id)
	}
	out := *s
	return &out, nil
}

// GetTask returns a copy of the task with the given ID.
func (fs *FileStore) GetTask(id string) (*Task, error) {
	t := fs.graph.Task(id)
	if t == nil {
		return nil, notFound(id)
	}
	out := *t
	return &out, nil
}

// GetDecision returns a copy of the decision with the given ID.
func (fs *FileStore) GetDecision(id string) (*Decision, error) {
	d := fs.graph.Decision(id)
	if d == nil {
		return nil, notFound(id)
	}
	out := *d
	return &out, nil
}

// FindEntityByName returns the first non-superseded entity with a
// case-insensitive name match.
func (fs *FileStore) FindEntityByName(name string) (*Entity, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	for i := range fs.graph.Entities {
		e := &fs.graph.Entities[i]
		if e.SupersededBy == "" && strings.ToLower(e.Name) == want {
			out := *e
			return &out, nil
		}
	}
	return nil, notFound(name)
}

// --- Update ---

// UpdateStatus transitions an artifact's status, dispatching on the ID
// prefix. Tasks accept file_path and fail_reason extras; entities accept
// file_path.
func (fs *FileStore) UpdateStatus(id string, status string, extra map[string]string) error {
	prefix, ok := PrefixOf(id)
	if !ok {
		return notFound(id)
	}
	now := nowRFC3339()

	switch prefix {
	case PrefixEntity:
		e := fs.graph.Entity(id)
		if e == nil {
			return notFound(id)
		}
		st := EntityStatus(status)
		if err := ValidateEntityStatus(st); err != nil {
			return &ValidationError{ArtifactID: id, Reason: err.Error()}
		}
		prev := *e
		e.Status = st
		if fp := extra["file_path"]; fp != "" {
			e.FilePath = fp
		}
		e.UpdatedAt = now
		if err := fs.persist(); err != nil {
			*e = prev
			return err
		}

	case PrefixStory:
		s := fs.graph.Story(id)
		if s == nil {
			return notFound(id)
		}
		st := StoryStatus(status)
		if err := ValidateStoryStatus(st); err != nil {
			return &ValidationError{ArtifactID: id, Reason: err.Error()}
		}
		prev := *s
		s.Status = st
		s.UpdatedAt = now
		if err := fs.persist(); err != nil {
			*s = prev
			return err
		}

	case PrefixTask:
		t := fs.graph.Task(id)
		if t == nil {
			return notFound(id)
		}
		st := TaskStatus(status)
		if err := ValidateTaskStatus(st); err != nil {
			return &ValidationError{ArtifactID: id, Reason: err.Error()}
		}
		prev := *t
		t.Status = st
		if fp := extra["file_path"]; fp != "" {
			t.FilePath = fp
		}
		if reason := extra["fail_reason"]; reason != "" {
			t.FailReason = reason
		}
		if st == TaskFailed {
			t.RetryCount++
		}
		t.UpdatedAt = now
		if err := fs.persist(); err != nil {
			*t = prev
			return err
		}

	case PrefixDecision:
		// Decisions are append-only; status changes go through
		// SupersedeDecision.
		return &ValidationError{ArtifactID: id, Reason: "decisions are append-only; use SupersedeDecision"}
	}

	return nil
}

// PutStory replaces an existing story wholesale after re-validation.
func (fs *FileStore) PutStory(s Story) error {
	existing := fs.graph.Story(s.ID)
	if existing == nil {
		return notFound(s.ID)
	}
	if err := validateStory(&fs.graph, &s); err != nil {
		return err
	}
	prev := *existing
	s.CreatedAt = prev.CreatedAt
	s.UpdatedAt = nowRFC3339()
	*existing = s
	if err := fs.persist(); err != nil {
		*existing = prev
		return err
	}
	return nil
}

// PutEntity replaces an existing entity wholesale after re-validation.
func (fs *FileStore) PutEntity(e Entity) error {
	existing := fs.graph.Entity(e.ID)
	if existing == nil {
		return notFound(e.ID)
	}
	if err := validateEntity(&fs.graph, &e); err != nil {
		return err
	}
	prev := *existing
	e.CreatedAt = prev.CreatedAt
	e.UpdatedAt = nowRFC3339()
	*existing = e
	if err := fs.persist(); err != nil {
		*existing = prev
		return err
	}
	return nil
}

// SupersedeDecision marks oldID superseded and inserts the replacement
// with a back-reference, as one atomic mutation. A decision that is
// already superseded cannot be superseded again - the chain is strictly
// forward, no merges.
func (fs *FileStore) SupersedeDecision(oldID string, replacement Decision) (string, error) {
	old := fs.graph.Decision(oldID)
	if old == nil {
		return "", notFound(oldID)
	}
	if old.Superseded() {
		return "", &ValidationError{ArtifactID: oldID, Reason: fmt.Sprintf("already superseded by %s", old.SupersededBy)}
	}

	replacement.Topic = NormalizeTopic(replacement.Topic)
	if err := validateDecision(&fs.graph, &replacement); err != nil {
		return "", err
	}
	if replacement.ID == "" {
		replacement.ID = fs.graph.NextID(PrefixDecision)
	} else if fs.graph.Decision(replacement.ID) != nil {
		return "", &ValidationError{ArtifactID: replacement.ID, Reason: "decision already exists"}
	}
	if replacement.MadeAt == "" {
		replacement.MadeAt = nowRFC3339()
	}

	prev := *old
	old.SupersededBy = replacement.ID
	fs.graph.Decisions = append(fs.graph.Decisions, replacement)
	if err := fs.persist(); err != nil {
		*old = prev
		fs.graph.Decisions = fs.graph.Decisions[:len(fs.graph.Decisions)-1]
		return "", err
	}
	return replacement.ID, nil
}

// --- List / relationships ---

// ListStoriesByStatus returns copies of all stories with the given status.
func (fs *FileStore) ListStoriesByStatus(status StoryStatus) []Story {
	var out []Story
	for _, s := range fs.graph.Stories {
		if s.Status == status {
			out = append(out, s)
		}
	}
	return out
}

// ListTasksByStatus returns copies of all tasks with the given status.
func (fs *FileStore) ListTasksByStatus(status TaskStatus) []Task {
	var out []Task
	for _, t := range fs.graph.Tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

// TasksForStory returns the story's tasks in creation order.
func (fs *FileStore) TasksForStory(storyID string) ([]Task, error) {
	if fs.graph.Story(storyID) == nil {
		return nil, notFound(storyID)
	}
	var out []Task
	for _, t := range fs.graph.Tasks {
		if t.StoryID == storyID {
			out = append(out, t)
		}
	}
	return out, nil
}

// StoriesDependingOn returns stories whose dependsOn includes the given ID.
func (fs *FileStore) StoriesDependingOn(id string) []Story {
	var out []Story
	for _, s := range fs.graph.Stories {
		for _, dep := range s.DependsOn {
			if dep == id {
				out = append(out, s)
				break
			}
		}
	}
	return out
}
