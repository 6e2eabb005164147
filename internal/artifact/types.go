// Package artifact defines the tracked artifact graph: entities, stories,
// tasks, and decisions, plus the store that persists them.
//
// The graph is the single source of truth for everything downstream of the
// idea-intake pipeline. Records are never deleted - an artifact that stops
// being true is superseded, keeping history intact.
//
// This package follows the same design principles as the rest of Artifex:
// - SRP: types, ID allocation, validation, and the store in separate files
// - DIP: Store is an interface; engines depend on the abstraction
package artifact

import "fmt"

// --- ID prefixes ---

// Prefix identifies the artifact type an ID belongs to.
type Prefix string

const (
	PrefixEntity   Prefix = "E"
	PrefixStory    Prefix = "S"
	PrefixTask     Prefix = "T"
	PrefixDecision Prefix = "D"
)

// --- Entity ---

// EntityStatus tracks whether a domain entity exists only in the design
// or has been realized in code.
type EntityStatus string

const (
	EntityPlanned     EntityStatus = "planned"
	EntityImplemented EntityStatus = "implemented"
)

// validEntityStatuses is the set of allowed entity statuses.
var validEntityStatuses = map[EntityStatus]bool{
	EntityPlanned:     true,
	EntityImplemented: true,
}

// ValidateEntityStatus returns an error if the status is not recognized.
func ValidateEntityStatus(s EntityStatus) error {
	if !validEntityStatuses[s] {
		return fmt.Errorf("invalid entity status %q: must be one of: planned, implemented", s)
	}
	return nil
}

// Entity is a domain entity derived from stories. Entities are created as
// "planned" by impact analysis and flipped to "implemented" when a
// model/define task for them completes.
type Entity struct {
	ID            string       `json:"id"` // "E-001"
	Name          string       `json:"name"`
	Status        EntityStatus `json:"status"`
	Attributes    []string     `json:"attributes,omitempty"`
	Relationships []string     `json:"relationships,omitempty"`
	SourceStory   string       `json:"source_story,omitempty"` // story that first implied this entity
	FilePath      string       `json:"file_path,omitempty"`
	SupersededBy  string       `json:"superseded_by,omitempty"`
	CreatedAt     string       `json:"created_at"`
	UpdatedAt     string       `json:"updated_at"`
}

// --- Story ---

// StoryStatus is the story lifecycle. Forward-only except for explicit
// revision via the feedback cascade.
type StoryStatus string

const (
	StoryPending      StoryStatus = "pending"
	StoryInterpreting StoryStatus = "interpreting"
	StoryDesigning    StoryStatus = "designing"
	StoryDesigned     StoryStatus = "designed"
	StoryImplementing StoryStatus = "implementing"
	StoryCompleted    StoryStatus = "completed"
)

// validStoryStatuses is the set of allowed story statuses.
var validStoryStatuses = map[StoryStatus]bool{
	StoryPending:      true,
	StoryInterpreting: true,
	StoryDesigning:    true,
	StoryDesigned:     true,
	StoryImplementing: true,
	StoryCompleted:    true,
}

// ValidateStoryStatus returns an error if the status is not recognized.
func ValidateStoryStatus(s StoryStatus) error {
	if !validStoryStatuses[s] {
		return fmt.Errorf("invalid story status %q: must be one of: pending, interpreting, designing, designed, implementing, completed", s)
	}
	return nil
}

// Story is a user story moving through the pipeline. DependsOn may reference
// entities or other stories; story-to-story dependencies must stay acyclic.
type Story struct {
	ID                 string      `json:"id"` // "S-001"
	Title              string      `json:"title"`
	Priority           string      `json:"priority,omitempty"` // high | medium | low
	Status             StoryStatus `json:"status"`
	UserStoryText      string      `json:"user_story_text"`
	AcceptanceCriteria []string    `json:"acceptance_criteria,omitempty"`
	DependsOn          []string    `json:"depends_on,omitempty"` // entity or story IDs
	Implements         []string    `json:"implements,omitempty"` // capability record IDs
	Ambiguities        []Ambiguity `json:"ambiguities,omitempty"`
	TaskIDs            []string    `json:"task_ids,omitempty"`
	CreatedAt          string      `json:"created_at"`
	UpdatedAt          string      `json:"updated_at"`
}

// --- Task ---

// TaskStatus is the per-task state machine driven by the executor.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// validTaskStatuses is the set of allowed task statuses.
var validTaskStatuses = map[TaskStatus]bool{
	TaskPending:    true,
	TaskInProgress: true,
	TaskCompleted:  true,
	TaskFailed:     true,
}

// ValidateTaskStatus returns an error if the status is not recognized.
func ValidateTaskStatus(s TaskStatus) error {
	if !validTaskStatuses[s] {
		return fmt.Errorf("invalid task status %q: must be one of: pending, in_progress, completed, failed", s)
	}
	return nil
}

// TaskKind categorizes what layer a generated task touches.
type TaskKind string

const (
	TaskBackend  TaskKind = "backend"
	TaskFrontend TaskKind = "frontend"
	TaskTest     TaskKind = "test"
)

// Task is one unit of implementation work. A task belongs to exactly one
// story; story completion is derived from its tasks.
type Task struct {
	ID          string     `json:"id"` // "T-001"
	StoryID     string     `json:"story_id"`
	Title       string     `json:"title"`
	Kind        TaskKind   `json:"kind,omitempty"`
	Status      TaskStatus `json:"status"`
	Description string     `json:"description,omitempty"`
	FilePath    string     `json:"file_path,omitempty"`
	RetryCount  int        `json:"retry_count,omitempty"` // advisory - escalation is caller-owned
	FailReason  string     `json:"fail_reason,omitempty"`
	CreatedAt   string     `json:"created_at"`
	UpdatedAt   string     `json:"updated_at"`
}

// --- Decision ---

// Decision is an architectural decision record. Decisions are append-only:
// "changing" a decision means superseding it, never mutating history.
type Decision struct {
	ID                 string   `json:"id"` // "D-001"
	Title              string   `json:"title"`
	Topic              string   `json:"topic"` // normalized topic key for conflict detection
	Rationale          string   `json:"rationale,omitempty"`
	Affects            []string `json:"affects,omitempty"` // entity or story IDs
	ServesCapabilities []string `json:"serves_capabilities,omitempty"`
	MadeAt             string   `json:"made_at"`
	SupersededBy       string   `json:"superseded_by,omitempty"`
}

// Superseded reports whether the decision has been replaced.
func (d Decision) Superseded() bool { return d.SupersededBy != "" }

// --- Ambiguity ---

// AmbiguityClass splits ambiguities into those the pipeline can resolve
// with a recommended default and those requiring a human decision.
type AmbiguityClass string

const (
	AutoResolvable   AmbiguityClass = "auto_resolvable"
	DecisionRequired AmbiguityClass = "decision_required"
)

// Ambiguity is an open question attached to a story.
type Ambiguity struct {
	Question       string         `json:"question"`
	Classification AmbiguityClass `json:"classification"`
	Options        []string       `json:"options,omitempty"`
	Default        string         `json:"default,omitempty"`
	Resolved       bool           `json:"resolved"`
	Resolution     string         `json:"resolution,omitempty"`
}

// --- Graph ---

// Graph is the full persisted artifact collection. Every mutation through
// the store rewrites the whole graph synchronously, so no partial write is
// ever observable.
type Graph struct {
	Entities  []Entity   `json:"entities"`
	Stories   []Story    `json:"stories"`
	Tasks     []Task     `json:"tasks"`
	Decisions []Decision `json:"decisions"`
	UpdatedAt string     `json:"updated_at"`
}

// Entity returns the entity with the given ID, or nil.
func (g *Graph) Entity(id string) *Entity {
	for i := range g.Entities {
		if g.Entities[i].ID == id {
			return &g.Entities[i]
		}
	}
	return nil
}

// Story returns the story with the given ID, or nil.
func (g *Graph) Story(id string) *Story {
	for i := range g.Stories {
		if g.Stories[i].ID == id {
			return &g.Stories[i]
		}
	}
	return nil
}

// Task returns the task with the given ID, or nil.
func (g *Graph) Task(id string) *Task {
	for i := range g.Tasks {
		if g.Tasks[i].ID == id {
			return &g.Tasks[i]
		}
	}
	return nil
}

// Decision returns the decision with the given ID, or nil.
func (g *Graph) Decision(id string) *Decision {
	for i := range g.Decisions {
		if g.Decisions[i].ID == id {
			return &g.Decisions[i]
		}
	}
	return nil
}

// Has reports whether any artifact (of any type) carries the given ID.
// Superseded artifacts still count - references to them stay resolvable.
func (g *Graph) Has(id string) bool {
	return g.Entity(id) != nil || g.Story(id) != nil || g.Task(id) != nil || g.Decision(id) != nil
}
