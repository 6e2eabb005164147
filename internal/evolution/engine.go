// Package evolution checks a story's proposed design changes against the
// existing decision record and applies the safe subset.
//
// The engine is a per-story state machine with three outcomes: ready (safe
// to apply), blocked_on_conflicts (a proposed decision contradicts a live
// one - nothing is applied), and blocked_on_approval (no contradiction, but
// a human must sign off before entities or non-auto-resolvable decisions
// land). Conflicts are soft blocks: no data is corrupted, and resolution
// suggestions are returned for a human or gate to act on.
package evolution

import (
	"errors"
	"fmt"

	"github.com/MarisolVega/artifex/internal/artifact"
	"github.com/MarisolVega/artifex/internal/impact"
)

// ErrConflict marks a soft block on contradictory decisions. The caller
// resolves it by superseding the existing decision or withdrawing the
// proposal - never by forcing the write through.
var ErrConflict = errors.New("conflicting decisions")

// Status is the outcome of evolving one story.
type Status string

const (
	StatusReady              Status = "ready"
	StatusBlockedOnConflicts Status = "blocked_on_conflicts"
	StatusBlockedOnApproval  Status = "blocked_on_approval"
)

// Conflict pairs a proposed decision with the live decision it contradicts.
type Conflict struct {
	Topic              string   `json:"topic"`
	ProposedTitle      string   `json:"proposed_title"`
	ExistingDecisionID string   `json:"existing_decision_id"`
	ExistingTitle      string   `json:"existing_title"`
	Suggestions        []string `json:"suggestions"`
}

// Evolution is the full result of evolving a story.
type Evolution struct {
	StoryID   string                    `json:"story_id"`
	Status    Status                    `json:"status"`
	Conflicts []Conflict                `json:"conflicts,omitempty"`
	Decisions []impact.ProposedDecision `json:"decisions,omitempty"`
	Entities  []impact.ProposedEntity   `json:"entities,omitempty"`
	Impact    *impact.Impact            `json:"impact"`

	// AppliedDecisionIDs and RegisteredEntityIDs are populated by
	// EvolveAndApply once the write actually happens.
	AppliedDecisionIDs  []string `json:"applied_decision_ids,omitempty"`
	RegisteredEntityIDs []string `json:"registered_entity_ids,omitempty"`
}

// Engine evaluates and applies story-driven design evolution.
type Engine struct {
	store artifact.Store
}

// New creates an evolution engine over the given artifact store.
func New(store artifact.Store) *Engine {
	return &Engine{store: store}
}

// Evolve analyzes the story and classifies the outcome without mutating
// anything. The returned Evolution carries the conflicts (if any) and the
// full proposed decision/entity set.
func (e *Engine) Evolve(storyID string) (*Evolution, error) {
	story, err := e.store.GetStory(storyID)
	if err != nil {
		return nil, fmt.Errorf("loading story: %w", err)
	}

	graph := e.store.Graph()
	im := impact.Analyze(story, graph)

	ev := &Evolution{
		StoryID:   storyID,
		Impact:    im,
		Decisions: im.NewDecisions,
		Entities:  im.NewEntities,
	}

	// Conflict rule: normalized topics match and the existing decision has
	// not been superseded.
	for _, proposed := range im.NewDecisions {
		topic := artifact.NormalizeTopic(proposed.Topic)
		for _, existing := range graph.Decisions {
			if existing.Superseded() || existing.Topic != topic {
				continue
			}
			ev.Conflicts = append(ev.Conflicts, Conflict{
				Topic:              topic,
				ProposedTitle:      proposed.Title,
				ExistingDecisionID: existing.ID,
				ExistingTitle:      existing.Title,
				Suggestions: []string{
					fmt.Sprintf("supersede %s if the new approach replaces it", existing.ID),
					"withdraw the proposed decision and reuse the existing one",
					fmt.Sprintf("narrow the proposed topic so it no longer overlaps %q", topic),
				},
			})
		}
	}

	switch {
	case len(ev.Conflicts) > 0:
		ev.Status = StatusBlockedOnConflicts
	case needsApproval(im):
		ev.Status = StatusBlockedOnApproval
	default:
		ev.Status = StatusReady
	}
	return ev, nil
}

// needsApproval implements the approval rule: any non-auto-resolvable
// decision, or any new/modified entity, requires an explicit human gate.
func needsApproval(im *impact.Impact) bool {
	for _, d := range im.NewDecisions {
		if !d.AutoResolvable {
			return true
		}
	}
	return len(im.NewEntities) > 0 || len(im.EntityModifications) > 0
}

// EvolveAndApply evolves the story and, when the result is ready - or
// blocked on approval with approved=true - applies it: auto-resolvable
// decisions are written, proposed entities registered as planned, the
// story's ambiguities recorded, and the story advanced to designed.
//
// A conflicted evolution is returned as-is with nothing applied; approval
// cannot override conflicts.
func (e *Engine) EvolveAndApply(storyID string, approved bool) (*Evolution, error) {
	ev, err := e.Evolve(storyID)
	if err != nil {
		return nil, err
	}
	if ev.Status == StatusBlockedOnConflicts {
		return ev, nil
	}
	if ev.Status == StatusBlockedOnApproval && !approved {
		return ev, nil
	}

	story, err := e.store.GetStory(storyID)
	if err != nil {
		return nil, fmt.Errorf("reloading story: %w", err)
	}

	// Register proposed entities as planned.
	for _, pe := range ev.Entities {
		id, err := e.store.AddEntity(artifact.Entity{
			Name:        pe.Name,
			Status:      artifact.EntityPlanned,
			SourceStory: pe.SourceStory,
		})
		if err != nil {
			return nil, fmt.Errorf("registering entity %q: %w", pe.Name, err)
		}
		ev.RegisteredEntityIDs = append(ev.RegisteredEntityIDs, id)
	}

	// Write auto-resolvable decisions with their recommended option.
	for _, pd := range ev.Decisions {
		if !pd.AutoResolvable {
			continue
		}
		id, err := e.store.AddDecision(artifact.Decision{
			Title:     fmt.Sprintf("%s: %s", pd.Title, pd.Recommended),
			Topic:     pd.Topic,
			Rationale: pd.Rationale,
			Affects:   []string{storyID},
		})
		if err != nil {
			return nil, fmt.Errorf("writing decision %q: %w", pd.Topic, err)
		}
		ev.AppliedDecisionIDs = append(ev.AppliedDecisionIDs, id)
	}

	// Record ambiguities on the story; auto-resolvable ones are resolved
	// with their default now that the decision is written.
	ambs := impact.Ambiguities(ev.Impact)
	for i := range ambs {
		if ambs[i].Classification == artifact.AutoResolvable {
			ambs[i].Resolved = true
			ambs[i].Resolution = ambs[i].Default
		}
	}
	story.Ambiguities = ambs

	// Resolved entity references replace bare names in dependsOn.
	story.DependsOn = rewriteDeps(story.DependsOn, ev)

	if err := e.store.PutStory(*story); err != nil {
		return nil, fmt.Errorf("saving story: %w", err)
	}
	if err := e.store.UpdateStatus(storyID, string(artifact.StoryDesigned), nil); err != nil {
		return nil, fmt.Errorf("advancing story: %w", err)
	}
	return ev, nil
}

// rewriteDeps swaps bare entity names for the IDs they were registered
// under, leaving resolved IDs and story references untouched.
func rewriteDeps(deps []string, ev *Evolution) []string {
	if len(ev.RegisteredEntityIDs) == 0 {
		return deps
	}
	byName := make(map[string]string, len(ev.Entities))
	for i, pe := range ev.Entities {
		if i < len(ev.RegisteredEntityIDs) {
			byName[normalizeName(pe.Name)] = ev.RegisteredEntityIDs[i]
		}
	}
	out := make([]string, 0, len(deps))
	for _, dep := range deps {
		if _, ok := artifact.PrefixOf(dep); ok {
			out = append(out, dep)
			continue
		}
		if id, ok := byName[normalizeName(dep)]; ok {
			out = append(out, id)
			continue
		}
		out = append(out, dep)
	}
	return out
}

func normalizeName(s string) string {
	return artifact.NormalizeTopic(s)
}
