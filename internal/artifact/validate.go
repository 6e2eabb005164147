package artifact

import (
	"fmt"
	"strings"
)

// --- Pre-mutation validation ---
//
// Validation runs against the graph as it would look after the mutation,
// before anything is persisted. A failing check leaves the graph untouched.

// isLocalRef reports whether an ID belongs to one of the graph's own prefix
// pools. Semantic-store IDs (CAP-F-001, ...) are external and not resolved
// against the graph.
func isLocalRef(id string) bool {
	_, ok := PrefixOf(id)
	return ok
}

// validateStory checks a story's required fields and references against the
// graph. The story itself may or may not already be in the graph.
func validateStory(g *Graph, s *Story) error {
	if strings.TrimSpace(s.Title) == "" {
		return &ValidationError{ArtifactID: s.ID, Reason: "title is required"}
	}
	if strings.TrimSpace(s.UserStoryText) == "" {
		return &ValidationError{ArtifactID: s.ID, Reason: "user story text is required"}
	}
	if s.Status != "" {
		if err := ValidateStoryStatus(s.Status); err != nil {
			return &ValidationError{ArtifactID: s.ID, Reason: err.Error()}
		}
	}
	for _, dep := range s.DependsOn {
		if !isLocalRef(dep) {
			continue
		}
		p, _ := PrefixOf(dep)
		if p != PrefixEntity && p != PrefixStory {
			return &ValidationError{ArtifactID: s.ID, Reason: fmt.Sprintf("dependsOn %q must reference an entity or story", dep)}
		}
		if dep != s.ID && !g.Has(dep) {
			return &ValidationError{ArtifactID: s.ID, Reason: fmt.Sprintf("dependsOn references unknown artifact %q", dep)}
		}
	}
	return checkStoryCycles(g, s)
}

// checkStoryCycles rejects the story if adding (or replacing) it would close
// a cycle among story-to-story dependency edges.
func checkStoryCycles(g *Graph, s *Story) error {
	// Build the story dependency adjacency, with s replacing any existing
	// version of itself.
	deps := make(map[string][]string, len(g.Stories)+1)
	for _, st := range g.Stories {
		if st.ID == s.ID {
			continue
		}
		deps[st.ID] = storyDeps(st.DependsOn)
	}
	deps[s.ID] = storyDeps(s.DependsOn)

	const (
		white = 0 // unvisited
		gray  = 1 // on stack
		black = 2 // done
	)
	color := make(map[string]int, len(deps))

	var visit func(id string) error
	visit = func(id string) error {
		color[id] = gray
		for _, next := range deps[id] {
			switch color[next] {
			case gray:
				return &ValidationError{ArtifactID: s.ID, Reason: fmt.Sprintf("story dependency cycle through %q", next)}
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}

	for id := range deps {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// storyDeps filters a dependsOn list down to story IDs.
func storyDeps(ids []string) []string {
	var out []string
	for _, id := range ids {
		if p, ok := PrefixOf(id); ok && p == PrefixStory {
			out = append(out, id)
		}
	}
	return out
}

// validateDecision checks a decision's required fields and references.
func validateDecision(g *Graph, d *Decision) error {
	if strings.TrimSpace(d.Title) == "" {
		return &ValidationError{ArtifactID: d.ID, Reason: "title is required"}
	}
	if strings.TrimSpace(d.Topic) == "" {
		return &ValidationError{ArtifactID: d.ID, Reason: "topic is required"}
	}
	for _, ref := range d.Affects {
		if isLocalRef(ref) && !g.Has(ref) {
			return &ValidationError{ArtifactID: d.ID, Reason: fmt.Sprintf("affects references unknown artifact %q", ref)}
		}
	}
	return nil
}

// validateTask checks a task's required fields and its story reference.
func validateTask(g *Graph, t *Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return &ValidationError{ArtifactID: t.ID, Reason: "title is required"}
	}
	if t.StoryID == "" {
		return &ValidationError{ArtifactID: t.ID, Reason: "story_id is required"}
	}
	if g.Story(t.StoryID) == nil {
		return &ValidationError{ArtifactID: t.ID, Reason: fmt.Sprintf("unknown story %q", t.StoryID)}
	}
	return nil
}

// validateEntity checks an entity's required fields.
func validateEntity(g *Graph, e *Entity) error {
	if strings.TrimSpace(e.Name) == "" {
		return &ValidationError{ArtifactID: e.ID, Reason: "name is required"}
	}
	if e.Status != "" {
		if err := ValidateEntityStatus(e.Status); err != nil {
			return &ValidationError{ArtifactID: e.ID, Reason: err.Error()}
		}
	}
	if e.SourceStory != "" && g.Story(e.SourceStory) == nil {
		return &ValidationError{ArtifactID: e.ID, Reason: fmt.Sprintf("unknown source story %q", e.SourceStory)}
	}
	return nil
}

// NormalizeTopic canonicalizes a decision topic for conflict comparison:
// lowercase, trimmed, spaces and hyphens collapsed to underscores.
// This string-equality contract is the explicit v1 conflict rule.
func NormalizeTopic(topic string) string {
	s := strings.ToLower(strings.TrimSpace(topic))
	var b strings.Builder
	prevUnderscore := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			prevUnderscore = false
		case r == ' ' || r == '-' || r == '_':
			if !prevUnderscore {
				b.WriteByte('_')
				prevUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}
