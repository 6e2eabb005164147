package impact

import (
	"fmt"
	"strings"

	"github.com/MarisolVega/artifex/internal/artifact"
)

// --- Result types ---

// ProposedEntity is a new domain entity implied by a story, with a
// traceability reason back to what implied it.
type ProposedEntity struct {
	Name        string `json:"name"`
	Reason      string `json:"reason"`
	SourceStory string `json:"source_story"`
}

// EntityModification flags an existing entity a story will touch.
type EntityModification struct {
	EntityID    string `json:"entity_id"`
	Description string `json:"description"`
}

// ProposedCapability is a capability record candidate for the semantic store.
type ProposedCapability struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Subtype     CapabilitySubtype `json:"subtype"`
}

// ProposedDecision is an architectural decision topic a story raises.
type ProposedDecision struct {
	Topic          string   `json:"topic"`
	Title          string   `json:"title"`
	Options        []string `json:"options"`
	Recommended    string   `json:"recommended,omitempty"`
	Rationale      string   `json:"rationale,omitempty"`
	AutoResolvable bool     `json:"auto_resolvable"`
}

// Impact is the full analysis output for one story.
type Impact struct {
	Verb                 Verb                 `json:"verb"`
	Object               string               `json:"object"`
	NewEntities          []ProposedEntity     `json:"new_entities"`
	EntityModifications  []EntityModification `json:"entity_modifications"`
	NewCapabilities      []ProposedCapability `json:"new_capabilities"`
	NewDecisions         []ProposedDecision   `json:"new_decisions"`
	ExistingEntitiesUsed []string             `json:"existing_entities_used"`
}

// Analyze derives the impact of a story against a graph snapshot.
//
// The dependsOn scan treats well-formed E- IDs as references (resolved ones
// are "existing entities used"; dangling ones propose a re-creation) and
// any other non-ID string as an entity *name* to resolve or propose. The
// analyzed story need not be persisted yet.
func Analyze(story *artifact.Story, graph *artifact.Graph) *Impact {
	verb, object := Classify(story.UserStoryText)
	out := &Impact{Verb: verb, Object: object}

	// (a) dependsOn scan.
	seen := map[string]bool{}
	for _, dep := range story.DependsOn {
		if prefix, ok := artifact.PrefixOf(dep); ok {
			if prefix != artifact.PrefixEntity {
				continue // story-to-story deps carry no entity impact
			}
			if graph.Entity(dep) != nil {
				out.ExistingEntitiesUsed = append(out.ExistingEntitiesUsed, dep)
				out.EntityModifications = append(out.EntityModifications, EntityModification{
					EntityID:    dep,
					Description: fmt.Sprintf("touched by %s story %s", verb, story.ID),
				})
			} else {
				out.NewEntities = append(out.NewEntities, ProposedEntity{
					Name:        dep,
					Reason:      fmt.Sprintf("story %s depends on unresolved entity %s", story.ID, dep),
					SourceStory: story.ID,
				})
			}
			continue
		}

		// Bare name: resolve against existing entity names first.
		if existing := findEntityByName(graph, dep); existing != nil {
			if !seen[existing.ID] {
				out.ExistingEntitiesUsed = append(out.ExistingEntitiesUsed, existing.ID)
				seen[existing.ID] = true
			}
		} else {
			out.NewEntities = append(out.NewEntities, ProposedEntity{
				Name:        titleCase(dep),
				Reason:      fmt.Sprintf("story %s depends on %q, which has no entity yet", story.ID, dep),
				SourceStory: story.ID,
			})
		}
	}

	// The object noun itself implies an entity for create stories.
	if verb == VerbCreate && object != "item" {
		if existing := findEntityByName(graph, object); existing != nil {
			if !seen[existing.ID] {
				out.ExistingEntitiesUsed = append(out.ExistingEntitiesUsed, existing.ID)
				seen[existing.ID] = true
			}
		} else if !proposedByName(out.NewEntities, object) {
			out.NewEntities = append(out.NewEntities, ProposedEntity{
				Name:        titleCase(object),
				Reason:      fmt.Sprintf("story %s creates %s records", story.ID, object),
				SourceStory: story.ID,
			})
		}
	}

	// (b) capability template for the classified verb.
	out.NewCapabilities = append(out.NewCapabilities, capabilityTemplates[verb].instantiate(object))
	if containsKeyword(story.UserStoryText, nfrKeywords...) {
		out.NewCapabilities = append(out.NewCapabilities, ProposedCapability{
			Name:        fmt.Sprintf("%s responsiveness", object),
			Description: fmt.Sprintf("The %s operation responds within interactive latency", verb),
			Subtype:     NonFunctional,
		})
	}

	// (c) decision rule table.
	for _, rule := range decisionRules {
		if !rule.match(verb, story.UserStoryText) {
			continue
		}
		out.NewDecisions = append(out.NewDecisions, ProposedDecision{
			Topic:          rule.topic,
			Title:          rule.title,
			Options:        rule.options,
			Recommended:    rule.recommended,
			Rationale:      rule.rationale,
			AutoResolvable: rule.autoResolvable,
		})
	}

	return out
}

// Ambiguities turns a story's proposed decisions into classified
// ambiguities for the story record: auto-resolvable topics get a default,
// the rest require a human decision.
func Ambiguities(im *Impact) []artifact.Ambiguity {
	var out []artifact.Ambiguity
	for _, d := range im.NewDecisions {
		class := artifact.DecisionRequired
		if d.AutoResolvable {
			class = artifact.AutoResolvable
		}
		out = append(out, artifact.Ambiguity{
			Question:       d.Title,
			Classification: class,
			Options:        d.Options,
			Default:        d.Recommended,
		})
	}
	return out
}

// findEntityByName resolves a non-superseded entity by case-insensitive name.
func findEntityByName(graph *artifact.Graph, name string) *artifact.Entity {
	for i := range graph.Entities {
		e := &graph.Entities[i]
		if e.SupersededBy == "" && strings.EqualFold(e.Name, name) {
			return e
		}
	}
	return nil
}

func proposedByName(entities []ProposedEntity, name string) bool {
	for _, e := range entities {
		if strings.EqualFold(e.Name, name) {
			return true
		}
	}
	return false
}
