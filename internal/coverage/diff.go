// Package coverage computes which capabilities are uncovered and which
// artifacts a supersession touched - a diff over the current graph state,
// never a re-derivation of anything still valid.
package coverage

import (
	"sort"

	"github.com/MarisolVega/artifex/internal/artifact"
)

// Capability is the minimal capability-record view the diff needs. The
// semantic store owns the full record; the diff only cares about identity
// and supersession state.
type Capability struct {
	ID           string `json:"id"`
	Subtype      string `json:"subtype,omitempty"`
	SupersededBy string `json:"superseded_by,omitempty"`
}

// Diff is the full coverage result. Every field is sorted, so identical
// inputs always produce byte-identical output.
type Diff struct {
	UncoveredCapabilities    []string `json:"uncovered_capabilities"`
	CapabilitiesWithoutStories []string `json:"capabilities_without_stories"`
	AffectedDecisions        []string `json:"affected_decisions"`
	AffectedEntities         []string `json:"affected_entities"`
	AffectedStories          []string `json:"affected_stories"`
}

// Compute is a pure function of its inputs: no store access, no mutation,
// order-independent. Superseded capabilities never appear in
// UncoveredCapabilities - they are the trigger for the "affected" sets.
func Compute(caps []Capability, decisions []artifact.Decision, entities []artifact.Entity, stories []artifact.Story) *Diff {
	// 1. Partition capabilities by supersession state.
	active := map[string]bool{}
	superseded := map[string]bool{}
	for _, c := range caps {
		if c.SupersededBy != "" {
			superseded[c.ID] = true
		} else {
			active[c.ID] = true
		}
	}

	// 2. Capability IDs served by live decisions.
	served := map[string]bool{}
	for _, d := range decisions {
		if d.Superseded() {
			continue
		}
		for _, capID := range d.ServesCapabilities {
			served[capID] = true
		}
	}

	// 3. Active capabilities no live decision serves.
	uncovered := []string{}
	for id := range active {
		if !served[id] {
			uncovered = append(uncovered, id)
		}
	}

	// 4. Live decisions serving a superseded capability.
	affectedDecisions := []string{}
	affectedDecisionSet := map[string]bool{}
	for _, d := range decisions {
		if d.Superseded() {
			continue
		}
		for _, capID := range d.ServesCapabilities {
			if superseded[capID] {
				affectedDecisions = append(affectedDecisions, d.ID)
				affectedDecisionSet[d.ID] = true
				break
			}
		}
	}

	// 5. Live entities referenced by an affected decision.
	affectedEntities := []string{}
	for _, e := range entities {
		if e.SupersededBy != "" {
			continue
		}
		if referencedBy(e.ID, decisions, affectedDecisionSet) {
			affectedEntities = append(affectedEntities, e.ID)
		}
	}

	// 6. Stories implementing a superseded capability.
	affectedStories := []string{}
	for _, s := range stories {
		for _, capID := range s.Implements {
			if superseded[capID] {
				affectedStories = append(affectedStories, s.ID)
				break
			}
		}
	}

	// 7. Served, active capabilities with no implementing story.
	implemented := map[string]bool{}
	for _, s := range stories {
		for _, capID := range s.Implements {
			implemented[capID] = true
		}
	}
	withoutStories := []string{}
	for id := range active {
		if served[id] && !implemented[id] {
			withoutStories = append(withoutStories, id)
		}
	}

	sort.Strings(uncovered)
	sort.Strings(withoutStories)
	sort.Strings(affectedDecisions)
	sort.Strings(affectedEntities)
	sort.Strings(affectedStories)

	return &Diff{
		UncoveredCapabilities:      uncovered,
		CapabilitiesWithoutStories: withoutStories,
		AffectedDecisions:          affectedDecisions,
		AffectedEntities:           affectedEntities,
		AffectedStories:            affectedStories,
	}
}

// referencedBy reports whether any affected decision's affects list names
// the entity.
func referencedBy(entityID string, decisions []artifact.Decision, affected map[string]bool) bool {
	for _, d := range decisions {
		if !affected[d.ID] {
			continue
		}
		for _, ref := range d.Affects {
			if ref == entityID {
				return true
			}
		}
	}
	return false
}
