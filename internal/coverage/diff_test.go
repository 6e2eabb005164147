package coverage

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/MarisolVega/artifex/internal/artifact"
)

func TestCompute_UncoveredScenario(t *testing.T) {
	// CAP-F-001 served, CAP-F-002 not: exactly CAP-F-002 is uncovered and
	// nothing is affected.
	caps := []Capability{{ID: "CAP-F-001"}, {ID: "CAP-F-002"}}
	decisions := []artifact.Decision{
		{ID: "DEC-001", Topic: "t", ServesCapabilities: []string{"CAP-F-001"}},
	}

	got := Compute(caps, decisions, nil, nil)

	if !reflect.DeepEqual(got.UncoveredCapabilities, []string{"CAP-F-002"}) {
		t.Errorf("UncoveredCapabilities = %v, want [CAP-F-002]", got.UncoveredCapabilities)
	}
	if len(got.AffectedDecisions) != 0 {
		t.Errorf("AffectedDecisions = %v, want empty", got.AffectedDecisions)
	}
	if !reflect.DeepEqual(got.CapabilitiesWithoutStories, []string{"CAP-F-001"}) {
		t.Errorf("CapabilitiesWithoutStories = %v, want [CAP-F-001]", got.CapabilitiesWithoutStories)
	}
}

func TestCompute_SupersededCapabilityNeverUncovered(t *testing.T) {
	caps := []Capability{
		{ID: "CAP-F-001", SupersededBy: "CAP-F-003"},
		{ID: "CAP-F-002"},
		{ID: "CAP-F-003"},
	}

	got := Compute(caps, nil, nil, nil)

	for _, id := range got.UncoveredCapabilities {
		if id == "CAP-F-001" {
			t.Error("superseded CAP-F-001 appeared in UncoveredCapabilities")
		}
	}
	if !reflect.DeepEqual(got.UncoveredCapabilities, []string{"CAP-F-002", "CAP-F-003"}) {
		t.Errorf("UncoveredCapabilities = %v", got.UncoveredCapabilities)
	}
}

func TestCompute_AffectedSets(t *testing.T) {
	caps := []Capability{
		{ID: "CAP-F-001", SupersededBy: "CAP-F-004"}, // the supersession trigger
		{ID: "CAP-F-002"},
		{ID: "CAP-F-004"},
	}
	decisions := []artifact.Decision{
		// Live, serves the superseded capability: affected.
		{ID: "D-001", Topic: "a", ServesCapabilities: []string{"CAP-F-001"}, Affects: []string{"E-001"}},
		// Live, serves only an active capability: untouched.
		{ID: "D-002", Topic: "b", ServesCapabilities: []string{"CAP-F-002"}},
		// Itself superseded: excluded from every set.
		{ID: "D-003", Topic: "c", ServesCapabilities: []string{"CAP-F-001"}, SupersededBy: "D-004"},
	}
	entities := []artifact.Entity{
		{ID: "E-001", Name: "Invoice"},
		{ID: "E-002", Name: "Customer"},
	}
	stories := []artifact.Story{
		{ID: "S-001", Implements: []string{"CAP-F-001"}},
		{ID: "S-002", Implements: []string{"CAP-F-002"}},
	}

	got := Compute(caps, decisions, entities, stories)

	if !reflect.DeepEqual(got.AffectedDecisions, []string{"D-001"}) {
		t.Errorf("AffectedDecisions = %v, want [D-001]", got.AffectedDecisions)
	}
	if !reflect.DeepEqual(got.AffectedEntities, []string{"E-001"}) {
		t.Errorf("AffectedEntities = %v, want [E-001]", got.AffectedEntities)
	}
	if !reflect.DeepEqual(got.AffectedStories, []string{"S-001"}) {
		t.Errorf("AffectedStories = %v, want [S-001]", got.AffectedStories)
	}
	// CAP-F-004 is active but unserved; CAP-F-002 is served and implemented.
	if !reflect.DeepEqual(got.UncoveredCapabilities, []string{"CAP-F-004"}) {
		t.Errorf("UncoveredCapabilities = %v, want [CAP-F-004]", got.UncoveredCapabilities)
	}
	if len(got.CapabilitiesWithoutStories) != 0 {
		t.Errorf("CapabilitiesWithoutStories = %v, want empty", got.CapabilitiesWithoutStories)
	}
}

func TestCompute_Idempotent(t *testing.T) {
	caps := []Capability{
		{ID: "CAP-F-003"},
		{ID: "CAP-F-001", SupersededBy: "CAP-F-003"},
		{ID: "CAP-N-001"},
		{ID: "CAP-F-002"},
	}
	decisions := []artifact.Decision{
		{ID: "D-002", Topic: "b", ServesCapabilities: []string{"CAP-F-002", "CAP-F-001"}},
		{ID: "D-001", Topic: "a", ServesCapabilities: []string{"CAP-F-003"}},
	}
	entities := []artifact.Entity{{ID: "E-002", Name: "B"}, {ID: "E-001", Name: "A"}}
	stories := []artifact.Story{{ID: "S-002", Implements: []string{"CAP-F-003"}}, {ID: "S-001"}}

	first, err := json.Marshal(Compute(caps, decisions, entities, stories))
	if err != nil {
		t.Fatal(err)
	}
	second, err := json.Marshal(Compute(caps, decisions, entities, stories))
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Errorf("diff is not byte-identical across runs:\n%s\n%s", first, second)
	}

	// Input order must not matter either: reverse everything.
	reversedCaps := []Capability{caps[3], caps[2], caps[1], caps[0]}
	reversedDecisions := []artifact.Decision{decisions[1], decisions[0]}
	third, err := json.Marshal(Compute(reversedCaps, reversedDecisions, entities, stories))
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(third) {
		t.Errorf("diff depends on input order:\n%s\n%s", first, third)
	}
}

func TestCompute_EmptyInputs(t *testing.T) {
	got := Compute(nil, nil, nil, nil)
	if len(got.UncoveredCapabilities) != 0 || len(got.AffectedDecisions) != 0 ||
		len(got.AffectedEntities) != 0 || len(got.AffectedStories) != 0 ||
		len(got.CapabilitiesWithoutStories) != 0 {
		t.Errorf("empty inputs produced non-empty diff: %+v", got)
	}
}
