package workflow

import (
	"fmt"
	"strings"

	"github.com/MarisolVega/artifex/internal/generator"
)

// ValidationResult is the outcome of one entry-condition check.
type ValidationResult struct {
	Passed         bool     `json:"passed"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation,omitempty"`
	CanOverride    bool     `json:"can_override"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Check inspects the accumulated stage outputs and judges whether a
// workflow boundary may be crossed.
type Check func(outputs map[string]*generator.StageOutput) ValidationResult

// Gate guards the transition from one workflow into the next. A failing
// overridable check still blocks unless the caller passes an explicit
// override - a soft gate, not a hard error.
type Gate struct {
	From   string
	To     string
	Checks []Check
}

// EntryConditionError reports a gate failure. Overridable failures carry
// CanOverride=true so callers can distinguish a soft block (bypassable
// with an explicit flag) from a hard missing-prerequisite failure.
type EntryConditionError struct {
	From   string
	To     string
	Result ValidationResult
}

func (e *EntryConditionError) Error() string {
	kind := "entry condition failed"
	if e.Result.CanOverride {
		kind = "entry condition failed (overridable)"
	}
	return fmt.Sprintf("%s entering %s: %s", kind, e.To, e.Result.Message)
}

// Evaluate runs the gate's checks in order. The first failure that cannot
// be bypassed stops evaluation; overridden failures are demoted to
// warnings on the returned results.
func (g Gate) Evaluate(outputs map[string]*generator.StageOutput, override bool) ([]ValidationResult, error) {
	results := make([]ValidationResult, 0, len(g.Checks))
	for _, check := range g.Checks {
		res := check(outputs)
		if !res.Passed {
			if res.CanOverride && override {
				res.Warnings = append(res.Warnings, "failure bypassed by explicit override")
				results = append(results, res)
				continue
			}
			results = append(results, res)
			return results, &EntryConditionError{From: g.From, To: g.To, Result: res}
		}
		results = append(results, res)
	}
	return results, nil
}

// --- Built-in checks ---

// PriorWorkflowComplete requires persisted output from every non-optional
// stage of the prior workflow. Missing prerequisite output is a hard
// failure - there is nothing to override with.
func PriorWorkflowComplete(prior *Workflow) Check {
	return func(outputs map[string]*generator.StageOutput) ValidationResult {
		var missing []string
		for _, s := range prior.Stages {
			if s.IsOptional {
				continue
			}
			out, ok := outputs[s.Slug]
			if !ok || out == nil || strings.TrimSpace(out.Content) == "" {
				missing = append(missing, s.Slug)
			}
		}
		if len(missing) > 0 {
			return ValidationResult{
				Passed:      false,
				Message:     fmt.Sprintf("workflow %s incomplete: missing output from %s", prior.ID, strings.Join(missing, ", ")),
				CanOverride: false,
			}
		}
		return ValidationResult{Passed: true, Message: fmt.Sprintf("workflow %s complete", prior.ID)}
	}
}

// MinContentLength requires a stage's persisted content to reach a
// minimum length. Guards against a producer returning a stub artifact.
func MinContentLength(slug string, min int) Check {
	return func(outputs map[string]*generator.StageOutput) ValidationResult {
		out := outputs[slug]
		if out == nil {
			return ValidationResult{
				Passed:      false,
				Message:     fmt.Sprintf("stage %s has no output", slug),
				CanOverride: false,
			}
		}
		if got := len(strings.TrimSpace(out.Content)); got < min {
			return ValidationResult{
				Passed:      false,
				Message:     fmt.Sprintf("stage %s content is %d chars, need at least %d", slug, got, min),
				CanOverride: false,
			}
		}
		return ValidationResult{Passed: true, Message: fmt.Sprintf("stage %s content length ok", slug)}
	}
}

// MinClaims requires a stage to have extracted at least min structured
// claims.
func MinClaims(slug string, min int) Check {
	return func(outputs map[string]*generator.StageOutput) ValidationResult {
		out := outputs[slug]
		if out == nil {
			return ValidationResult{
				Passed:      false,
				Message:     fmt.Sprintf("stage %s has no output", slug),
				CanOverride: false,
			}
		}
		if len(out.Claims) < min {
			return ValidationResult{
				Passed:      false,
				Message:     fmt.Sprintf("stage %s extracted %d claims, need at least %d", slug, len(out.Claims), min),
				CanOverride: false,
			}
		}
		return ValidationResult{Passed: true, Message: fmt.Sprintf("stage %s claims ok", slug)}
	}
}

// verdictClaim is the claim name carrying a summary stage's go/no-go call.
const verdictClaim = "recommendation"

// NoHardRejection blocks progression when the summary stage recommended
// against proceeding. This is the canonical soft gate: the failure is
// overridable with an explicit flag, because a human may decide to
// proceed against the recommendation.
func NoHardRejection(slug string) Check {
	return func(outputs map[string]*generator.StageOutput) ValidationResult {
		out := outputs[slug]
		if out == nil {
			return ValidationResult{
				Passed:      false,
				Message:     fmt.Sprintf("stage %s has no output to judge", slug),
				CanOverride: false,
			}
		}
		for _, claim := range out.Claims {
			if claim.Name != verdictClaim {
				continue
			}
			verdict := strings.ToLower(claim.Metadata["verdict"])
			if verdict == "no-go" || verdict == "reject" {
				return ValidationResult{
					Passed:         false,
					Message:        fmt.Sprintf("stage %s recommends against proceeding", slug),
					Recommendation: verdict,
					CanOverride:    true,
				}
			}
			return ValidationResult{Passed: true, Message: "recommendation allows proceeding", Recommendation: verdict}
		}
		return ValidationResult{
			Passed:   true,
			Message:  "no recommendation claim found",
			Warnings: []string{fmt.Sprintf("stage %s carries no %q claim", slug, verdictClaim)},
		}
	}
}
