// Package phase implements the workflow state machine: the canonical phase
// order, the condition-flag exit gates, and the failure-rollback edges.
package phase

import (
	"errors"
	"fmt"
	"strings"
)

// Phase is a named workflow stage with defined entry/exit criteria and
// rollback targets.
type Phase string

// Session-scoped phases, in canonical order.
const (
	PhaseInit        Phase = "init"
	PhaseSpec        Phase = "spec"
	PhaseTestSpec    Phase = "test-spec"
	PhaseDev         Phase = "dev"
	PhaseDevTest     Phase = "dev-test"
	PhaseReviewCode  Phase = "review-code"
	PhaseTestBrowser Phase = "test-browser"
	PhaseTestAuto    Phase = "test-auto"
	PhaseReviewFinal Phase = "review-final"
	PhaseFinalize    Phase = "finalize"
)

// PhaseAnalyze is the project-scoped routing target for checkouts that have
// recognizable sources but no readiness records yet. It never appears as a
// session's current_phase.
const PhaseAnalyze Phase = "analyze"

// Common errors.
var (
	ErrUnknownPhase    = errors.New("unknown phase")
	ErrPhaseMismatch   = errors.New("phase does not match session state")
	ErrGateNotPassed   = errors.New("phase gate not passed")
	ErrNoRollbackEdge  = errors.New("phase has no rollback edge")
	ErrTerminalPhase   = errors.New("finalize is terminal")
	ErrProjectNotReady = errors.New("project not ready")
)

// SessionPhases returns the session-scoped phases in canonical order.
func SessionPhases() []Phase {
	return []Phase{
		PhaseInit, PhaseSpec, PhaseTestSpec, PhaseDev, PhaseDevTest,
		PhaseReviewCode, PhaseTestBrowser, PhaseTestAuto, PhaseReviewFinal,
		PhaseFinalize,
	}
}

// Parse converts a string to a Phase.
func Parse(s string) (Phase, error) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	if p == PhaseAnalyze {
		return p, nil
	}
	for _, known := range SessionPhases() {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPhase, s)
}

// Next returns the happy-path successor of a phase. The second return is
// false for the terminal phase.
func Next(p Phase) (Phase, bool) {
	phases := SessionPhases()
	for i, known := range phases {
		if known == p && i+1 < len(phases) {
			return phases[i+1], true
		}
	}
	return "", false
}

// OwningFlag returns the condition flag a phase sets on success. dev-test is
// a pure verification step and owns no flag: its success signal advances the
// workflow directly.
func OwningFlag(p Phase) (string, bool) {
	flags := map[Phase]string{
		PhaseInit:        "init_complete",
		PhaseSpec:        "spec_complete",
		PhaseTestSpec:    "test_scenarios_written",
		PhaseDev:         "implementation_complete",
		PhaseReviewCode:  "code_review_passed",
		PhaseTestBrowser: "browser_tests_passed",
		PhaseTestAuto:    "auto_tests_passed",
		PhaseReviewFinal: "final_review_passed",
		PhaseFinalize:    "workflow_complete",
	}
	flag, ok := flags[p]
	return flag, ok
}

// FailureCategory classifies a review-final failure to pick its rollback
// target. Other phases ignore the category.
type FailureCategory string

const (
	CategoryCodeQuality FailureCategory = "code-quality"
	CategoryTestContent FailureCategory = "test-content"
	CategoryEndToEnd    FailureCategory = "end-to-end"
	CategoryCoverage    FailureCategory = "coverage"
)

// reviewFinalEdges maps review-final failure categories to rollback targets.
var reviewFinalEdges = []struct {
	Category FailureCategory
	Target   Phase
}{
	{CategoryCodeQuality, PhaseDev},
	{CategoryTestContent, PhaseDevTest},
	{CategoryEndToEnd, PhaseTestBrowser},
	{CategoryCoverage, PhaseTestAuto},
}

// AmbiguousRollbackError reports a review-final failure that maps to no
// defined rollback edge. The engine never guesses a target: the caller must
// pick one of the candidates explicitly.
type AmbiguousRollbackError struct {
	Category FailureCategory
}

func (e *AmbiguousRollbackError) Error() string {
	candidates := make([]string, 0, len(reviewFinalEdges))
	for _, edge := range reviewFinalEdges {
		candidates = append(candidates, fmt.Sprintf("%s -> %s", edge.Category, edge.Target))
	}
	return fmt.Sprintf("ambiguous review-final failure (category %q): pick one of %s",
		string(e.Category), strings.Join(candidates, ", "))
}

// Candidates returns the selectable rollback targets.
func (e *AmbiguousRollbackError) Candidates() []FailureCategory {
	out := make([]FailureCategory, 0, len(reviewFinalEdges))
	for _, edge := range reviewFinalEdges {
		out = append(out, edge.Category)
	}
	return out
}

// RollbackTarget returns the phase a failure rolls back to. The targets are
// not simply "the previous phase":
//
//	dev-test     -> dev
//	review-code  -> dev
//	test-browser -> dev
//	test-auto    -> test-spec   (re-examine scenarios, not the code)
//	review-final -> by category (code-quality, test-content, end-to-end, coverage)
//
// A review-final failure with an unmapped category returns
// *AmbiguousRollbackError. Phases before dev-test have no rollback edge:
// they retry in place and ErrNoRollbackEdge is returned.
func RollbackTarget(p Phase, category FailureCategory) (Phase, error) {
	switch p {
	case PhaseDevTest, PhaseReviewCode, PhaseTestBrowser:
		return PhaseDev, nil
	case PhaseTestAuto:
		return PhaseTestSpec, nil
	case PhaseReviewFinal:
		for _, edge := range reviewFinalEdges {
			if edge.Category == category {
				return edge.Target, nil
			}
		}
		return "", &AmbiguousRollbackError{Category: category}
	case PhaseInit, PhaseSpec, PhaseTestSpec, PhaseDev:
		return "", fmt.Errorf("%w: %s", ErrNoRollbackEdge, p)
	case PhaseFinalize:
		return "", fmt.Errorf("%w: %s", ErrNoRollbackEdge, p)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPhase, p)
	}
}
