package record

import (
	"errors"
)

// NotesSentinel is the heading that terminates the machine-managed part of
// a session record. Automated writers never modify content at or after it.
const NotesSentinel = "## Notes"

// Field keys for the named single-value lines of a session record.
const (
	KeyFeatureID    = "feature_id"
	KeyDescription  = "description"
	KeySlug         = "slug"
	KeyIssueNumber  = "issue_number"
	KeyBranchName   = "branch_name"
	KeyPlatform     = "platform"
	KeyCurrentPhase = "current_phase"
	KeyCurrentStep  = "current_step"
	KeyLoopCount    = "loop_count"
	KeyCreatedAt    = "created_at"
	KeyUpdatedAt    = "updated_at"
)

// IssueNumberNone is the issue_number value of a session with no external
// issue reference.
const IssueNumberNone = "none"

// ConditionKeys lists the nine workflow gates of a session record, in the
// order they appear in the Conditions block. Flags are monotonic: they move
// from false to true on their owning phase's success signal and are never
// cleared.
var ConditionKeys = []string{
	"init_complete",
	"spec_complete",
	"test_scenarios_written",
	"implementation_complete",
	"code_review_passed",
	"browser_tests_passed",
	"auto_tests_passed",
	"final_review_passed",
	"workflow_complete",
}

// Common errors.
var (
	// ErrFieldMissing indicates an expected field pattern is absent from the
	// record. Callers must treat this as record corruption or a template
	// version mismatch and abort the current phase.
	ErrFieldMissing = errors.New("record field missing")

	// ErrNoSentinel indicates the record has no Notes sentinel, so the
	// history table has no insertion point.
	ErrNoSentinel = errors.New("record has no notes sentinel")

	// ErrFlagCleared indicates an attempt to reset a condition flag from
	// true back to false. Condition flags only progress.
	ErrFlagCleared = errors.New("condition flag cannot be cleared")
)

// IsConditionKey reports whether key names one of the nine workflow gates.
func IsConditionKey(key string) bool {
	for _, k := range ConditionKeys {
		if k == key {
			return true
		}
	}
	return false
}
