// Package session implements the session store: creation, switching,
// archival, identifier generation, and scoped access to the on-disk session
// record through the record codec.
//
// Layout under the workflow root:
//
//	sessions/{session_id}/session.md   active sessions
//	archive/{session_id}/session.md    archived sessions
//	ide/{hash}                         editor identity -> session id bindings
//	current                            legacy global "last active" pointer
package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/devflow/internal/record"
)

// Common errors.
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrAlreadyArchived    = errors.New("session already archived")
	ErrNoCurrentSession   = errors.New("no current session")
	ErrEmptyDescription   = errors.New("description cannot be empty")
	ErrRecordIncompatible = errors.New("session record is missing expected fields")
	ErrLoopCountDecreased = errors.New("loop_count never decreases")
)

// RecordFileName is the session record file inside a session directory.
const RecordFileName = "session.md"

// Session is the in-memory view of one session record.
type Session struct {
	ID        string
	Dir       string
	Archived  bool
	Feature   FeatureInfo
	Progress  Progress
	Condition map[string]bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FeatureInfo describes the feature a session implements.
type FeatureInfo struct {
	FeatureID   string
	Description string
	Slug        string
	IssueNumber string // "none" until an external issue is linked
	BranchName  string
	Platform    string
}

// Progress tracks the session's position in the workflow.
type Progress struct {
	CurrentPhase string
	CurrentStep  string
	LoopCount    int
}

// parseSession builds a Session from a record document. A record missing any
// expected field is treated as incompatible, not repaired.
func parseSession(id, dir string, archived bool, doc string) (*Session, error) {
	s := &Session{
		ID:        id,
		Dir:       dir,
		Archived:  archived,
		Condition: make(map[string]bool, len(record.ConditionKeys)),
	}

	fields := map[string]*string{
		record.KeyFeatureID:    &s.Feature.FeatureID,
		record.KeyDescription:  &s.Feature.Description,
		record.KeySlug:         &s.Feature.Slug,
		record.KeyIssueNumber:  &s.Feature.IssueNumber,
		record.KeyBranchName:   &s.Feature.BranchName,
		record.KeyPlatform:     &s.Feature.Platform,
		record.KeyCurrentPhase: &s.Progress.CurrentPhase,
		record.KeyCurrentStep:  &s.Progress.CurrentStep,
	}
	for key, dst := range fields {
		v, ok := record.ReadField(doc, key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrRecordIncompatible, key)
		}
		*dst = v
	}

	raw, ok := record.ReadField(doc, record.KeyLoopCount)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordIncompatible, record.KeyLoopCount)
	}
	loops, err := strconv.Atoi(raw)
	if err != nil || loops < 0 {
		return nil, fmt.Errorf("%w: %s", ErrRecordIncompatible, record.KeyLoopCount)
	}
	s.Progress.LoopCount = loops

	for _, key := range record.ConditionKeys {
		v, ok := record.ReadCondition(doc, key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrRecordIncompatible, key)
		}
		s.Condition[key] = v
	}

	if v, ok := record.ReadField(doc, record.KeyCreatedAt); ok {
		s.CreatedAt, _ = time.Parse(time.RFC3339, v)
	}
	if v, ok := record.ReadField(doc, record.KeyUpdatedAt); ok {
		s.UpdatedAt, _ = time.Parse(time.RFC3339, v)
	}

	return s, nil
}
