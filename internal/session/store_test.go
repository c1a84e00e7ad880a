package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/devflow/internal/record"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	store, err := NewStore(root, NewFileResolver(root), nil)
	require.NoError(t, err)
	return store
}

func TestCreateFreshSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "editor-1", "Add payment retry")
	require.NoError(t, err)

	// Scenario from the workflow contract: first session on an empty store.
	assert.Equal(t, "001", sess.Feature.FeatureID)
	assert.Equal(t, "add-payment-retry", sess.Feature.Slug)
	assert.Equal(t, "feature/001-add-payment-retry", sess.Feature.BranchName)
	assert.Equal(t, "none", sess.Feature.IssueNumber)
	assert.Equal(t, "init", sess.Progress.CurrentPhase)
	assert.Equal(t, 0, sess.Progress.LoopCount)

	require.Len(t, sess.Condition, 9)
	for key, v := range sess.Condition {
		assert.False(t, v, "flag %s must start false", key)
	}

	// Session id format: {8-digit date}-{6-digit time}-{slug}-{4-hex}.
	assert.Regexp(t, regexp.MustCompile(`^\d{8}-\d{6}-add-payment-retry-[0-9a-f]{4}$`), sess.ID)

	// The record exists on disk and the identity now resolves to it.
	_, err = os.Stat(filepath.Join(sess.Dir, RecordFileName))
	require.NoError(t, err)

	current, err := store.Current(ctx, "editor-1")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, current.ID)
}

func TestCreateRejectsEmptyDescription(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create(context.Background(), "editor-1", "   ")
	assert.ErrorIs(t, err, ErrEmptyDescription)
}

func TestFeatureIDsStrictlyIncrease(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		sess, err := store.Create(ctx, "editor-1", fmt.Sprintf("feature number %d", i))
		require.NoError(t, err)
		ids = append(ids, sess.Feature.FeatureID)
	}

	assert.Equal(t, []string{"001", "002", "003"}, ids)
}

func TestFeatureIDScanIncludesArchive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, "editor-1", "first feature")
	require.NoError(t, err)
	require.NoError(t, store.Archive(ctx, first.ID))

	// Archived sessions still hold their feature id: the allocator must not
	// reuse 001.
	second, err := store.Create(ctx, "editor-1", "second feature")
	require.NoError(t, err)
	assert.Equal(t, "002", second.Feature.FeatureID)
}

func TestSwitchSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.Create(ctx, "editor-1", "feature a")
	require.NoError(t, err)
	b, err := store.Create(ctx, "editor-1", "feature b")
	require.NoError(t, err)

	current, err := store.Current(ctx, "editor-1")
	require.NoError(t, err)
	assert.Equal(t, b.ID, current.ID)

	require.NoError(t, store.Switch(ctx, "editor-1", a.ID))
	current, err = store.Current(ctx, "editor-1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, current.ID)
}

func TestSwitchMissingSession(t *testing.T) {
	store := newTestStore(t)

	err := store.Switch(context.Background(), "editor-1", "20260829-100000-ghost-dead")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestArchiveSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "editor-1", "to be archived")
	require.NoError(t, err)

	require.NoError(t, store.Archive(ctx, sess.ID))

	// Directory moved to the archived namespace.
	_, err = os.Stat(filepath.Join(store.Root(), "archive", sess.ID, RecordFileName))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(store.Root(), "sessions", sess.ID))
	assert.True(t, os.IsNotExist(err))

	// Identity association unlinked.
	_, err = store.Current(ctx, "editor-1")
	assert.ErrorIs(t, err, ErrNoCurrentSession)

	// Loading still works, flagged as archived.
	loaded, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Archived)

	// Re-archiving errors.
	assert.ErrorIs(t, store.Archive(ctx, sess.ID), ErrAlreadyArchived)

	// Archiving a missing session errors.
	assert.ErrorIs(t, store.Archive(ctx, "20260829-100000-ghost-dead"), ErrSessionNotFound)
}

func TestCurrentFallsBackToLegacyPointer(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "editor-1", "shared feature")
	require.NoError(t, err)

	// A second editor with no binding of its own falls back to the global
	// last-active pointer.
	current, err := store.Current(ctx, "editor-2")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, current.ID)
}

func TestCurrentPrefersIdentityBinding(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.Create(ctx, "editor-1", "feature a")
	require.NoError(t, err)
	_, err = store.Create(ctx, "editor-2", "feature b")
	require.NoError(t, err)

	// editor-2's create moved the legacy pointer, but editor-1's own binding
	// must win.
	current, err := store.Current(ctx, "editor-1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, current.ID)
}

func TestCurrentWithNothingResolvable(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Current(context.Background(), "editor-1")
	assert.ErrorIs(t, err, ErrNoCurrentSession)
}

func TestReadWriteField(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "editor-1", "field access")
	require.NoError(t, err)

	require.NoError(t, store.WriteField(ctx, sess.ID, record.KeyCurrentPhase, "spec"))

	got, err := store.ReadField(ctx, sess.ID, record.KeyCurrentPhase)
	require.NoError(t, err)
	assert.Equal(t, "spec", got)

	_, err = store.ReadField(ctx, sess.ID, "no_such_field")
	assert.ErrorIs(t, err, record.ErrFieldMissing)

	err = store.WriteField(ctx, sess.ID, "no_such_field", "x")
	assert.ErrorIs(t, err, record.ErrFieldMissing)
}

func TestWriteFieldKeepsRecordParseableAfterHostileValue(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "editor-1", "hostile values")
	require.NoError(t, err)

	// Agents paste command output into current_step; backticks and newlines
	// must not leave the record unreadable.
	require.NoError(t, store.WriteField(ctx, sess.ID, record.KeyCurrentStep, "ran `go test`\nall green"))

	got, err := store.ReadField(ctx, sess.ID, record.KeyCurrentStep)
	require.NoError(t, err)
	assert.Equal(t, "ran 'go test' all green", got)

	loaded, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "ran 'go test' all green", loaded.Progress.CurrentStep)
}

func TestWriteFieldEnforcesMonotonicFlags(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "editor-1", "monotonic flags")
	require.NoError(t, err)

	require.NoError(t, store.WriteField(ctx, sess.ID, "spec_complete", "true"))

	err = store.WriteField(ctx, sess.ID, "spec_complete", "false")
	assert.ErrorIs(t, err, record.ErrFlagCleared)
}

func TestWriteFieldEnforcesLoopCountMonotonicity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "editor-1", "loop count")
	require.NoError(t, err)

	require.NoError(t, store.WriteField(ctx, sess.ID, record.KeyLoopCount, "2"))

	assert.ErrorIs(t, store.WriteField(ctx, sess.ID, record.KeyLoopCount, "1"), ErrLoopCountDecreased)
	assert.ErrorIs(t, store.WriteField(ctx, sess.ID, record.KeyLoopCount, "-1"), ErrLoopCountDecreased)
	assert.NoError(t, store.WriteField(ctx, sess.ID, record.KeyLoopCount, "2"))
	assert.NoError(t, store.WriteField(ctx, sess.ID, record.KeyLoopCount, "3"))
}

func TestAppendHistoryThroughStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "editor-1", "history")
	require.NoError(t, err)

	require.NoError(t, store.AppendHistory(ctx, sess.ID, "review-code", "failed", "rolled back to dev"))
	require.NoError(t, store.AppendHistory(ctx, sess.ID, "dev", "completed", "feedback applied"))

	path, err := store.RecordPath(sess.ID)
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	rows := record.HistoryRows(string(content))
	require.Len(t, rows, 2)
	assert.Equal(t, "review-code", rows[0][1])
	assert.Equal(t, "dev", rows[1][1])
}

func TestWritesPreserveNotesRegion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "editor-1", "notes safety")
	require.NoError(t, err)

	// An operator annotates the record below the Notes sentinel.
	path, err := store.RecordPath(sess.ID)
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	annotated := string(content) + "\nRemember to ask design about the retry budget.\n"
	require.NoError(t, os.WriteFile(path, []byte(annotated), 0644))

	require.NoError(t, store.WriteField(ctx, sess.ID, record.KeyCurrentStep, "spec drafted"))
	require.NoError(t, store.AppendHistory(ctx, sess.ID, "spec", "completed", "ok"))

	content, err = os.ReadFile(path)
	require.NoError(t, err)
	notes := string(content)[strings.Index(string(content), record.NotesSentinel):]
	assert.Contains(t, notes, "Remember to ask design about the retry budget.")
}

func TestParseSessionRejectsCorruptRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "editor-1", "corrupt record")
	require.NoError(t, err)

	path, err := store.RecordPath(sess.ID)
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	corrupted := strings.Replace(string(content), "- **current_phase**:", "- **phase**:", 1)
	require.NoError(t, os.WriteFile(path, []byte(corrupted), 0644))

	_, err = store.Load(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrRecordIncompatible)
}

func TestUpdatedAtAdvancesOnWrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "editor-1", "timestamps")
	require.NoError(t, err)

	store.now = func() time.Time { return time.Date(2027, 1, 2, 3, 4, 5, 0, time.UTC) }
	require.NoError(t, store.WriteField(ctx, sess.ID, record.KeyCurrentStep, "later"))

	got, err := store.ReadField(ctx, sess.ID, record.KeyUpdatedAt)
	require.NoError(t, err)
	assert.Equal(t, "2027-01-02T03:04:05Z", got)
}
