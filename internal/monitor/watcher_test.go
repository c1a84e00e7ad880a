package monitor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/devflow/internal/record"
)

// writeRecord replaces the record atomically, the way editors save: the
// watcher must never observe a half-written file.
func writeRecord(t *testing.T, path, doc string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(doc), 0644))
	require.NoError(t, os.Rename(tmp, path))
}

func startWatcher(t *testing.T) (*RecordWatcher, string, string) {
	t.Helper()

	doc := record.Materialize(record.TemplateParams{
		SessionID:   "20260829-100000-watched-abcd",
		FeatureID:   "001",
		Description: "watched",
		Slug:        "watched",
		BranchName:  "feature/001-watched",
		CreatedAt:   time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
	})

	path := filepath.Join(t.TempDir(), "session.md")
	writeRecord(t, path, doc)

	w, err := NewRecordWatcher(path, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	return w, path, doc
}

func waitEvent(t *testing.T, w *RecordWatcher) RecordEvent {
	t.Helper()
	select {
	case event := <-w.Events():
		return event
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for record event")
		return RecordEvent{}
	}
}

func TestWatcherClassifiesEngineWrite(t *testing.T) {
	w, path, doc := startWatcher(t)

	// An engine invocation always advances updated_at through the codec.
	doc, replaced := record.WriteField(doc, record.KeyCurrentStep, "spec drafted")
	require.True(t, replaced)
	doc, replaced = record.WriteField(doc, record.KeyUpdatedAt, "2026-08-29T10:05:00Z")
	require.True(t, replaced)
	writeRecord(t, path, doc)

	event := waitEvent(t, w)
	assert.Equal(t, EventTypeEngineWrite, event.Type)
	assert.Equal(t, path, event.Path)
	assert.Equal(t, "2026-08-29T10:05:00Z", event.UpdatedAt)
}

func TestWatcherClassifiesExternalEdit(t *testing.T) {
	w, path, doc := startWatcher(t)

	// A human scribbling in Notes never touches updated_at.
	writeRecord(t, path, doc+"\nreminder: check the retry budget\n")

	event := waitEvent(t, w)
	assert.Equal(t, EventTypeExternalEdit, event.Type)
}

func TestWatcherReportsRemoval(t *testing.T) {
	w, path, _ := startWatcher(t)

	require.NoError(t, os.Remove(path))

	event := waitEvent(t, w)
	assert.Equal(t, EventTypeRemoved, event.Type)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	w, path, doc := startWatcher(t)

	writeRecord(t, filepath.Join(filepath.Dir(path), "scratch.md"), "unrelated")

	// The unrelated file produces nothing; a real change still comes through.
	writeRecord(t, path, doc+"\ntrailing note\n")

	event := waitEvent(t, w)
	assert.Equal(t, EventTypeExternalEdit, event.Type)
	assert.Equal(t, path, event.Path)
}

func TestWatcherStopIsIdempotentAndConcurrencySafe(t *testing.T) {
	w, _, _ := startWatcher(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Stop()
		}()
	}
	wg.Wait()

	w.Stop()
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "engine-write", EventTypeEngineWrite.String())
	assert.Equal(t, "external-edit", EventTypeExternalEdit.String())
	assert.Equal(t, "removed", EventTypeRemoved.String())
}
