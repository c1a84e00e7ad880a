// Package monitor watches the active session record for writes. Because
// records are plain text files edited in place with no locking, a second
// writer (another editor window, a stray agent) can interleave with the
// engine; the watcher makes those writes visible instead of silent.
package monitor

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devflow/internal/record"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// EventType classifies a detected record write.
type EventType int

const (
	// EventTypeEngineWrite is a write that advanced the record's updated_at
	// field: an engine invocation went through the codec.
	EventTypeEngineWrite EventType = iota

	// EventTypeExternalEdit is a write that changed the record's bytes
	// without touching updated_at: a concurrent out-of-band editor.
	EventTypeExternalEdit

	// EventTypeRemoved is the record disappearing (archive or deletion).
	EventTypeRemoved
)

func (t EventType) String() string {
	switch t {
	case EventTypeEngineWrite:
		return "engine-write"
	case EventTypeExternalEdit:
		return "external-edit"
	case EventTypeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// RecordEvent is one detected write to the watched session record.
type RecordEvent struct {
	Type EventType

	// Path is the watched record file.
	Path string

	// UpdatedAt is the record's updated_at value after the write, empty for
	// EventTypeRemoved.
	UpdatedAt string

	// Timestamp is when the event was detected.
	Timestamp time.Time
}

// RecordWatcher watches one session record file.
//
// The watch is placed on the record's directory, not the file: editors that
// save atomically replace the file, which would silently drop a file-level
// watch.
type RecordWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	events   chan RecordEvent
	stop     chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger

	lastDigest    [sha256.Size]byte
	lastUpdatedAt string
}

// NewRecordWatcher creates a watcher for the record file at path.
func NewRecordWatcher(path string, logger *zap.Logger) (*RecordWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &RecordWatcher{
		path:    path,
		watcher: watcher,
		events:  make(chan RecordEvent, 10),
		stop:    make(chan struct{}),
		logger:  logger,
	}, nil
}

// Start snapshots the record and begins watching. Events are delivered on
// Events() until Stop is called or the context ends.
func (w *RecordWatcher) Start(ctx context.Context) error {
	content, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("reading record: %w", err)
	}
	w.lastDigest = sha256.Sum256(content)
	w.lastUpdatedAt, _ = record.ReadField(string(content), record.KeyUpdatedAt)

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching record directory: %w", err)
	}

	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher and cleans up resources. Safe to call from
// multiple goroutines.
func (w *RecordWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		_ = w.watcher.Close()
	})
}

// Events returns the channel delivering record events.
func (w *RecordWatcher) Events() <-chan RecordEvent {
	return w.events
}

func (w *RecordWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}

			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				w.handleChange()
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.emit(RecordEvent{
					Type:      EventTypeRemoved,
					Path:      w.path,
					Timestamp: time.Now(),
				})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("record watcher error", zap.Error(err))
		}
	}
}

// handleChange re-reads the record and classifies the write. Writes that
// leave the bytes unchanged are ignored.
func (w *RecordWatcher) handleChange() {
	content, err := os.ReadFile(w.path)
	if err != nil {
		// Mid-replace or removed; the follow-up event settles it.
		return
	}

	digest := sha256.Sum256(content)
	if digest == w.lastDigest {
		return
	}
	w.lastDigest = digest

	updatedAt, _ := record.ReadField(string(content), record.KeyUpdatedAt)

	eventType := EventTypeExternalEdit
	if updatedAt != w.lastUpdatedAt {
		eventType = EventTypeEngineWrite
	}
	w.lastUpdatedAt = updatedAt

	w.emit(RecordEvent{
		Type:      eventType,
		Path:      w.path,
		UpdatedAt: updatedAt,
		Timestamp: time.Now(),
	})
}

// emit sends non-blocking; a slow consumer drops events rather than stalling
// the watch loop.
func (w *RecordWatcher) emit(event RecordEvent) {
	select {
	case w.events <- event:
	default:
		w.logger.Warn("record event dropped", zap.String("type", event.Type.String()))
	}
}
