package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devflow/internal/record"
	"github.com/fyrsmithlabs/devflow/internal/sanitize"
)

const instrumentationName = "github.com/fyrsmithlabs/devflow/internal/session"

// Store manages session lifecycle and record access.
//
// Every operation is a short-lived synchronous call: the store holds no
// state between invocations beyond what is on disk. Feature id allocation is
// scan-then-write with no locking; concurrent creates can race to the same
// id (accepted risk, reconciled at archive time if it ever happens).
type Store struct {
	root     string
	resolver IdentityResolver
	logger   *zap.Logger
	now      func() time.Time

	tracer        trace.Tracer
	meter         metric.Meter
	createCounter metric.Int64Counter
}

// NewStore creates a session store rooted at the workflow root.
func NewStore(root string, resolver IdentityResolver, logger *zap.Logger) (*Store, error) {
	if root == "" {
		return nil, errors.New("workflow root is required")
	}
	if resolver == nil {
		resolver = NewFileResolver(root)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		root:     root,
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
		tracer:   otel.Tracer(instrumentationName),
		meter:    otel.Meter(instrumentationName),
	}

	var err error
	s.createCounter, err = s.meter.Int64Counter(
		"devflow.session.creates_total",
		metric.WithDescription("Total number of sessions created"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		s.logger.Warn("failed to create session counter", zap.Error(err))
	}

	return s, nil
}

// Root returns the workflow root directory.
func (s *Store) Root() string { return s.root }

// Create creates a new session from a feature description, registers it as
// current for the given identity, and returns it. The new session id is the
// command's stdout contract.
func (s *Store) Create(ctx context.Context, identity, description string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.create")
	defer span.End()

	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrEmptyDescription
	}

	slug := sanitize.Slug(description)
	now := s.now()

	suffix, err := randomSuffix()
	if err != nil {
		return nil, fmt.Errorf("failed to generate id suffix: %w", err)
	}
	id := fmt.Sprintf("%s-%s-%s-%s", now.Format("20060102"), now.Format("150405"), slug, suffix)

	featureID, err := s.allocateFeatureID()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate feature id: %w", err)
	}

	dir := filepath.Join(s.sessionsDir(), id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	doc := record.Materialize(record.TemplateParams{
		SessionID:   id,
		FeatureID:   featureID,
		Description: description,
		Slug:        slug,
		BranchName:  sanitize.BranchName(featureID, slug),
		CreatedAt:   now,
	})
	if err := os.WriteFile(filepath.Join(dir, RecordFileName), []byte(doc), 0644); err != nil {
		return nil, fmt.Errorf("failed to write session record: %w", err)
	}

	if err := s.registerCurrent(ctx, identity, id); err != nil {
		return nil, err
	}

	if s.createCounter != nil {
		s.createCounter.Add(ctx, 1)
	}
	span.SetAttributes(
		attribute.String("session_id", id),
		attribute.String("feature_id", featureID),
	)
	s.logger.Info("created session",
		zap.String("session_id", id),
		zap.String("feature_id", featureID),
		zap.String("slug", slug),
	)

	return parseSession(id, dir, false, doc)
}

// Switch re-registers an existing session as current for the identity.
func (s *Store) Switch(ctx context.Context, identity, id string) error {
	ctx, span := s.tracer.Start(ctx, "session.switch")
	defer span.End()

	if _, err := os.Stat(s.recordPath(id, false)); err != nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	if err := s.registerCurrent(ctx, identity, id); err != nil {
		return err
	}

	s.logger.Info("switched session", zap.String("session_id", id))
	return nil
}

// Archive unlinks every identity association and moves the session
// directory into the archived namespace. Archiving an already-archived or
// missing session is an error.
func (s *Store) Archive(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "session.archive")
	defer span.End()

	archivedDir := filepath.Join(s.archiveDir(), id)
	if _, err := os.Stat(archivedDir); err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyArchived, id)
	}

	activeDir := filepath.Join(s.sessionsDir(), id)
	if _, err := os.Stat(filepath.Join(activeDir, RecordFileName)); err != nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	if err := s.resolver.UnbindSession(ctx, id); err != nil {
		return err
	}
	if err := s.clearLegacyPointer(id); err != nil {
		return err
	}

	if err := os.MkdirAll(s.archiveDir(), 0755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := os.Rename(activeDir, archivedDir); err != nil {
		return fmt.Errorf("failed to move session to archive: %w", err)
	}

	s.logger.Info("archived session", zap.String("session_id", id))
	return nil
}

// Current resolves the calling identity's session. The per-identity binding
// wins; the legacy global "last active" pointer is consulted only when no
// identity-specific binding exists.
func (s *Store) Current(ctx context.Context, identity string) (*Session, error) {
	id, err := s.resolver.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = s.legacyPointer()
	}
	if id == "" {
		return nil, ErrNoCurrentSession
	}

	sess, err := s.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			// A stale binding points at a removed session.
			return nil, fmt.Errorf("%w: binding points at %s", ErrNoCurrentSession, id)
		}
		return nil, err
	}
	return sess, nil
}

// Load reads a session record by id, looking in the active namespace first
// and the archive second.
func (s *Store) Load(ctx context.Context, id string) (*Session, error) {
	for _, archived := range []bool{false, true} {
		path := s.recordPath(id, archived)
		content, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read session record: %w", err)
		}
		return parseSession(id, filepath.Dir(path), archived, string(content))
	}
	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

// List returns the ids of all active sessions.
func (s *Store) List(ctx context.Context) ([]string, error) {
	return listSessionDirs(s.sessionsDir())
}

// ReadField reads a single field from a session record.
func (s *Store) ReadField(ctx context.Context, id, key string) (string, error) {
	doc, err := s.readRecord(id)
	if err != nil {
		return "", err
	}
	value, ok := record.ReadField(doc, key)
	if !ok {
		return "", fmt.Errorf("%w: %s", record.ErrFieldMissing, key)
	}
	return value, nil
}

// WriteField updates a single field in a session record, leaving every other
// byte unchanged. Monotonic invariants are enforced here: a true condition
// flag cannot be cleared and loop_count never decreases.
func (s *Store) WriteField(ctx context.Context, id, key, value string) error {
	ctx, span := s.tracer.Start(ctx, "session.write_field")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", id), attribute.String("key", key))

	doc, err := s.readRecord(id)
	if err != nil {
		return err
	}

	if record.IsConditionKey(key) {
		current, _ := record.ReadCondition(doc, key)
		if current && value != "true" {
			return fmt.Errorf("%w: %s", record.ErrFlagCleared, key)
		}
	}
	if key == record.KeyLoopCount {
		if err := validateLoopCount(doc, value); err != nil {
			return err
		}
	}

	doc, replaced := record.WriteField(doc, key, value)
	if !replaced {
		// A missing expected field means the record is corrupt or from an
		// incompatible template; the caller must abort, not retry.
		return fmt.Errorf("%w: %s", record.ErrFieldMissing, key)
	}

	doc = s.touch(doc)
	return s.writeRecord(id, doc)
}

// AppendHistory appends one row to the session's history log.
func (s *Store) AppendHistory(ctx context.Context, id, phase, action, result string) error {
	ctx, span := s.tracer.Start(ctx, "session.append_history")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", id), attribute.String("phase", phase))

	doc, err := s.readRecord(id)
	if err != nil {
		return err
	}

	doc, err = record.AppendHistory(doc, s.now(), phase, action, result)
	if err != nil {
		return err
	}

	doc = s.touch(doc)
	return s.writeRecord(id, doc)
}

// RecordPath returns the on-disk path of a session's record, or an error
// when the session does not exist in either namespace.
func (s *Store) RecordPath(id string) (string, error) {
	for _, archived := range []bool{false, true} {
		path := s.recordPath(id, archived)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

// allocateFeatureID scans every session record, active and archived, for the
// highest existing feature id and returns the next one, zero-padded to three
// digits.
func (s *Store) allocateFeatureID() (string, error) {
	max := 0
	for _, dir := range []string{s.sessionsDir(), s.archiveDir()} {
		ids, err := listSessionDirs(dir)
		if err != nil {
			return "", err
		}
		for _, id := range ids {
			content, err := os.ReadFile(filepath.Join(dir, id, RecordFileName))
			if err != nil {
				continue
			}
			raw, ok := record.ReadField(string(content), record.KeyFeatureID)
			if !ok {
				continue
			}
			n, err := strconv.Atoi(raw)
			if err != nil {
				continue
			}
			if n > max {
				max = n
			}
		}
	}
	return fmt.Sprintf("%03d", max+1), nil
}

// registerCurrent binds the identity and refreshes the legacy pointer so
// callers without an identity binding still resolve the last active session.
func (s *Store) registerCurrent(ctx context.Context, identity, id string) error {
	if err := s.resolver.Bind(ctx, identity, id); err != nil {
		return err
	}
	if err := os.WriteFile(s.legacyPointerPath(), []byte(id+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to update last-active pointer: %w", err)
	}
	return nil
}

func (s *Store) legacyPointer() string {
	content, err := os.ReadFile(s.legacyPointerPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(content))
}

func (s *Store) clearLegacyPointer(id string) error {
	if s.legacyPointer() != id {
		return nil
	}
	if err := os.Remove(s.legacyPointerPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear last-active pointer: %w", err)
	}
	return nil
}

// touch refreshes the updated_at field. A record without one is left alone:
// touch runs inside writes that already validated the record.
func (s *Store) touch(doc string) string {
	out, _ := record.WriteField(doc, record.KeyUpdatedAt, s.now().UTC().Format(time.RFC3339))
	return out
}

func (s *Store) readRecord(id string) (string, error) {
	path, err := s.RecordPath(id)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read session record: %w", err)
	}
	return string(content), nil
}

func (s *Store) writeRecord(id, doc string) error {
	path, err := s.RecordPath(id)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(doc), 0644)
}

func (s *Store) sessionsDir() string       { return filepath.Join(s.root, "sessions") }
func (s *Store) archiveDir() string        { return filepath.Join(s.root, "archive") }
func (s *Store) legacyPointerPath() string { return filepath.Join(s.root, "current") }

func (s *Store) recordPath(id string, archived bool) string {
	base := s.sessionsDir()
	if archived {
		base = s.archiveDir()
	}
	return filepath.Join(base, id, RecordFileName)
}

func listSessionDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

func validateLoopCount(doc, value string) error {
	next, err := strconv.Atoi(value)
	if err != nil || next < 0 {
		return fmt.Errorf("%w: loop_count must be a non-negative integer", ErrLoopCountDecreased)
	}
	raw, ok := record.ReadField(doc, record.KeyLoopCount)
	if !ok {
		return fmt.Errorf("%w: %s", record.ErrFieldMissing, record.KeyLoopCount)
	}
	current, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrRecordIncompatible, record.KeyLoopCount)
	}
	if next < current {
		return fmt.Errorf("%w: %d -> %d", ErrLoopCountDecreased, current, next)
	}
	return nil
}

func randomSuffix() (string, error) {
	b := make([]byte, 2)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
