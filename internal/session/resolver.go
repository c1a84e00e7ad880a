package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// IdentityResolver maps an opaque editor-instance identity to a session id.
// It is an injected capability: the store never consults an ambient global
// to decide which session a caller means.
type IdentityResolver interface {
	// Resolve returns the session id bound to an identity, or "" when the
	// identity has no binding.
	Resolve(ctx context.Context, identity string) (string, error)

	// Bind registers a session as current for an identity.
	Bind(ctx context.Context, identity, sessionID string) error

	// UnbindSession removes every identity binding that points at a session.
	UnbindSession(ctx context.Context, sessionID string) error
}

// fileResolver stores one binding file per identity under {root}/ide/.
// Identities are opaque and may contain anything, so file names are a hash
// of the identity, not the identity itself.
type fileResolver struct {
	dir string
}

// NewFileResolver creates a file-backed identity resolver rooted at the
// workflow root.
func NewFileResolver(root string) IdentityResolver {
	return &fileResolver{dir: filepath.Join(root, "ide")}
}

func (r *fileResolver) Resolve(ctx context.Context, identity string) (string, error) {
	content, err := os.ReadFile(r.bindingPath(identity))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read identity binding: %w", err)
	}
	return strings.TrimSpace(string(content)), nil
}

func (r *fileResolver) Bind(ctx context.Context, identity, sessionID string) error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("failed to create identity directory: %w", err)
	}
	if err := os.WriteFile(r.bindingPath(identity), []byte(sessionID+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write identity binding: %w", err)
	}
	return nil
}

func (r *fileResolver) UnbindSession(ctx context.Context, sessionID string) error {
	entries, err := os.ReadDir(r.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to list identity bindings: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(content)) == sessionID {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove identity binding: %w", err)
			}
		}
	}
	return nil
}

func (r *fileResolver) bindingPath(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return filepath.Join(r.dir, hex.EncodeToString(sum[:])[:16])
}

// EnsureIdentity resolves the calling editor instance's identity.
//
// Priority: the DEVFLOW_IDE_IDENTITY environment variable, then a persisted
// per-checkout identity file, which is created with a fresh UUID on first
// use so repeated invocations from the same checkout resolve consistently.
func EnsureIdentity(root string) (string, error) {
	if id := os.Getenv("DEVFLOW_IDE_IDENTITY"); id != "" {
		return id, nil
	}

	path := filepath.Join(root, ".identity")
	content, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(content)); id != "" {
			return id, nil
		}
	}

	id := uuid.New().String()
	if err := os.MkdirAll(root, 0755); err != nil {
		return "", fmt.Errorf("failed to create workflow root: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0644); err != nil {
		return "", fmt.Errorf("failed to persist identity: %w", err)
	}
	return id, nil
}
