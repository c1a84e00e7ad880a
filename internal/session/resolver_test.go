package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileResolverBindResolve(t *testing.T) {
	root := t.TempDir()
	r := NewFileResolver(root)
	ctx := context.Background()

	// Unbound identity resolves to nothing, not an error.
	id, err := r.Resolve(ctx, "vscode-window-1")
	require.NoError(t, err)
	assert.Equal(t, "", id)

	require.NoError(t, r.Bind(ctx, "vscode-window-1", "20260829-100000-a-1111"))
	require.NoError(t, r.Bind(ctx, "vscode-window-2", "20260829-100000-b-2222"))

	id, err = r.Resolve(ctx, "vscode-window-1")
	require.NoError(t, err)
	assert.Equal(t, "20260829-100000-a-1111", id)

	id, err = r.Resolve(ctx, "vscode-window-2")
	require.NoError(t, err)
	assert.Equal(t, "20260829-100000-b-2222", id)
}

func TestFileResolverRebind(t *testing.T) {
	root := t.TempDir()
	r := NewFileResolver(root)
	ctx := context.Background()

	require.NoError(t, r.Bind(ctx, "editor", "session-a"))
	require.NoError(t, r.Bind(ctx, "editor", "session-b"))

	id, err := r.Resolve(ctx, "editor")
	require.NoError(t, err)
	assert.Equal(t, "session-b", id)
}

func TestFileResolverUnbindSession(t *testing.T) {
	root := t.TempDir()
	r := NewFileResolver(root)
	ctx := context.Background()

	// Two editors on the same session, one on another.
	require.NoError(t, r.Bind(ctx, "editor-1", "session-a"))
	require.NoError(t, r.Bind(ctx, "editor-2", "session-a"))
	require.NoError(t, r.Bind(ctx, "editor-3", "session-b"))

	require.NoError(t, r.UnbindSession(ctx, "session-a"))

	for _, identity := range []string{"editor-1", "editor-2"} {
		id, err := r.Resolve(ctx, identity)
		require.NoError(t, err)
		assert.Equal(t, "", id)
	}

	id, err := r.Resolve(ctx, "editor-3")
	require.NoError(t, err)
	assert.Equal(t, "session-b", id)

	// Unbinding with no bindings directory is a no-op.
	empty := NewFileResolver(t.TempDir())
	assert.NoError(t, empty.UnbindSession(ctx, "whatever"))
}

func TestFileResolverHandlesOpaqueIdentities(t *testing.T) {
	root := t.TempDir()
	r := NewFileResolver(root)
	ctx := context.Background()

	// Identities can contain path separators and other hostile characters.
	identity := "../../etc/passwd\x00weird id"
	require.NoError(t, r.Bind(ctx, identity, "session-x"))

	id, err := r.Resolve(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, "session-x", id)

	// The binding landed inside the ide directory.
	entries, err := os.ReadDir(filepath.Join(root, "ide"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEnsureIdentityEnvWins(t *testing.T) {
	t.Setenv("DEVFLOW_IDE_IDENTITY", "windsurf-42")

	id, err := EnsureIdentity(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "windsurf-42", id)
}

func TestEnsureIdentityPersists(t *testing.T) {
	t.Setenv("DEVFLOW_IDE_IDENTITY", "")
	root := t.TempDir()

	first, err := EnsureIdentity(root)
	require.NoError(t, err)
	_, err = uuid.Parse(first)
	require.NoError(t, err, "generated identity must be a UUID")

	second, err := EnsureIdentity(root)
	require.NoError(t, err)
	assert.Equal(t, first, second, "identity must be stable per checkout")
}
