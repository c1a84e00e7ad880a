package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/devflow/internal/session"
)

// runCLI executes the root command in-process with a clean flag state.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	flagConfig, flagRoot, flagIDEID, flagSession, flagPlatform = "", "", "", "", ""
	flagCategory, flagIssueBody, flagPRBody, flagPRBase = "", "", "", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

// readyRoot creates a workflow root with the readiness records in place.
func readyRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "constitution.md"), []byte("# Constitution\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "architecture.md"), []byte("# Architecture\n"), 0644))
	return root
}

func TestSessionLifecycleViaCLI(t *testing.T) {
	root := readyRoot(t)

	out, err := runCLI(t, "session", "create", "Add payment retry", "--root", root, "--ide-id", "editor-1")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	assert.Regexp(t, `^\d{8}-\d{6}-add-payment-retry-[0-9a-f]{4}$`, id)

	out, err = runCLI(t, "session", "current", "--root", root, "--ide-id", "editor-1")
	require.NoError(t, err)
	assert.Equal(t, id, strings.TrimSpace(out))

	out, err = runCLI(t, "field", "read", "current_phase", "--root", root, "--ide-id", "editor-1")
	require.NoError(t, err)
	assert.Equal(t, "init", strings.TrimSpace(out))

	out, err = runCLI(t, "phase", "complete", "--root", root, "--ide-id", "editor-1")
	require.NoError(t, err)
	assert.Equal(t, "spec", strings.TrimSpace(out))

	_, err = runCLI(t, "session", "archive", "--root", root, "--ide-id", "editor-1")
	require.NoError(t, err)

	_, err = runCLI(t, "session", "current", "--root", root, "--ide-id", "editor-1")
	assert.ErrorIs(t, err, session.ErrNoCurrentSession)
}

func TestSessionCreateRequiresReadiness(t *testing.T) {
	root := t.TempDir()

	_, err := runCLI(t, "session", "create", "too early", "--root", root, "--ide-id", "editor-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project not ready")
}

func TestExplicitSessionFlagBypassesResolver(t *testing.T) {
	root := readyRoot(t)

	out, err := runCLI(t, "session", "create", "First feature", "--root", root, "--ide-id", "editor-1")
	require.NoError(t, err)
	id := strings.TrimSpace(out)

	// A different editor with no binding reads it through --session.
	out, err = runCLI(t, "field", "read", "slug", "--root", root, "--ide-id", "editor-2", "--session", id)
	require.NoError(t, err)
	assert.Equal(t, "first-feature", strings.TrimSpace(out))
}

func TestFieldWriteRejectsClearingFlags(t *testing.T) {
	root := readyRoot(t)

	_, err := runCLI(t, "session", "create", "Monotonic flags", "--root", root, "--ide-id", "editor-1")
	require.NoError(t, err)

	_, err = runCLI(t, "field", "write", "init_complete", "true", "--root", root, "--ide-id", "editor-1")
	require.NoError(t, err)

	_, err = runCLI(t, "field", "write", "init_complete", "false", "--root", root, "--ide-id", "editor-1")
	require.Error(t, err)
}

func TestProjectCheckReportsRoute(t *testing.T) {
	root := t.TempDir()

	out, err := runCLI(t, "project", "check", "--root", root)
	require.NoError(t, err)
	assert.Contains(t, out, "ready: false")
	assert.Contains(t, out, "constitution: false")

	out, err = runCLI(t, "project", "check", "--root", readyRoot(t))
	require.NoError(t, err)
	assert.Contains(t, out, "ready: true")
}

func TestPlatformDetectHonorsOverride(t *testing.T) {
	root := readyRoot(t)

	out, err := runCLI(t, "platform", "detect", "--root", root, "--ide-id", "editor-1", "--platform", "gitea")
	require.NoError(t, err)
	assert.Equal(t, "gitea", strings.TrimSpace(out))
}

func TestPlatformDetectInvalidOverride(t *testing.T) {
	_, err := runCLI(t, "platform", "detect", "--root", t.TempDir(), "--platform", "sourcehut")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid platform override")
}

func TestHistoryAppendViaCLI(t *testing.T) {
	root := readyRoot(t)

	out, err := runCLI(t, "session", "create", "History rows", "--root", root, "--ide-id", "editor-1")
	require.NoError(t, err)
	id := strings.TrimSpace(out)

	_, err = runCLI(t, "history", "append", "init", "completed", "scaffolding done",
		"--root", root, "--ide-id", "editor-1")
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(root, "sessions", id, "session.md"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "| init | completed | scaffolding done |")
}
