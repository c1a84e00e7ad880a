package forge

import (
	"errors"
	"fmt"
	"strings"
)

// Platform identifies a git hosting provider.
type Platform string

const (
	PlatformGitHub Platform = "github"
	PlatformGitLab Platform = "gitlab"
	PlatformGitea  Platform = "gitea"
	PlatformNone   Platform = "none"
)

// Common errors.
var (
	// ErrToolUnavailable indicates the platform's CLI binary is not on PATH.
	// Callers degrade to the manual flow.
	ErrToolUnavailable = errors.New("platform CLI not available")

	// ErrUnknownPlatform indicates a platform name outside the supported set.
	ErrUnknownPlatform = errors.New("unknown platform")
)

// ParsePlatform converts a string to a Platform. The empty string parses to
// PlatformNone.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case PlatformGitHub, PlatformGitLab, PlatformGitea, PlatformNone:
		return p, nil
	case "":
		return PlatformNone, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
	}
}

// IssueRef references a created issue.
type IssueRef struct {
	Number string
	URL    string
}

// PullRequestRef references a created pull (or merge) request.
type PullRequestRef struct {
	URL string
}

// Manual-flow sentinels for empty operator input. They signal "created
// out-of-band, nothing to record" and are never written back.
const (
	ManualIssueSentinel       = "0"
	ManualPullRequestSentinel = "manual"
)

// ToolError carries the raw output of a failed external tool invocation so
// the operator can diagnose it. It is never swallowed.
type ToolError struct {
	Tool   string
	Args   []string
	Output string
	Err    error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s %s failed: %v (output: %s)",
		e.Tool, strings.Join(e.Args, " "), e.Err, strings.TrimSpace(e.Output))
}

func (e *ToolError) Unwrap() error { return e.Err }
