package forge

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"time"
)

// Runner executes an external command and returns its combined output. It is
// injectable so tests never shell out.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// LookPath reports the resolved path of a binary, or an error when it is not
// on PATH. Injectable for the same reason.
type LookPath func(name string) (string, error)

const cliTimeout = 30 * time.Second

// execRunner is the production Runner: CommandContext with a timeout,
// combined output, failures wrapped as *ToolError.
func execRunner(ctx context.Context, name string, args ...string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, cliTimeout)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if timeoutCtx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("timeout after %v", cliTimeout)
		}
		return "", &ToolError{Tool: name, Args: args, Output: string(output), Err: err}
	}
	return string(output), nil
}

// cliBinaries maps each platform to its CLI.
var cliBinaries = map[Platform]string{
	PlatformGitHub: "gh",
	PlatformGitLab: "glab",
	PlatformGitea:  "tea",
}

// CLIBinary returns the CLI binary for a platform. The second return is
// false for PlatformNone.
func CLIBinary(p Platform) (string, bool) {
	name, ok := cliBinaries[p]
	return name, ok
}

// issueArgs builds the provider-specific issue creation command line.
func issueArgs(p Platform, title, body string) []string {
	switch p {
	case PlatformGitHub:
		return []string{"issue", "create", "--title", title, "--body", body}
	case PlatformGitLab:
		return []string{"issue", "create", "--title", title, "--description", body}
	case PlatformGitea:
		return []string{"issue", "create", "--title", title, "--description", body}
	default:
		return nil
	}
}

// pullRequestArgs builds the provider-specific PR/MR creation command line.
func pullRequestArgs(p Platform, title, body, head, base string) []string {
	switch p {
	case PlatformGitHub:
		return []string{"pr", "create", "--title", title, "--body", body, "--head", head, "--base", base}
	case PlatformGitLab:
		return []string{"mr", "create", "--title", title, "--description", body, "--source-branch", head, "--target-branch", base}
	case PlatformGitea:
		return []string{"pr", "create", "--title", title, "--description", body, "--head", head, "--base", base}
	default:
		return nil
	}
}

// Scrape patterns for CLI output. Best effort: the CLIs print human text,
// not a structured response, so these are fragile to output changes.
var (
	issueNumberPattern = regexp.MustCompile(`#(\d+)`)
	urlPattern         = regexp.MustCompile(`https?://\S+`)
)

// scrapeIssueNumber extracts the created issue number from CLI output. The
// second return is false when no `#<digits>` token is present.
func scrapeIssueNumber(output string) (string, bool) {
	matches := issueNumberPattern.FindStringSubmatch(output)
	if len(matches) < 2 {
		return "", false
	}
	return matches[1], true
}

// scrapeURL extracts the first URL from CLI output.
func scrapeURL(output string) (string, bool) {
	match := urlPattern.FindString(output)
	return match, match != ""
}
