package forge

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// manualFlow is the last-resort adapter: it prints what would have been
// created and blocks for an operator-supplied identifier. This is the only
// interactive path in the whole engine.
type manualFlow struct {
	in  io.Reader
	out io.Writer
}

// Issue prints the computed issue and reads the number the operator created
// out-of-band. Empty input returns ManualIssueSentinel.
func (m *manualFlow) Issue(title, body string) (string, error) {
	fmt.Fprintln(m.out, "No usable platform CLI. Create the issue manually:")
	fmt.Fprintf(m.out, "  title: %s\n", title)
	if body != "" {
		fmt.Fprintf(m.out, "  body:  %s\n", body)
	}
	fmt.Fprint(m.out, "Issue number (empty to skip): ")

	line, err := m.readLine()
	if err != nil {
		return "", err
	}
	if line == "" {
		return ManualIssueSentinel, nil
	}
	return strings.TrimPrefix(line, "#"), nil
}

// PullRequest prints the computed PR and reads its URL or identifier. Empty
// input returns ManualPullRequestSentinel.
func (m *manualFlow) PullRequest(title, body, head, base string) (string, error) {
	fmt.Fprintln(m.out, "No usable platform CLI. Create the pull request manually:")
	fmt.Fprintf(m.out, "  title:  %s\n", title)
	if body != "" {
		fmt.Fprintf(m.out, "  body:   %s\n", body)
	}
	fmt.Fprintf(m.out, "  branch: %s -> %s\n", head, base)
	fmt.Fprint(m.out, "Pull request URL (empty to skip): ")

	line, err := m.readLine()
	if err != nil {
		return "", err
	}
	if line == "" {
		return ManualPullRequestSentinel, nil
	}
	return line, nil
}

// readLine reads one line of operator input. EOF with no input counts as an
// empty line so piped invocations degrade to the sentinels.
func (m *manualFlow) readLine() (string, error) {
	reader := bufio.NewReader(m.in)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read operator input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
