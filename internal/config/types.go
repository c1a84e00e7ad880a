// Package config provides configuration loading for devflow.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/fyrsmithlabs/devflow/internal/logging"
)

// Config is the root devflow configuration.
type Config struct {
	Workflow WorkflowConfig `koanf:"workflow"`
	GitHub   GitHubConfig   `koanf:"github"`
	Logging  logging.Config `koanf:"logging"`
}

// WorkflowConfig controls the workflow root and git hosting behavior.
type WorkflowConfig struct {
	// Root is the workflow state directory. Sessions, archive, identity
	// bindings and readiness records all live under it.
	Root string `koanf:"root"`

	// Platform is an explicit hosting platform override. When set it wins
	// over the session record value and the remote URL heuristic.
	// One of: github, gitlab, gitea, none. Empty means autodetect.
	Platform string `koanf:"platform"`

	// TargetBranch is the default base branch for pull requests.
	TargetBranch string `koanf:"target_branch"`
}

// GitHubConfig configures the structured GitHub adapter. When Token is set,
// issues and pull requests are created through the GitHub API instead of the
// gh CLI.
type GitHubConfig struct {
	Token Secret `koanf:"token"`
	Owner string `koanf:"owner"`
	Repo  string `koanf:"repo"`
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.Workflow.Platform {
	case "", "github", "gitlab", "gitea", "none":
	default:
		return fmt.Errorf("invalid platform override %q (expected github, gitlab, gitea or none)", c.Workflow.Platform)
	}
	if c.Workflow.Root == "" {
		return fmt.Errorf("workflow root cannot be empty")
	}
	if c.Workflow.TargetBranch == "" {
		return fmt.Errorf("target branch cannot be empty")
	}
	return c.Logging.Validate()
}

// Secret wraps strings that should be redacted in logs and serialization.
// Use Value() to access the actual secret value.
type Secret string

// String implements fmt.Stringer. Always returns redacted value.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v formatting.
func (s Secret) GoString() string {
	return "Secret([REDACTED])"
}

// Value returns the actual secret value. Use sparingly.
func (s Secret) Value() string {
	return string(s)
}

// IsSet returns true if the secret has a non-empty value.
func (s Secret) IsSet() bool {
	return s != ""
}

// MarshalJSON implements json.Marshaler. Always returns redacted value.
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("[REDACTED]")
}

// MarshalText implements encoding.TextMarshaler. Always returns redacted value.
func (s Secret) MarshalText() ([]byte, error) {
	if s == "" {
		return []byte(""), nil
	}
	return []byte("[REDACTED]"), nil
}

// MarshalYAML implements yaml.Marshaler. Always returns redacted value.
func (s Secret) MarshalYAML() (interface{}, error) {
	if s == "" {
		return "", nil
	}
	return "[REDACTED]", nil
}

// UnmarshalYAML implements yaml.Unmarshaler. Accepts raw secret values.
func (s *Secret) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	*s = Secret(raw)
	return nil
}
