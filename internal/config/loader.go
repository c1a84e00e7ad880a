package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/fyrsmithlabs/devflow/internal/logging"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// envPrefix namespaces devflow environment variables.
	envPrefix = "DEVFLOW_"
)

// Load loads configuration from a YAML file, then overrides with environment
// variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DEVFLOW_WORKFLOW_ROOT, DEVFLOW_GITHUB_TOKEN, ...)
//  2. YAML config file
//  3. Hardcoded defaults
//
// When configPath is empty the loader tries, in order:
//
//	./.devflow/config.yaml
//	~/.config/devflow/config.yaml
//
// A missing file is not an error: the engine must work in a freshly
// initialized checkout with nothing but defaults.
//
// Environment variables map to YAML keys by splitting on the first
// underscore after the prefix:
//
//	DEVFLOW_WORKFLOW_TARGET_BRANCH -> workflow.target_branch
//	DEVFLOW_GITHUB_TOKEN           -> github.token
//	DEVFLOW_LOGGING_LEVEL          -> logging.level
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		configPath = defaultConfigPath()
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			f, err := os.Open(configPath)
			if err != nil {
				return nil, fmt.Errorf("failed to open config file: %w", err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return nil, fmt.Errorf("failed to stat config file: %w", err)
			}
			if info.Size() > maxConfigFileSize {
				return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
			}

			content, err := io.ReadAll(f)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}

			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		// DEVFLOW_WORKFLOW_TARGET_BRANCH -> workflow.target_branch
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// defaultConfigPath returns the first existing config file location, or ""
// when none exists.
func defaultConfigPath() string {
	local := filepath.Join(".devflow", "config.yaml")
	if _, err := os.Stat(local); err == nil {
		return local
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	user := filepath.Join(home, ".config", "devflow", "config.yaml")
	if _, err := os.Stat(user); err == nil {
		return user
	}
	return ""
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Workflow.Root == "" {
		cfg.Workflow.Root = ".devflow"
	}
	if cfg.Workflow.TargetBranch == "" {
		cfg.Workflow.TargetBranch = "main"
	}

	defaults := logging.NewDefaultConfig()
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaults.Format
	}
}
