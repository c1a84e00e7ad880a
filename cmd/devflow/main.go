// Package main implements the devflow CLI: a text-file-backed orchestration
// engine driving a multi-phase development workflow one invocation at a time.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devflow/internal/config"
	"github.com/fyrsmithlabs/devflow/internal/forge"
	"github.com/fyrsmithlabs/devflow/internal/logging"
	"github.com/fyrsmithlabs/devflow/internal/phase"
	"github.com/fyrsmithlabs/devflow/internal/session"
)

var (
	// Global flags.
	flagConfig   string
	flagRoot     string
	flagIDEID    string
	flagSession  string
	flagPlatform string

	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[devflow] error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "devflow",
	Short: "Text-file-backed development workflow engine",
	Long: `devflow drives a multi-phase development workflow executed turn-by-turn
by an external agent. All state lives in plain markdown session records under
the workflow root; every command is one short-lived, synchronous invocation.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path (default: .devflow/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "workflow root directory (default: .devflow)")
	rootCmd.PersistentFlags().StringVar(&flagIDEID, "ide-id", "", "explicit editor identity (default: resolved per checkout)")
	rootCmd.PersistentFlags().StringVar(&flagSession, "session", "", "explicit session id, bypasses the identity resolver")
	rootCmd.PersistentFlags().StringVar(&flagPlatform, "platform", "", "hosting platform override (github, gitlab, gitea, none)")
}

// app bundles the wired services one invocation needs.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *session.Store
	engine   *phase.Engine
	forge    *forge.Service
	identity string
}

// newApp loads configuration, applies flag overrides and wires the services.
func newApp() (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagRoot != "" {
		cfg.Workflow.Root = flagRoot
	}
	if flagPlatform != "" {
		cfg.Workflow.Platform = flagPlatform
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(&cfg.Logging)
	if err != nil {
		return nil, err
	}

	root := cfg.Workflow.Root
	store, err := session.NewStore(root, session.NewFileResolver(root), logger)
	if err != nil {
		return nil, err
	}

	identity := flagIDEID
	if identity == "" {
		identity, err = session.EnsureIdentity(root)
		if err != nil {
			return nil, err
		}
	}

	forgeSvc, err := forge.NewService(forge.Config{
		Override:     cfg.Workflow.Platform,
		RepoPath:     ".",
		TargetBranch: cfg.Workflow.TargetBranch,
		GitHub:       cfg.GitHub,
	}, store, logger)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		engine:   phase.NewEngine(store, logger),
		forge:    forgeSvc,
		identity: identity,
	}, nil
}

func (a *app) close() {
	_ = logging.Sync(a.logger)
}

// sessionID resolves the session a command operates on: the --session flag
// when given, otherwise the identity resolver's current binding.
func (a *app) sessionID(ctx context.Context) (string, error) {
	if flagSession != "" {
		return flagSession, nil
	}
	sess, err := a.store.Current(ctx, a.identity)
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

// info prints a labeled diagnostic on stderr, keeping stdout reserved for
// identifiers and machine-readable values.
func info(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[devflow] "+format+"\n", args...)
}
