package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/devflow/internal/monitor"
	"github.com/fyrsmithlabs/devflow/internal/phase"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionSwitchCmd)
	sessionCmd.AddCommand(sessionArchiveCmd)
	sessionCmd.AddCommand(sessionCurrentCmd)
	sessionCmd.AddCommand(sessionWatchCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage workflow sessions",
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create <description>",
	Short: "Create a session for a new feature",
	Long: `Create a session for a new feature and bind it to this editor.

The description seeds the feature slug and branch name. The project must be
ready first: run devflow project check.

Examples:
  devflow session create "Add payment retry"`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionCreate,
}

var sessionSwitchCmd = &cobra.Command{
	Use:   "switch <session-id>",
	Short: "Bind this editor to an existing session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionSwitch,
}

var sessionArchiveCmd = &cobra.Command{
	Use:   "archive [session-id]",
	Short: "Move a session to the archive",
	Long: `Move a session to the archive. Without an argument (or with "current")
the editor's current session is archived and the binding released.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSessionArchive,
}

var sessionCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Print the session this editor is bound to",
	Args:  cobra.NoArgs,
	RunE:  runSessionCurrent,
}

var sessionWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the active session record for concurrent writes",
	Long: `Watch the active session record and report every write: engine writes
(updated_at advanced through the codec) and external edits (bytes changed
behind the engine's back). Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runSessionWatch,
}

func runSessionCreate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	if err := phase.RequireReady(a.cfg.Workflow.Root, "."); err != nil {
		return err
	}

	sess, err := a.store.Create(ctx, a.identity, args[0])
	if err != nil {
		return err
	}

	info("created session on branch %s (feature %s)", sess.Feature.BranchName, sess.Feature.FeatureID)
	fmt.Fprintln(cmd.OutOrStdout(), sess.ID)
	return nil
}

func runSessionSwitch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.store.Switch(cmd.Context(), a.identity, args[0]); err != nil {
		return err
	}
	info("switched to session %s", args[0])
	return nil
}

func runSessionArchive(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	id := ""
	if len(args) == 1 && args[0] != "current" {
		id = args[0]
	}
	if id == "" {
		id, err = a.sessionID(ctx)
		if err != nil {
			return err
		}
	}

	if err := a.store.Archive(ctx, id); err != nil {
		return err
	}
	info("archived session %s", id)
	return nil
}

func runSessionCurrent(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	id, err := a.sessionID(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func runSessionWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	id, err := a.sessionID(ctx)
	if err != nil {
		return err
	}
	path, err := a.store.RecordPath(id)
	if err != nil {
		return err
	}

	watcher, err := monitor.NewRecordWatcher(path, a.logger)
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	info("watching %s (ctrl-c to stop)", path)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-interrupt:
			return nil
		case <-ctx.Done():
			return nil
		case event := <-watcher.Events():
			switch event.Type {
			case monitor.EventTypeRemoved:
				info("%s record removed", event.Timestamp.Format("15:04:05"))
				return nil
			default:
				info("%s %s (updated_at %s)",
					event.Timestamp.Format("15:04:05"), event.Type, event.UpdatedAt)
			}
		}
	}
}
