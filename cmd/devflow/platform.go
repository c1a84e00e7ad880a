package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/devflow/internal/session"
)

func init() {
	rootCmd.AddCommand(platformCmd)
	platformCmd.AddCommand(platformDetectCmd)
}

var platformCmd = &cobra.Command{
	Use:   "platform",
	Short: "Git hosting platform detection",
}

var platformDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Print the resolved hosting platform",
	Long: `Print the resolved hosting platform. Resolution order: the --platform
override (or configured override), the platform recorded on the current
session, the origin remote URL, none.`,
	Args: cobra.NoArgs,
	RunE: runPlatformDetect,
}

func runPlatformDetect(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	// Detection works without a session; the record value is just skipped.
	id, err := a.sessionID(ctx)
	if err != nil && !errors.Is(err, session.ErrNoCurrentSession) {
		return err
	}

	platform, err := a.forge.Detect(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), platform)
	return nil
}
