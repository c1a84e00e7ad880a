package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/devflow/internal/phase"
)

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectCheckCmd)
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Project-level readiness checks",
}

var projectCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report whether the project is ready for sessions",
	Long: `Report whether the project is ready for sessions: a constitution record
must exist, and an architecture record must exist or be cross-referenced from
project.md. A not-ready project is routed to init (virgin directory) or
analyze (existing codebase).`,
	Args: cobra.NoArgs,
	RunE: runProjectCheck,
}

func runProjectCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	readiness, err := phase.CheckReady(a.cfg.Workflow.Root, ".")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ready: %t\n", readiness.Ready)
	fmt.Fprintf(out, "constitution: %t\n", readiness.HasConstitution)
	fmt.Fprintf(out, "architecture: %t\n", readiness.HasArchitecture)
	fmt.Fprintf(out, "project_type: %s\n", readiness.ProjectType)
	if !readiness.Ready {
		info("not ready: run %s first", readiness.Route)
	}
	return nil
}
