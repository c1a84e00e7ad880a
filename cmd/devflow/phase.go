package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/devflow/internal/phase"
)

var flagCategory string

func init() {
	rootCmd.AddCommand(phaseCmd)
	phaseCmd.AddCommand(phaseCompleteCmd)
	phaseCmd.AddCommand(phaseFailCmd)

	phaseFailCmd.Flags().StringVar(&flagCategory, "category", "",
		"review-final failure category (code-quality, test-content, end-to-end, coverage)")
}

var phaseCmd = &cobra.Command{
	Use:   "phase",
	Short: "Record phase outcomes and move the workflow",
}

var phaseCompleteCmd = &cobra.Command{
	Use:   "complete [phase]",
	Short: "Record a phase success and advance",
	Long: `Record a phase success: set its owning condition flag, append a history
row, and advance to the next phase. Without an argument the session's current
phase is completed. Naming a phase the session is not in is an error.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPhaseComplete,
}

var phaseFailCmd = &cobra.Command{
	Use:   "fail <phase>",
	Short: "Record a phase failure and roll back",
	Long: `Record a phase failure and follow its rollback edge. Rolling back into
dev increments loop_count. review-final failures need --category; an
unclassifiable failure lists the candidate targets instead of guessing.`,
	Args: cobra.ExactArgs(1),
	RunE: runPhaseFail,
}

func runPhaseComplete(cmd *cobra.Command, args []string) error {
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

	var p phase.Phase
	if len(args) == 1 {
		p, err = phase.Parse(args[0])
		if err != nil {
			return err
		}
	} else {
		sess, err := a.store.Load(ctx, id)
		if err != nil {
			return err
		}
		p, err = phase.Parse(sess.Progress.CurrentPhase)
		if err != nil {
			return err
		}
	}

	next, err := a.engine.Complete(ctx, id, p)
	if err != nil {
		return err
	}

	if next == p {
		info("workflow complete; archive with: devflow session archive")
	} else {
		info("completed %s", p)
	}
	fmt.Fprintln(cmd.OutOrStdout(), next)
	return nil
}

func runPhaseFail(cmd *cobra.Command, args []string) error {
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
	p, err := phase.Parse(args[0])
	if err != nil {
		return err
	}

	target, err := a.engine.Fail(ctx, id, p, phase.FailureCategory(flagCategory))
	if err != nil {
		var ambiguous *phase.AmbiguousRollbackError
		if errors.As(err, &ambiguous) {
			info("cannot pick a rollback target for this failure")
			for _, candidate := range ambiguous.Candidates() {
				info("  --category %s", candidate)
			}
		}
		return err
	}

	info("rolled back %s -> %s", p, target)
	fmt.Fprintln(cmd.OutOrStdout(), target)
	return nil
}
