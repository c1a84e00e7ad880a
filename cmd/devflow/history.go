package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyAppendCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Append to the session's history table",
}

var historyAppendCmd = &cobra.Command{
	Use:   "append <phase> <action> <result>",
	Short: "Append one history row to the active session record",
	Long: `Append one history row to the active session record. Rows land
immediately before the Notes sentinel; existing rows are never rewritten.

  devflow history append dev completed "all unit tests green"`,
	Args: cobra.ExactArgs(3),
	RunE: runHistoryAppend,
}

func runHistoryAppend(cmd *cobra.Command, args []string) error {
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
	if err := a.store.AppendHistory(ctx, id, args[0], args[1], args[2]); err != nil {
		return err
	}
	info("history row appended")
	return nil
}
