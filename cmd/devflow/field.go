package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(fieldCmd)
	fieldCmd.AddCommand(fieldReadCmd)
	fieldCmd.AddCommand(fieldWriteCmd)
}

var fieldCmd = &cobra.Command{
	Use:   "field",
	Short: "Read and write single fields of the active session record",
}

var fieldReadCmd = &cobra.Command{
	Use:   "read <key>",
	Short: "Print one field value",
	Long: `Print one field value from the active session record.

Keys are the named record fields (current_phase, issue_number, ...), the
condition flags, or dotted paths into the Context block:

  devflow field read current_phase
  devflow field read context.tech_stack.framework`,
	Args: cobra.ExactArgs(1),
	RunE: runFieldRead,
}

var fieldWriteCmd = &cobra.Command{
	Use:   "write <key> <value>",
	Short: "Update one field value in place",
	Long: `Update one field value in place. Only the value bytes of the matching
line change; a missing key is record corruption and aborts. Condition flags
are monotonic: clearing one is rejected.`,
	Args: cobra.ExactArgs(2),
	RunE: runFieldWrite,
}

func runFieldRead(cmd *cobra.Command, args []string) error {
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
	value, err := a.store.ReadField(ctx, id, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runFieldWrite(cmd *cobra.Command, args []string) error {
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
	if err := a.store.WriteField(ctx, id, args[0], args[1]); err != nil {
		return err
	}
	info("%s = %s", args[0], args[1])
	return nil
}
