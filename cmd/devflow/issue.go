package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/devflow/internal/forge"
)

var (
	flagIssueBody string
	flagPRBody    string
	flagPRBase    string
)

func init() {
	rootCmd.AddCommand(issueCmd)
	issueCmd.AddCommand(issueCreateCmd)
	issueCreateCmd.Flags().StringVar(&flagIssueBody, "body", "", "issue body")

	rootCmd.AddCommand(prCmd)
	prCmd.AddCommand(prCreateCmd)
	prCreateCmd.Flags().StringVar(&flagPRBody, "body", "", "pull request body")
	prCreateCmd.Flags().StringVar(&flagPRBase, "base", "", "base branch (default: configured target branch)")
}

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Create issues on the hosting platform",
}

var issueCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create an issue and record its number",
	Long: `Create an issue for the active session's feature. The created number is
written into the record's issue_number field. Adapters are tried in order:
GitHub API (token configured), platform CLI (gh/glab/tea), manual flow.`,
	Args: cobra.ExactArgs(1),
	RunE: runIssueCreate,
}

var prCmd = &cobra.Command{
	Use:   "pr",
	Short: "Create pull requests on the hosting platform",
}

var prCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a pull request from the session's feature branch",
	Long: `Create a pull request from the session's feature branch into the base
branch. The created URL is appended to the record's history table.`,
	Args: cobra.ExactArgs(1),
	RunE: runPRCreate,
}

func runIssueCreate(cmd *cobra.Command, args []string) error {
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

	ref, err := a.forge.CreateIssue(ctx, id, args[0], flagIssueBody)
	if err != nil {
		return err
	}
	if ref.Number == forge.ManualIssueSentinel {
		info("no issue recorded")
	}
	fmt.Fprintln(cmd.OutOrStdout(), ref.Number)
	return nil
}

func runPRCreate(cmd *cobra.Command, args []string) error {
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

	ref, err := a.forge.CreatePullRequest(ctx, id, args[0], flagPRBody, flagPRBase)
	if err != nil {
		return err
	}
	if ref.URL == forge.ManualPullRequestSentinel {
		info("no pull request recorded")
	}
	fmt.Fprintln(cmd.OutOrStdout(), ref.URL)
	return nil
}
