package forge

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/fyrsmithlabs/devflow/internal/config"
)

// githubAPI creates issues and pull requests through the structured GitHub
// API instead of scraping CLI output. It is used whenever a token is
// configured.
type githubAPI struct {
	client *github.Client
	owner  string
	repo   string
	retry  *RetryConfig
	logger *zap.Logger
}

// newGitHubAPI builds an authenticated GitHub API adapter.
func newGitHubAPI(ctx context.Context, cfg config.GitHubConfig, logger *zap.Logger) (*githubAPI, error) {
	if !cfg.Token.IsSet() {
		return nil, fmt.Errorf("GitHub token not set")
	}
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("GitHub owner/repo not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token.Value()})
	tc := oauth2.NewClient(ctx, ts)

	return &githubAPI{
		client: github.NewClient(tc),
		owner:  cfg.Owner,
		repo:   cfg.Repo,
		retry:  DefaultRetryConfig(),
		logger: logger,
	}, nil
}

// CreateIssue creates an issue and returns its number and URL.
func (a *githubAPI) CreateIssue(ctx context.Context, title, body string) (*IssueRef, error) {
	var issue *github.Issue

	_, err := retryGitHubOperation(ctx, a.retry, a.logger, func() (*github.Response, error) {
		var resp *github.Response
		var err error
		issue, resp, err = a.client.Issues.Create(ctx, a.owner, a.repo, &github.IssueRequest{
			Title: github.String(title),
			Body:  github.String(body),
		})
		return resp, err
	})
	if err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}

	return &IssueRef{
		Number: strconv.Itoa(issue.GetNumber()),
		URL:    issue.GetHTMLURL(),
	}, nil
}

// CreatePullRequest creates a pull request from head into base and returns
// its URL.
func (a *githubAPI) CreatePullRequest(ctx context.Context, title, body, head, base string) (*PullRequestRef, error) {
	var pr *github.PullRequest

	_, err := retryGitHubOperation(ctx, a.retry, a.logger, func() (*github.Response, error) {
		var resp *github.Response
		var err error
		pr, resp, err = a.client.PullRequests.Create(ctx, a.owner, a.repo, &github.NewPullRequest{
			Title: github.String(title),
			Body:  github.String(body),
			Head:  github.String(head),
			Base:  github.String(base),
		})
		return resp, err
	})
	if err != nil {
		return nil, fmt.Errorf("create pull request: %w", err)
	}

	return &PullRequestRef{URL: pr.GetHTMLURL()}, nil
}
