package forge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devflow/internal/config"
	"github.com/fyrsmithlabs/devflow/internal/record"
	"github.com/fyrsmithlabs/devflow/internal/session"
)

const instrumentationName = "github.com/fyrsmithlabs/devflow/internal/forge"

// RecordStore is the slice of the session store the forge needs for
// write-back: one field update for issue numbers, one history row for PR
// URLs.
type RecordStore interface {
	Load(ctx context.Context, id string) (*session.Session, error)
	WriteField(ctx context.Context, id, key, value string) error
	AppendHistory(ctx context.Context, id, phase, action, result string) error
}

// Config configures the forge service.
type Config struct {
	// Override forces a platform, bypassing detection. Empty means detect.
	Override string

	// RepoPath is the project checkout whose origin remote is probed.
	RepoPath string

	// TargetBranch is the PR base branch. Default: main.
	TargetBranch string

	// GitHub enables the structured API adapter when its token is set.
	GitHub config.GitHubConfig
}

// Service creates issues and pull requests on the detected platform and
// writes the results back into the session record. Adapters are tried in
// order: GitHub API (token configured), platform CLI, manual flow.
type Service struct {
	cfg      Config
	records  RecordStore
	runner   Runner
	lookPath LookPath
	manual   *manualFlow
	logger   *zap.Logger

	tracer        trace.Tracer
	issuesCounter metric.Int64Counter
	prsCounter    metric.Int64Counter
}

// Option customizes a Service, mainly for tests.
type Option func(*Service)

// WithRunner replaces the external command runner.
func WithRunner(r Runner) Option {
	return func(s *Service) { s.runner = r }
}

// WithLookPath replaces PATH lookup.
func WithLookPath(lp LookPath) Option {
	return func(s *Service) { s.lookPath = lp }
}

// WithManualIO replaces the manual flow's terminal streams.
func WithManualIO(in io.Reader, out io.Writer) Option {
	return func(s *Service) { s.manual = &manualFlow{in: in, out: out} }
}

// NewService creates a forge service.
func NewService(cfg Config, records RecordStore, logger *zap.Logger, opts ...Option) (*Service, error) {
	if records == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TargetBranch == "" {
		cfg.TargetBranch = "main"
	}

	s := &Service{
		cfg:      cfg,
		records:  records,
		runner:   execRunner,
		lookPath: exec.LookPath,
		manual:   &manualFlow{in: os.Stdin, out: os.Stderr},
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}

	meter := otel.Meter(instrumentationName)
	var err error
	s.issuesCounter, err = meter.Int64Counter("devflow.forge.issues.created",
		metric.WithDescription("Issues created, by adapter"))
	if err != nil {
		s.logger.Warn("failed to create issues counter", zap.Error(err))
	}
	s.prsCounter, err = meter.Int64Counter("devflow.forge.pull_requests.created",
		metric.WithDescription("Pull requests created, by adapter"))
	if err != nil {
		s.logger.Warn("failed to create pull requests counter", zap.Error(err))
	}

	return s, nil
}

// Detect resolves the platform for a session. An empty sessionID skips the
// record lookup and resolves from the override and remote URL alone.
func (s *Service) Detect(ctx context.Context, sessionID string) (Platform, error) {
	recorded := ""
	if sessionID != "" {
		sess, err := s.records.Load(ctx, sessionID)
		if err != nil {
			return "", err
		}
		recorded = sess.Feature.Platform
	}
	return DetectPlatform(s.cfg.Override, recorded, s.cfg.RepoPath), nil
}

// CreateIssue creates an issue for the session's feature and records its
// number in the session's issue_number field. The manual-flow sentinel "0"
// is returned but never written back.
func (s *Service) CreateIssue(ctx context.Context, sessionID, title, body string) (*IssueRef, error) {
	ctx, span := s.tracer.Start(ctx, "forge.create_issue")
	defer span.End()

	sess, err := s.records.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	platform := DetectPlatform(s.cfg.Override, sess.Feature.Platform, s.cfg.RepoPath)
	span.SetAttributes(attribute.String("platform", string(platform)))

	ref, adapter, err := s.createIssueOn(ctx, platform, title, body)
	if err != nil {
		return nil, err
	}

	if s.issuesCounter != nil {
		s.issuesCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("platform", string(platform)),
			attribute.String("adapter", adapter),
		))
	}

	if ref.Number != ManualIssueSentinel {
		if err := s.records.WriteField(ctx, sessionID, record.KeyIssueNumber, ref.Number); err != nil {
			return nil, fmt.Errorf("write back issue number: %w", err)
		}
	}

	s.logger.Info("issue created",
		zap.String("session_id", sessionID),
		zap.String("platform", string(platform)),
		zap.String("adapter", adapter),
		zap.String("issue_number", ref.Number),
	)
	return ref, nil
}

// CreatePullRequest creates a pull request from the session's feature branch
// and appends a history row carrying its URL. base defaults to the
// configured target branch. The manual-flow sentinel "manual" is returned
// but never written back.
func (s *Service) CreatePullRequest(ctx context.Context, sessionID, title, body, base string) (*PullRequestRef, error) {
	ctx, span := s.tracer.Start(ctx, "forge.create_pull_request")
	defer span.End()

	sess, err := s.records.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	head := sess.Feature.BranchName
	if base == "" {
		base = s.cfg.TargetBranch
	}

	platform := DetectPlatform(s.cfg.Override, sess.Feature.Platform, s.cfg.RepoPath)
	span.SetAttributes(attribute.String("platform", string(platform)))

	ref, adapter, err := s.createPullRequestOn(ctx, platform, title, body, head, base)
	if err != nil {
		return nil, err
	}

	if s.prsCounter != nil {
		s.prsCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("platform", string(platform)),
			attribute.String("adapter", adapter),
		))
	}

	if ref.URL != ManualPullRequestSentinel {
		err := s.records.AppendHistory(ctx, sessionID, sess.Progress.CurrentPhase, "pr-created", ref.URL)
		if err != nil {
			return nil, fmt.Errorf("write back pull request URL: %w", err)
		}
	}

	s.logger.Info("pull request created",
		zap.String("session_id", sessionID),
		zap.String("platform", string(platform)),
		zap.String("adapter", adapter),
		zap.String("url", ref.URL),
	)
	return ref, nil
}

// createIssueOn dispatches to the first usable adapter. The second return
// labels which adapter produced the result.
func (s *Service) createIssueOn(ctx context.Context, platform Platform, title, body string) (*IssueRef, string, error) {
	if platform == PlatformGitHub && s.cfg.GitHub.Token.IsSet() {
		api, err := newGitHubAPI(ctx, s.cfg.GitHub, s.logger)
		if err != nil {
			return nil, "", err
		}
		ref, err := api.CreateIssue(ctx, title, body)
		return ref, "api", err
	}

	binary, err := s.cliFor(platform)
	if err == nil {
		args := issueArgs(platform, title, body)
		output, err := s.runner(ctx, binary, args...)
		if err != nil {
			return nil, "", err
		}
		number, ok := scrapeIssueNumber(output)
		if !ok {
			return nil, "", &ToolError{
				Tool: binary, Args: args, Output: output,
				Err: errors.New("no issue reference in output"),
			}
		}
		return &IssueRef{Number: number, URL: firstURL(output)}, "cli", nil
	}
	if !errors.Is(err, ErrToolUnavailable) {
		return nil, "", err
	}

	s.logger.Warn("degrading to manual issue flow", zap.String("platform", string(platform)))
	number, err := s.manual.Issue(title, body)
	if err != nil {
		return nil, "", err
	}
	return &IssueRef{Number: number}, "manual", nil
}

// createPullRequestOn dispatches like createIssueOn.
func (s *Service) createPullRequestOn(ctx context.Context, platform Platform, title, body, head, base string) (*PullRequestRef, string, error) {
	if platform == PlatformGitHub && s.cfg.GitHub.Token.IsSet() {
		api, err := newGitHubAPI(ctx, s.cfg.GitHub, s.logger)
		if err != nil {
			return nil, "", err
		}
		ref, err := api.CreatePullRequest(ctx, title, body, head, base)
		return ref, "api", err
	}

	binary, err := s.cliFor(platform)
	if err == nil {
		args := pullRequestArgs(platform, title, body, head, base)
		output, err := s.runner(ctx, binary, args...)
		if err != nil {
			return nil, "", err
		}
		url, ok := scrapeURL(output)
		if !ok {
			return nil, "", &ToolError{
				Tool: binary, Args: args, Output: output,
				Err: errors.New("no URL in output"),
			}
		}
		return &PullRequestRef{URL: url}, "cli", nil
	}
	if !errors.Is(err, ErrToolUnavailable) {
		return nil, "", err
	}

	s.logger.Warn("degrading to manual pull request flow", zap.String("platform", string(platform)))
	url, err := s.manual.PullRequest(title, body, head, base)
	if err != nil {
		return nil, "", err
	}
	return &PullRequestRef{URL: url}, "manual", nil
}

// cliFor resolves the platform's CLI binary on PATH, or ErrToolUnavailable.
func (s *Service) cliFor(platform Platform) (string, error) {
	binary, ok := CLIBinary(platform)
	if !ok {
		return "", fmt.Errorf("%w: no CLI for platform %s", ErrToolUnavailable, platform)
	}
	if _, err := s.lookPath(binary); err != nil {
		return "", fmt.Errorf("%w: %s not on PATH", ErrToolUnavailable, binary)
	}
	return binary, nil
}

func firstURL(output string) string {
	url, _ := scrapeURL(output)
	return url
}
