package forge

import (
	"strings"

	git "github.com/go-git/go-git/v5"
)

// DetectPlatform resolves the hosting platform for a session.
//
// Priority: explicit override, the platform value recorded on the session,
// substring heuristic on the origin remote URL, none. A recorded value of
// "none" means "never detected" and falls through to the URL heuristic; an
// override of "none" is an explicit operator choice and wins.
func DetectPlatform(override, recorded, repoPath string) Platform {
	if p, err := ParsePlatform(override); err == nil && override != "" {
		return p
	}

	if p, err := ParsePlatform(recorded); err == nil && p != PlatformNone {
		return p
	}

	if url := remoteOriginURL(repoPath); url != "" {
		return platformFromURL(url)
	}

	return PlatformNone
}

// remoteOriginURL reads the origin remote URL from the repository at
// repoPath. It returns "" when the path is not a git repository or the
// remote is not configured.
func remoteOriginURL(repoPath string) string {
	if repoPath == "" {
		repoPath = "."
	}

	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return ""
	}

	remote, err := repo.Remote(git.DefaultRemoteName)
	if err != nil {
		return ""
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return ""
	}
	return urls[0]
}

// platformFromURL classifies a remote URL by substring. GitLab and Gitea
// family hosts are checked before GitHub so that self-hosted instances with
// "github" elsewhere in the path do not misclassify.
func platformFromURL(url string) Platform {
	lower := strings.ToLower(url)

	switch {
	case strings.Contains(lower, "gitlab"):
		return PlatformGitLab
	case strings.Contains(lower, "gitea"),
		strings.Contains(lower, "forgejo"),
		strings.Contains(lower, "codeberg"):
		return PlatformGitea
	case strings.Contains(lower, "github"):
		return PlatformGitHub
	default:
		return PlatformNone
	}
}
