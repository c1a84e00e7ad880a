// Package forge talks to the git hosting platform a project lives on.
//
// It detects the platform (explicit override, the value recorded on the
// session, or a substring heuristic on the origin remote URL), creates
// issues and pull requests, and writes the results back into the session
// record.
//
// Three adapters are tried in order:
//
//   - a structured GitHub API client, when a token is configured
//   - the platform's CLI (gh, glab, tea), scraping identifiers out of its
//     textual output
//   - a manual flow that prints the computed title/body/branch and blocks
//     for an operator-supplied identifier
//
// The manual flow encodes empty operator input as the sentinel "0" for
// issues and "manual" for pull requests; sentinels are never written back
// to the record.
package forge
