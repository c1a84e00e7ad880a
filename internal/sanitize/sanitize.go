// Package sanitize provides shared identifier sanitization for session
// and branch names.
//
// Slugs derived from free-text feature descriptions end up in directory
// names, session ids, and git branch names, so they must match:
// ^[a-z0-9-]{1,30}$
package sanitize

import (
	"strings"
)

const (
	// MaxSlugLength is the maximum length of a slug component.
	// Session ids embed the slug, and the full id must stay readable in
	// directory listings and branch names.
	MaxSlugLength = 30

	// DefaultSlug is used when sanitization produces an empty result.
	DefaultSlug = "session"
)

// Slug sanitizes a free-text description for use in identifiers.
//
// Rules applied:
//   - Converts to lowercase
//   - Replaces non-alphanumeric characters with hyphens
//   - Collapses repeated hyphens
//   - Trims leading/trailing hyphens
//   - Truncates to MaxSlugLength (never ending on a hyphen)
//   - Returns DefaultSlug if the result would be empty
//
// Examples:
//
//	"Add payment retry"  -> "add-payment-retry"
//	"Fix: löschen (#42)" -> "fix-l-schen-42"
//	"" or "!!!"          -> "session"
func Slug(s string) string {
	if s == "" {
		return DefaultSlug
	}

	s = strings.ToLower(s)

	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			result.WriteRune(r)
		} else {
			result.WriteRune('-')
		}
	}

	// Collapse repeated hyphens and trim
	sanitized := result.String()
	for strings.Contains(sanitized, "--") {
		sanitized = strings.ReplaceAll(sanitized, "--", "-")
	}
	sanitized = strings.Trim(sanitized, "-")

	if sanitized == "" {
		return DefaultSlug
	}

	if len(sanitized) > MaxSlugLength {
		sanitized = strings.TrimRight(sanitized[:MaxSlugLength], "-")
	}

	return sanitized
}

// BranchName builds a git branch name from a feature id and slug.
//
// Format: feature/{feature_id}-{slug}
// Example: BranchName("001", "add-payment-retry") -> "feature/001-add-payment-retry"
func BranchName(featureID, slug string) string {
	return "feature/" + featureID + "-" + slug
}
