package record

import (
	"strings"
	"time"
)

// TemplateParams are the placeholder values substituted into the session
// record template.
type TemplateParams struct {
	SessionID   string
	FeatureID   string
	Description string
	Slug        string
	BranchName  string
	CreatedAt   time.Time
}

// Materialize renders a fresh session record from the fixed template.
//
// Every field the codec may later write must be seeded here:
// WriteField only replaces existing lines, it never creates them.
func Materialize(p TemplateParams) string {
	created := p.CreatedAt.UTC().Format(time.RFC3339)

	// Backticks or newlines in the description would break the single-line
	// field form the codec matches on.
	description := fieldValue.Replace(p.Description)

	r := strings.NewReplacer(
		"{{SESSION_ID}}", p.SessionID,
		"{{FEATURE_ID}}", p.FeatureID,
		"{{DESCRIPTION}}", description,
		"{{SLUG}}", p.Slug,
		"{{BRANCH_NAME}}", p.BranchName,
		"{{CREATED_AT}}", created,
	)
	return r.Replace(sessionTemplate)
}

// sessionTemplate is the fixed layout of a session record: named
// single-value lines, a fenced condition block, a fenced context block, the
// append-only history table, and the Notes sentinel that terminates the
// machine-managed region.
const sessionTemplate = "# Session: {{SESSION_ID}}\n" +
	"\n" +
	"## Feature\n" +
	"\n" +
	"- **feature_id**: `{{FEATURE_ID}}`\n" +
	"- **description**: `{{DESCRIPTION}}`\n" +
	"- **slug**: `{{SLUG}}`\n" +
	"- **issue_number**: `none`\n" +
	"- **branch_name**: `{{BRANCH_NAME}}`\n" +
	"- **platform**: `none`\n" +
	"\n" +
	"## Progress\n" +
	"\n" +
	"- **current_phase**: `init`\n" +
	"- **current_step**: `created`\n" +
	"- **loop_count**: `0`\n" +
	"- **created_at**: `{{CREATED_AT}}`\n" +
	"- **updated_at**: `{{CREATED_AT}}`\n" +
	"\n" +
	"## Conditions\n" +
	"\n" +
	"```\n" +
	"init_complete: false\n" +
	"spec_complete: false\n" +
	"test_scenarios_written: false\n" +
	"implementation_complete: false\n" +
	"code_review_passed: false\n" +
	"browser_tests_passed: false\n" +
	"auto_tests_passed: false\n" +
	"final_review_passed: false\n" +
	"workflow_complete: false\n" +
	"```\n" +
	"\n" +
	"## Context\n" +
	"\n" +
	"```yaml\n" +
	"{}\n" +
	"```\n" +
	"\n" +
	"## History\n" +
	"\n" +
	"| Timestamp | Phase | Action | Result |\n" +
	"|-----------|-------|--------|--------|\n" +
	"\n" +
	"## Notes\n" +
	"\n" +
	"Free-form notes. Nothing below the Notes heading is touched by devflow.\n"
