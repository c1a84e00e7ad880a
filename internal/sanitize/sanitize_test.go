package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple description",
			input: "Add payment retry",
			want:  "add-payment-retry",
		},
		{
			name:  "already valid",
			input: "add-payment-retry",
			want:  "add-payment-retry",
		},
		{
			name:  "uppercase converted",
			input: "FIX LOGIN BUG",
			want:  "fix-login-bug",
		},
		{
			name:  "punctuation replaced and collapsed",
			input: "Fix: user login!! (OAuth)",
			want:  "fix-user-login-oauth",
		},
		{
			name:  "leading and trailing noise trimmed",
			input: "  ...wip...  ",
			want:  "wip",
		},
		{
			name:  "empty input",
			input: "",
			want:  DefaultSlug,
		},
		{
			name:  "only invalid characters",
			input: "!!!???",
			want:  DefaultSlug,
		},
		{
			name:  "unicode replaced",
			input: "café menü",
			want:  "caf-men",
		},
		{
			name:  "digits preserved",
			input: "migrate api v2 to v3",
			want:  "migrate-api-v2-to-v3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.input))
		})
	}
}

func TestSlugLengthCap(t *testing.T) {
	long := strings.Repeat("word ", 20)
	got := Slug(long)

	assert.LessOrEqual(t, len(got), MaxSlugLength)
	assert.False(t, strings.HasSuffix(got, "-"), "truncation must not leave a trailing hyphen")
	assert.False(t, strings.HasPrefix(got, "-"))
}

func TestSlugIsIdempotent(t *testing.T) {
	inputs := []string{"Add payment retry", "A very long description that will certainly be truncated somewhere"}
	for _, in := range inputs {
		once := Slug(in)
		assert.Equal(t, once, Slug(once))
	}
}

func TestBranchName(t *testing.T) {
	assert.Equal(t, "feature/001-add-payment-retry", BranchName("001", "add-payment-retry"))
	assert.Equal(t, "feature/042-fix-login", BranchName("042", "fix-login"))
}
