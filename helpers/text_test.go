package helpers

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestToSnakeCase(t *testing.T) {
	cases := map[string]string{
		"Column Name":      "column_name",
		"columnName":       "column_name",
		"Issue-Type":       "issue_type",
		"  Story Points  ": "story_points",
		"already_snake":    "already_snake",
		"a  b":             "a_b",
	}
	for in, want := range cases {
		assert.Equal(t, want, ToSnakeCase(in), in)
	}
}

func TestToDisplayName(t *testing.T) {
	assert.Equal(t, "Story Points", ToDisplayName("story_points"))
	assert.Equal(t, "Assignee", ToDisplayName("assignee"))
	assert.Equal(t, "Issue Type", ToDisplayName("Issue Type"))
	assert.Equal(t, "Élan Score", ToDisplayName("élan_score"))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "1,234,567", FormatNumber(1234567))
	assert.Equal(t, "1,234.50", FormatNumber(1234.5))
	assert.Equal(t, "-42", FormatNumber(-42))
	assert.Equal(t, "0", FormatNumber(0))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.50 KB", FormatBytes(1536))
	assert.Equal(t, "1.00 MB", FormatBytes(1<<20))
	assert.Equal(t, "2.00 GB", FormatBytes(2<<30))
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence(`  {"a":1}  `))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab...", Truncate("abcdef", 2))

	got := Truncate("héllo wörld", 2)
	assert.Equal(t, "hé...", got)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "日本", Truncate("日本", 2))
}
