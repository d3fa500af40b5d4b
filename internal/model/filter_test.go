package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTokenFilter(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		include []string
		exclude []string
	}{
		{
			name:    "includes only",
			input:   "pending,in-progress",
			include: []string{"pending", "in-progress"},
		},
		{
			name:    "mixed include and exclude",
			input:   "urgent,!done",
			include: []string{"urgent"},
			exclude: []string{"done"},
		},
		{
			name:    "whitespace and casing normalized",
			input:   " In Progress , !COMPLETED ",
			include: []string{"in-progress"},
			exclude: []string{"completed"},
		},
		{
			name:  "empty tokens dropped",
			input: ",,!,",
		},
		{
			name:  "empty string",
			input: "",
		},
		{
			name:    "underscores collapse to hyphens",
			input:   "in_progress",
			include: []string{"in-progress"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ParseTokenFilter(tt.input)
			assert.Equal(t, tt.include, f.Include)
			assert.Equal(t, tt.exclude, f.Exclude)
		})
	}
}

func TestTokenFilterRoundTrip(t *testing.T) {
	for _, input := range []string{
		"pending",
		"pending,in-progress",
		"urgent,!done",
		"!cancelled,!completed",
		"a,b,!c",
	} {
		f := ParseTokenFilter(input)
		assert.Equal(t, f, ParseTokenFilter(f.String()), "round trip of %q", input)
	}
}

func TestTokenFilterMatches(t *testing.T) {
	f := ParseTokenFilter("pending,in-progress,!completed")

	assert.True(t, f.Matches("pending"))
	assert.True(t, f.Matches("In Progress")) // normalized before comparison
	assert.False(t, f.Matches("completed"))
	assert.False(t, f.Matches("testing")) // not in the include list

	excludeOnly := ParseTokenFilter("!cancelled")
	assert.True(t, excludeOnly.Matches("anything"))
	assert.False(t, excludeOnly.Matches("cancelled"))

	assert.True(t, TokenFilter{}.Matches("whatever"))
	assert.True(t, TokenFilter{}.IsZero())
	assert.False(t, f.IsZero())
}

func TestQueryMatchesTags(t *testing.T) {
	q := Query{Tags: []string{"urgent", "backend"}}

	assert.True(t, q.MatchesTags([]string{"Urgent", "backend", "extra"}))
	assert.False(t, q.MatchesTags([]string{"urgent"}))
	assert.False(t, q.MatchesTags(nil))
	assert.True(t, Query{}.MatchesTags(nil))
}

func TestQueryMatchesText(t *testing.T) {
	q := Query{Text: "login"}

	assert.True(t, q.MatchesText("Add Login endpoint", ""))
	assert.True(t, q.MatchesText("", "handles the LOGIN flow"))
	assert.False(t, q.MatchesText("billing", "invoices"))
	assert.True(t, Query{}.MatchesText("anything"))
}

func TestSortTagCounts(t *testing.T) {
	counts := []TagCount{
		{Tag: "zeta", Count: 2},
		{Tag: "alpha", Count: 2},
		{Tag: "mid", Count: 5},
	}

	byName := append([]TagCount(nil), counts...)
	SortTagCounts(byName, false)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, tagNames(byName))

	byCount := append([]TagCount(nil), counts...)
	SortTagCounts(byCount, true)
	assert.Equal(t, []string{"mid", "alpha", "zeta"}, tagNames(byCount))
}

func tagNames(counts []TagCount) []string {
	out := make([]string, len(counts))
	for i, c := range counts {
		out[i] = c.Tag
	}
	return out
}
