package model

import (
	"sort"
	"strings"
)

// TokenFilter is an include/exclude filter parsed from the comma-joined
// syntax "a,b,!c": include {a,b}, exclude {c}. Empty lists mean "don't
// constrain on that side". Used for both status and priority filtering.
type TokenFilter struct {
	Include []string
	Exclude []string
}

// ParseTokenFilter parses the comma-joined filter syntax. A leading '!'
// on a token means exclude. Tokens are normalized to kebab-case lower.
func ParseTokenFilter(s string) TokenFilter {
	var f TokenFilter
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if strings.HasPrefix(tok, "!") {
			v := string(NormalizeStatus(tok[1:]))
			if v != "" {
				f.Exclude = append(f.Exclude, v)
			}
			continue
		}
		f.Include = append(f.Include, string(NormalizeStatus(tok)))
	}
	return f
}

// String renders the filter back to the comma-joined syntax.
// ParseTokenFilter(f.String()) is equal to f for any filter this
// package produces.
func (f TokenFilter) String() string {
	parts := make([]string, 0, len(f.Include)+len(f.Exclude))
	parts = append(parts, f.Include...)
	for _, e := range f.Exclude {
		parts = append(parts, "!"+e)
	}
	return strings.Join(parts, ",")
}

// IsZero reports whether the filter constrains nothing.
func (f TokenFilter) IsZero() bool {
	return len(f.Include) == 0 && len(f.Exclude) == 0
}

// Matches reports whether value passes the filter. The include list, when
// non-empty, must contain value; the exclude list must not.
func (f TokenFilter) Matches(value string) bool {
	v := string(NormalizeStatus(value))
	for _, e := range f.Exclude {
		if v == e {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, i := range f.Include {
		if v == i {
			return true
		}
	}
	return false
}

// Query is the common shape accepted by the filtered finders.
type Query struct {
	Status    TokenFilter
	Priority  TokenFilter
	Tags      []string // AND across tags, case-insensitive
	Text      string   // case-insensitive substring over name/title/summary/description
	ProjectID string
	FeatureID string
	Limit     int
}

// MatchesTags reports whether all required tags are present on the entity.
func (q Query) MatchesTags(entityTags []string) bool {
	for _, want := range q.Tags {
		if !HasTag(entityTags, want) {
			return false
		}
	}
	return true
}

// MatchesText reports whether the text query matches any of the fields.
func (q Query) MatchesText(fields ...string) bool {
	if q.Text == "" {
		return true
	}
	needle := strings.ToLower(q.Text)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// TagCount is one row of the list-all-tags report.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// SortTagCounts orders counts by count descending (ties alphabetical) when
// byCount is true, else alphabetically.
func SortTagCounts(counts []TagCount, byCount bool) {
	sort.Slice(counts, func(i, j int) bool {
		if byCount && counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return strings.ToLower(counts[i].Tag) < strings.ToLower(counts[j].Tag)
	})
}
