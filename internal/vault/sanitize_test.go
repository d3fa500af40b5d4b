package vault

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeComponent(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain name", "My Project", "My Project"},
		{"forbidden characters stripped", `a/b\c:d*e?f"g<h>i|j`, "abcdefghij"},
		{"control characters stripped", "a\x00b\x1fc", "abc"},
		{"leading and trailing dots trimmed", "..hidden..", "hidden"},
		{"trailing spaces trimmed", "  name  ", "name"},
		{"empty becomes placeholder", "", "_unnamed"},
		{"only forbidden becomes placeholder", `///`, "_unnamed"},
		{"reserved device name", "CON", "_CON"},
		{"reserved with extension", "aux.md", "_aux.md"},
		{"reserved case-insensitive", "NuL", "_NuL"},
		{"not reserved when prefix only", "console", "console"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeComponent(tt.input))
		})
	}
}

func TestSanitizeComponentLengthCap(t *testing.T) {
	long := strings.Repeat("x", 300)
	got := SanitizeComponent(long)
	assert.Len(t, got, maxComponentLength)

	// Truncation must not leave a trailing dot behind.
	dotted := strings.Repeat("y", maxComponentLength-1) + "." + strings.Repeat("z", 50)
	got = SanitizeComponent(dotted)
	assert.False(t, strings.HasSuffix(got, "."))

	// The byte cap lands mid-rune here; the cut must back up to a rune
	// boundary instead of emitting a broken trailing byte.
	multibyte := "a" + strings.Repeat("é", 150)
	got = SanitizeComponent(multibyte)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), maxComponentLength)
	assert.Equal(t, "a"+strings.Repeat("é", 99), got)
}

func TestSanitizeComponentIdempotent(t *testing.T) {
	for _, input := range []string{
		"My Project", `we/ird:name`, "..dots..", "CON", strings.Repeat("a", 500),
	} {
		once := SanitizeComponent(input)
		assert.Equal(t, once, SanitizeComponent(once), "input %q", input)
	}
}
