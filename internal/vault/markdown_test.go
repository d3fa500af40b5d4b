package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskvault/taskvault/internal/model"
)

func TestNormalizeHeaders(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		baseLevel int
		want      string
	}{
		{
			name:      "level jump pulled back",
			input:     "#### deep",
			baseLevel: 1,
			want:      "## deep",
		},
		{
			name:      "single step kept",
			input:     "## ok\n### nested",
			baseLevel: 1,
			want:      "## ok\n### nested",
		},
		{
			name:      "successive jumps each clamped",
			input:     "## a\n###### way too deep\n#### next",
			baseLevel: 1,
			want:      "## a\n### way too deep\n#### next",
		},
		{
			name:      "headers inside fences untouched",
			input:     "```\n#### not a header\n```\n#### real",
			baseLevel: 1,
			want:      "```\n#### not a header\n```\n## real",
		},
		{
			name:      "hash without space is not a header",
			input:     "#hashtag\n### deep",
			baseLevel: 1,
			want:      "#hashtag\n## deep",
		},
		{
			name:      "plain text unchanged",
			input:     "no headers here",
			baseLevel: 3,
			want:      "no headers here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeHeaders(tt.input, tt.baseLevel))
		})
	}
}

func TestEscapeNestedMarkdownFences(t *testing.T) {
	input := "before\n```markdown\n# embedded doc\n```\nafter"
	want := "before\n````markdown\n# embedded doc\n````\nafter"
	assert.Equal(t, want, EscapeNestedMarkdownFences(input))

	// Non-markdown fences are left alone.
	code := "```go\nfunc main() {}\n```"
	assert.Equal(t, code, EscapeNestedMarkdownFences(code))

	// Case-insensitive language tag.
	input = "```Markdown\ntext\n```"
	want = "````Markdown\ntext\n````"
	assert.Equal(t, want, EscapeNestedMarkdownFences(input))
}

func TestInferCodeLanguage(t *testing.T) {
	tests := []struct {
		name    string
		section model.Section
		want    string
	}{
		{
			name:    "from title word",
			section: model.Section{Title: "Python Example"},
			want:    "python",
		},
		{
			name:    "title alias",
			section: model.Section{Title: "setup.sh walkthrough"},
			want:    "bash",
		},
		{
			name:    "from tag when title misses",
			section: model.Section{Title: "Snippet", Tags: []string{"typescript"}},
			want:    "typescript",
		},
		{
			name:    "title wins over tag",
			section: model.Section{Title: "Go helper", Tags: []string{"python"}},
			want:    "go",
		},
		{
			name:    "fallback default",
			section: model.Section{Title: "Snippet"},
			want:    DefaultCodeLanguage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferCodeLanguage(&tt.section, ""))
		})
	}
}
