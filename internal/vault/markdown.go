package vault

import (
	"strings"

	"github.com/taskvault/taskvault/internal/model"
)

// NormalizeHeaders pulls back any Markdown header that is deeper by more
// than one level than its predecessor, so the document's header hierarchy
// never jumps levels. Headers inside fenced code blocks are left alone.
// This pass must run before EscapeNestedMarkdownFences.
func NormalizeHeaders(content string, baseLevel int) string {
	lines := strings.Split(content, "\n")
	prev := baseLevel
	inFence := false
	fenceMarker := ""

	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if marker := fenceStart(trimmed); marker != "" {
			if inFence && strings.HasPrefix(trimmed, fenceMarker) {
				inFence = false
			} else if !inFence {
				inFence = true
				fenceMarker = marker
			}
			continue
		}
		if inFence {
			continue
		}
		level := headerLevel(line)
		if level == 0 {
			continue
		}
		if level > prev+1 {
			level = prev + 1
			lines[i] = strings.Repeat("#", level) + strings.TrimLeft(line, "#")
		}
		prev = level
	}
	return strings.Join(lines, "\n")
}

// EscapeNestedMarkdownFences re-escapes triple-backtick fences whose
// language tag is "markdown" to four backticks, so the embedded document
// cannot terminate the section's own fencing.
func EscapeNestedMarkdownFences(content string) string {
	lines := strings.Split(content, "\n")
	escaping := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if escaping {
			if trimmed == "```" {
				lines[i] = strings.Replace(line, "```", "````", 1)
				escaping = false
			}
			continue
		}
		if strings.HasPrefix(trimmed, "```") && strings.EqualFold(strings.TrimSpace(trimmed[3:]), "markdown") {
			lines[i] = strings.Replace(line, "```", "````", 1)
			escaping = true
		}
	}
	return strings.Join(lines, "\n")
}

func fenceStart(trimmed string) string {
	if strings.HasPrefix(trimmed, "````") {
		return "````"
	}
	if strings.HasPrefix(trimmed, "```") {
		return "```"
	}
	return ""
}

func headerLevel(line string) int {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	if n == 0 || n > 6 {
		return 0
	}
	if n == len(line) || line[n] == ' ' || line[n] == '\t' {
		return n
	}
	return 0
}

// codeLanguages is the fixed lexicon matched case-insensitively against a
// CODE section's title and tags to pick a fence language tag.
var codeLanguages = map[string]string{
	"kotlin": "kotlin", "kt": "kotlin",
	"java":       "java",
	"python":     "python",
	"py":         "python",
	"javascript": "javascript", "js": "javascript",
	"typescript": "typescript", "ts": "typescript",
	"bash": "bash", "shell": "bash", "sh": "bash",
	"sql":  "sql",
	"json": "json",
	"yaml": "yaml", "yml": "yaml",
	"xml":      "xml",
	"markdown": "markdown", "md": "markdown",
	"dockerfile": "dockerfile", "docker": "dockerfile",
	"go": "go", "golang": "go",
	"rust": "rust",
	"cpp":  "cpp", "c++": "cpp",
	"csharp": "csharp", "c#": "csharp",
	"ruby": "ruby", "rb": "ruby",
	"php": "php",
}

// DefaultCodeLanguage is used when no lexicon word matches.
const DefaultCodeLanguage = "text"

// inferCodeLanguage matches the section title words and tags against the
// lexicon, title first.
func inferCodeLanguage(sec *model.Section, fallback string) string {
	for _, word := range strings.FieldsFunc(strings.ToLower(sec.Title), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '.' || r == '(' || r == ')'
	}) {
		if lang, ok := codeLanguages[word]; ok {
			return lang
		}
	}
	for _, tag := range sec.Tags {
		if lang, ok := codeLanguages[strings.ToLower(tag)]; ok {
			return lang
		}
	}
	if fallback != "" {
		return fallback
	}
	return DefaultCodeLanguage
}
