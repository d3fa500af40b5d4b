// Package vault mirrors the database into a hierarchical Markdown vault:
// deterministic path resolution, YAML front-matter rendering, rename and
// move detection with empty-directory cleanup, and a persisted sync-state
// index, all driven by an asynchronous single-consumer export pipeline.
package vault

import (
	"strings"
	"unicode/utf8"
)

const maxComponentLength = 200

// forbidden are the characters stripped from every path component.
const forbidden = `/\:*?"<>|`

// windowsReserved device names, matched case-insensitively against the
// component and against its extension-stripped base.
var windowsReserved = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true, "com5": true,
	"com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true, "lpt5": true,
	"lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

// SanitizeComponent makes s safe as a single path component on every
// supported filesystem: forbidden characters removed, leading/trailing
// dots and spaces trimmed, length capped, empty results substituted, and
// Windows-reserved device names prefixed with an underscore.
func SanitizeComponent(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(forbidden, r) || r < 0x20 {
			continue
		}
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), ". ")
	if len(out) > maxComponentLength {
		// The byte cap must not split a multibyte rune, so the cut point
		// backs up to the nearest rune boundary.
		cut := maxComponentLength
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = strings.Trim(out[:cut], ". ")
	}
	if out == "" {
		return "_unnamed"
	}
	if isWindowsReserved(out) {
		return "_" + out
	}
	return out
}

func isWindowsReserved(s string) bool {
	lower := strings.ToLower(s)
	if windowsReserved[lower] {
		return true
	}
	// NAME.ext is reserved too when NAME is a device name.
	if i := strings.IndexByte(lower, '.'); i > 0 {
		return windowsReserved[lower[:i]]
	}
	return false
}
