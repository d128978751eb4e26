package pipeline

import "strings"

// SanitizeResponse repairs unescaped control characters in model-generated
// JSON: every newline not immediately preceded by a backslash becomes a
// single space. Already-escaped sequences pass through verbatim. Purely
// textual, no JSON validation.
//
// A manual scan rather than a regexp because the needed lookbehind
// ("newline not after backslash") is not expressible in RE2 syntax.
func SanitizeResponse(s string) string {
	if !strings.Contains(s, "\n") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' && (i == 0 || s[i-1] != '\\') {
			b.WriteByte(' ')
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
