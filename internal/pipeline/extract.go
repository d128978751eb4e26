package pipeline

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNoJSONFound means the analysis reply contained no {...} span.
var ErrNoJSONFound = eris.New("pipeline: no JSON object found in response")

// ExtractJSON isolates the JSON object embedded in free-form model prose:
// the span from the first '{' to the last '}' in the whole text.
//
// Precondition: the reply contains exactly one top-level JSON object. The
// capture is greedy and deliberately not brace-matched, so prose before and
// after the object is discarded without a recursive scan; braces inside
// string values cannot cut the span short because it always extends to the
// final '}' of the text. Input is the original, unsanitized reply;
// sanitization applies to the extracted span afterwards.
func ExtractJSON(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoJSONFound
	}
	end := strings.LastIndexByte(s, '}')
	if end < start {
		return "", ErrNoJSONFound
	}
	return s[start : end+1], nil
}
