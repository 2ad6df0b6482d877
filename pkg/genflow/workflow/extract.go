package workflow

import "errors"

// ErrNoJSON indicates no balanced JSON object was found in the text.
var ErrNoJSON = errors.New("no JSON found in response")

// ExtractJSON returns the first balanced {...} object substring in text.
//
// Model responses often wrap the document in prose ("Sure! Here is your
// workflow: {...}"), so the scan starts at the first opening brace and
// tracks brace depth, skipping braces inside JSON string literals and
// honoring backslash escapes. Returns ErrNoJSON if text contains no
// opening brace or the braces never balance.
func ExtractJSON(text string) (string, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]

		if escaped {
			escaped = false
			continue
		}

		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			if start >= 0 {
				inString = !inString
			}
		case '{':
			if inString {
				continue
			}
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if inString || start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	return "", ErrNoJSON
}
