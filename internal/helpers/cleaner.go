package helpers

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSONObject is returned when no balanced object can be located.
var ErrNoJSONObject = errors.New("no balanced JSON object found")

var codeFence = regexp.MustCompile("(?s)^\\s*(?:```|~~~)[a-zA-Z0-9_-]*\\s*\\n?(.*?)\\n?\\s*(?:```|~~~)\\s*$")

// StripCodeFence unwraps content fenced with ``` or ~~~ (optionally tagged,
// e.g. ```json). Unfenced input is returned trimmed.
func StripCodeFence(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "\uFEFF")
	if m := codeFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	// A stray leading or trailing fence without its pair.
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractJSONObject returns the first balanced {...} span of s after removing
// code fences. Braces inside JSON strings are ignored.
func ExtractJSONObject(s string) (string, error) {
	s = StripCodeFence(s)
	for start := strings.IndexByte(s, '{'); start >= 0; {
		if end, ok := matchBrace(s, start); ok {
			return s[start : end+1], nil
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", ErrNoJSONObject
}

// matchBrace finds the index of the brace closing the one at open.
func matchBrace(s string, open int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
