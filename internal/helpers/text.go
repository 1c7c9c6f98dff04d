package helpers

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	controlChars     = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)
	anyWhitespace    = regexp.MustCompile(`\s+`)
	inlineWhitespace = regexp.MustCompile(`[ \t]+`)
	trailingEllipsis = regexp.MustCompile(`\s*\.\.\.$`)
	sourceCitation   = regexp.MustCompile(`\[Source\s+\d+(?:,\s*\d+)*\]`)
	spaceBeforePunct = regexp.MustCompile(`[ \t]+([.,!?;:])`)
	boldSpan         = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	headingAfter     = regexp.MustCompile(`\*\*([^*]+)\*\*\n+`)
	headingBefore    = regexp.MustCompile(`([^\n])\n\*\*`)
	bulletMarker     = regexp.MustCompile(`(?m)^[ \t]*(?:•[ \t]*|-[ \t]+|\*[ \t]+)`)
	extraNewlines    = regexp.MustCompile(`\n{3,}`)
	terminalPunct    = regexp.MustCompile(`[.!?]\s*$`)
)

// danglingTails are stripped from the end of text, in order.
var danglingTails = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s+(and|or|the|a|an|is|are|was|were|has|have|as|in|at|to|for)$`),
	regexp.MustCompile(`,\s*$`),
	regexp.MustCompile(`\s*\.\.\.+\s*$`),
	regexp.MustCompile(`\s*\[\.\.\.+\]\s*$`),
}

// CleanText removes control characters, collapses whitespace and drops a
// trailing ellipsis.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = controlChars.ReplaceAllString(s, "")
	s = anyWhitespace.ReplaceAllString(s, " ")
	s = trailingEllipsis.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// RemoveCitations strips [Source N] and [Source N, M] markers. Line
// structure is kept; only the horizontal whitespace left behind is collapsed.
func RemoveCitations(s string) string {
	s = sourceCitation.ReplaceAllString(s, "")
	s = inlineWhitespace.ReplaceAllString(s, " ")
	s = spaceBeforePunct.ReplaceAllString(s, "$1")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// StripBold removes **bold** markup and keeps the inner text.
func StripBold(s string) string {
	return boldSpan.ReplaceAllString(s, "$1")
}

// FormatAnswer normalizes a markdown answer: citations removed, a blank
// line around each bold heading, a single bullet symbol, at most one blank
// line in a row and a completed final sentence.
func FormatAnswer(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = RemoveCitations(s)
	s = headingAfter.ReplaceAllString(s, "**$1**\n\n")
	s = headingBefore.ReplaceAllString(s, "$1\n\n**")
	s = bulletMarker.ReplaceAllString(s, "• ")
	s = extraNewlines.ReplaceAllString(s, "\n\n")
	return CompleteSentence(s)
}

// CompleteSentence repairs a truncated ending. Dangling conjunctions,
// commas and ellipses are stripped; if the text still lacks terminal
// punctuation it is cut back to the last sentence end in its second half.
// The repair runs to a fixed point so applying it twice is a no-op.
func CompleteSentence(s string) string {
	s = strings.TrimSpace(s)
	for {
		next := completeOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func completeOnce(s string) string {
	if s == "" {
		return ""
	}
	for _, re := range danglingTails {
		s = re.ReplaceAllString(s, "")
	}
	if !terminalPunct.MatchString(s) {
		last := strings.LastIndexAny(s, ".!?")
		if last > len(s)/2 {
			s = s[:last+1]
		}
	}
	return strings.TrimSpace(s)
}

// TruncateToSentence shortens s to at most max runes, preferring a sentence
// boundary in the last 30% of the window and otherwise a word boundary.
func TruncateToSentence(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	window := string(runes[:max])
	last := -1
	for _, sep := range []string{". ", "! ", "? "} {
		if i := strings.LastIndex(window, sep); i > last {
			last = i
		}
	}
	if last >= 0 && utf8.RuneCountInString(window[:last]) > int(float64(max)*0.7) {
		return strings.TrimSpace(window[:last+1])
	}
	if sp := strings.LastIndex(window, " "); sp > 0 {
		return strings.TrimSpace(window[:sp]) + "."
	}
	return window + "."
}

// Truncate cuts s to max runes and appends suffix when it was longer.
func Truncate(s string, max int, suffix string) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + suffix
}

// RuneLen is the length of s in characters.
func RuneLen(s string) int { return utf8.RuneCountInString(s) }
