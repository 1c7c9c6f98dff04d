package core

import (
	"regexp"
	"unicode/utf8"
)

var entityPattern = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)

// sentenceStarters are capitalized only by position and never name an entity.
var sentenceStarters = []string{
	"Tell", "What", "Who", "How", "Why", "When", "Where", "Which", "Can", "Does",
	"Please", "Give", "Show", "Compare", "Explain", "Find",
}

func stopwords(words ...string) map[string]bool {
	m := make(map[string]bool, len(words)+len(sentenceStarters))
	for _, w := range words {
		m[w] = true
	}
	for _, w := range sentenceStarters {
		m[w] = true
	}
	return m
}

var (
	historyStopwords = stopwords("The", "This", "That", "These", "Those", "Based", "According",
		"Source", "Company", "Today", "However", "Therefore", "Additionally")
	suggestionStopwords = stopwords("The", "This", "That", "These", "Those", "Based", "According",
		"Source", "Company", "Today", "Overview", "Key", "Information")
)

// extractEntities returns capitalized word runs from texts in order of first
// appearance, skipping stopwords and names of two letters or fewer.
func extractEntities(stop map[string]bool, limit int, texts ...string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, text := range texts {
		for _, m := range entityPattern.FindAllString(text, -1) {
			if stop[m] || utf8.RuneCountInString(m) <= 2 || seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func prefixRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
