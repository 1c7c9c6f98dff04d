// Package rules implements ordered first-match-wins classification.
package rules

import (
	"regexp"
	"strings"
)

// Predicate reports whether an input matches a rule.
type Predicate func(input string) bool

// Rule pairs a predicate with the tag it yields.
type Rule[T any] struct {
	Tag   T
	Match Predicate
}

// Set is an ordered list of rules evaluated first match wins.
type Set[T any] []Rule[T]

// Classify returns the tag of the first matching rule.
func (s Set[T]) Classify(input string) (T, bool) {
	for _, r := range s {
		if r.Match(input) {
			return r.Tag, true
		}
	}
	var zero T
	return zero, false
}

// ContainsAny matches when the input contains any of the phrases.
func ContainsAny(phrases ...string) Predicate {
	return func(input string) bool {
		for _, p := range phrases {
			if strings.Contains(input, p) {
				return true
			}
		}
		return false
	}
}

// MatchAny compiles the patterns once and matches when any of them hits.
func MatchAny(patterns ...string) Predicate {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		res = append(res, regexp.MustCompile(p))
	}
	return func(input string) bool {
		for _, re := range res {
			if re.MatchString(input) {
				return true
			}
		}
		return false
	}
}
