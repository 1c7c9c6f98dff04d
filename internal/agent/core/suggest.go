package core

import (
	"strings"

	"github.com/mohammad-safakhou/researchbot/internal/agent/rules"
	"github.com/mohammad-safakhou/researchbot/models"
)

const maxSuggestions = 4

type suggestionFamily func(entity string) []string

var suggestionRules = rules.Set[suggestionFamily]{
	{Tag: func(e string) []string {
		return []string{
			"Who is the CEO of " + e + "?",
			"What are the main products of " + e + "?",
			"Tell me about " + e + "'s competitors",
			"/dig-deeper Tell me more about " + e,
		}
	}, Match: rules.ContainsAny("company", "business", "organization")},
	{Tag: func(string) []string {
		return []string{
			"What is their background?",
			"When did they join the company?",
			"Tell me about their achievements",
			"/dig-deeper What is their leadership style?",
		}
	}, Match: rules.ContainsAny("ceo", "founder", "leader")},
	{Tag: func(string) []string {
		return []string{
			"How much does it cost?",
			"Who are the competitors?",
			"What are the key features?",
			"/dig-deeper Tell me about customer reviews",
		}
	}, Match: rules.ContainsAny("product", "service")},
	{Tag: func(string) []string {
		return []string{
			"What is their market valuation?",
			"Tell me about their funding history",
			"How do they compare to competitors?",
			"/dig-deeper What is their growth rate?",
		}
	}, Match: rules.ContainsAny("revenue", "financial", "profit")},
}

var starterSuggestions = []string{
	"Tell me about Tesla",
	"What is Apple's latest product?",
	"Compare Google and Microsoft",
	"/dig-deeper Who founded Amazon?",
}

// Suggest proposes up to four follow-up questions for the last exchange.
// With no history it returns a fixed starter set.
func Suggest(lastQuery, lastAnswer string, history []models.Turn) []string {
	if len(history) == 0 {
		return append([]string{}, starterSuggestions...)
	}
	entities := extractEntities(suggestionStopwords, 3, lastQuery, prefixRunes(lastAnswer, 500))

	var out []string
	if family, ok := suggestionRules.Classify(strings.ToLower(lastQuery)); ok {
		entity := "this company"
		if len(entities) > 0 {
			entity = entities[0]
		}
		out = family(entity)
	} else if len(entities) > 0 {
		e := entities[0]
		out = []string{
			"Tell me more about " + e,
			"What are recent developments in " + e + "?",
			"Who are the competitors of " + e + "?",
			"/dig-deeper " + e + " detailed analysis",
		}
	}
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	if out == nil {
		out = []string{}
	}
	return out
}
