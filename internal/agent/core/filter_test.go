package core

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"testing"

	"github.com/mohammad-safakhou/researchbot/models"
)

var titleInPrompt = regexp.MustCompile(`Title: item-(\d+)`)

func TestAnalyzeKeepsScoresAtThresholdSorted(t *testing.T) {
	scores := []float64{9, 3, 7, 5, 8, 2, 6, 4}
	llm := newStubLLM()
	llm.analyze = func(prompt string) (string, error) {
		m := titleInPrompt.FindStringSubmatch(prompt)
		i, _ := strconv.Atoi(m[1])
		return fmt.Sprintf(`{"relevance_score": %v, "key_facts": ["fact %d"], "main_topics": ["t"], "summary": "summary %d"}`, scores[i], i, i), nil
	}
	var candidates []models.SearchHit
	for i := range scores {
		candidates = append(candidates, models.SearchHit{
			URL: fmt.Sprintf("https://x.example/%d", i), Title: fmt.Sprintf("item-%d", i),
			Snippet: "short", Content: "short",
		})
	}

	items := NewFilter(llm, "m", testOptions()...).Analyze(context.Background(), "Tesla", candidates)
	var got []float64
	for _, it := range items {
		got = append(got, it.RelevanceScore)
	}
	if fmt.Sprint(got) != fmt.Sprint([]float64{9, 8, 7, 6, 5, 4}) {
		t.Fatalf("scores %v", got)
	}
	if items[0].SourceID != 1 || items[1].SourceID != 5 {
		t.Fatalf("source ids follow candidate position: %d, %d", items[0].SourceID, items[1].SourceID)
	}
	if items[0].Summary != "summary 0" || items[0].KeyFacts[0] != "fact 0" {
		t.Fatalf("analysis not attached: %+v", items[0])
	}
	if llm.lastTemp["analyze"] != 0.1 {
		t.Fatalf("expected temperature 0.1")
	}
}

func TestAnalyzeUsesHintForInlineContent(t *testing.T) {
	llm := newStubLLM()
	candidates := []models.SearchHit{
		{URL: "https://a.example", Title: "A", Snippet: "a", Content: longText("alpha"), RelevanceHint: score(0.6)},
		{URL: "https://b.example", Title: "B", Snippet: "b", Content: longText("beta")},
	}
	items := NewFilter(llm, "m", testOptions()...).Analyze(context.Background(), "q", candidates)
	if llm.count("analyze") != 0 {
		t.Fatalf("inline content must not be sent to the provider")
	}
	if len(items) != 2 || items[0].RelevanceScore != 8 || items[1].RelevanceScore != 6 {
		t.Fatalf("unexpected items %+v", items)
	}
	if items[0].Summary != "b" || items[0].KeyFacts[0] != "b" {
		t.Fatalf("expected snippet analysis, got %+v", items[0])
	}
}

func TestAnalyzeFallsBackOnProviderFailure(t *testing.T) {
	llm := newStubLLM()
	llm.analyze = reply(`{"key_facts": []}`)
	candidates := []models.SearchHit{{URL: "https://a.example", Title: "A", Snippet: "snip", Content: "snip"}}

	items := NewFilter(llm, "m", testOptions()...).Analyze(context.Background(), "q", candidates)
	if llm.count("analyze") != 2 {
		t.Fatalf("expected one retry, got %d calls", llm.count("analyze"))
	}
	if len(items) != 1 || items[0].RelevanceScore != 7 || !items[0].Scored || items[0].KeyFacts[0] != "snip" {
		t.Fatalf("expected fallback analysis, got %+v", items)
	}
}

func TestSortEvidenceIsStableAndIdempotent(t *testing.T) {
	items := []models.EvidenceItem{
		{SourceID: 1, RelevanceScore: 5}, {SourceID: 2, RelevanceScore: 8},
		{SourceID: 3, RelevanceScore: 5}, {SourceID: 4, RelevanceScore: 8},
	}
	SortEvidence(items)
	order := fmt.Sprint(items[0].SourceID, items[1].SourceID, items[2].SourceID, items[3].SourceID)
	if order != "2 4 1 3" {
		t.Fatalf("unexpected order %s", order)
	}
	SortEvidence(items)
	if again := fmt.Sprint(items[0].SourceID, items[1].SourceID, items[2].SourceID, items[3].SourceID); again != order {
		t.Fatalf("re-sorting changed order: %s", again)
	}
}
