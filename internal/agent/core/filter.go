package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mohammad-safakhou/researchbot/internal/agent/telemetry"
	"github.com/mohammad-safakhou/researchbot/internal/helpers"
	"github.com/mohammad-safakhou/researchbot/internal/planner"
	"github.com/mohammad-safakhou/researchbot/internal/retry"
	"github.com/mohammad-safakhou/researchbot/models"
	"go.opentelemetry.io/otel/attribute"
)

const (
	minRelevance       = 4.0
	defaultHintScore   = 0.8
	fallbackRelevance  = 7.0
	analysisInputChars = 2000
)

const analysisSystemPrompt = "You are a JSON-only API. Return only valid JSON."

// Filter scores candidates for relevance and attaches facts and a summary.
type Filter struct {
	llm   Generator
	model string
	opts  options
}

func NewFilter(llm Generator, model string, opts ...Option) *Filter {
	return &Filter{llm: llm, model: model, opts: buildOptions("[FILTER] ", opts)}
}

// Analyze returns the kept candidates ordered by descending relevance.
// Source ids follow candidate order and are assigned before any item is
// dropped. Provider faults never drop an item; only a low analyzed score does.
func (f *Filter) Analyze(ctx context.Context, resolvedQuery string, candidates []models.SearchHit) []models.EvidenceItem {
	ctx, done := f.opts.telemetry.StartStage(ctx, telemetry.StageFilter,
		attribute.Int("filter.candidates", len(candidates)))

	items := make([]models.EvidenceItem, 0, len(candidates))
	for i, c := range candidates {
		item, keep := f.analyzeOne(ctx, resolvedQuery, i+1, c)
		if !keep {
			f.opts.logger.Printf("dropped source %d (score %.1f): %s", item.SourceID, item.RelevanceScore, c.URL)
			continue
		}
		items = append(items, item)
	}
	SortEvidence(items)
	f.opts.logger.Printf("kept %d of %d candidates", len(items), len(candidates))
	done(nil)
	return items
}

// SortEvidence orders items by descending relevance, keeping ties in place.
func SortEvidence(items []models.EvidenceItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].RelevanceScore > items[j].RelevanceScore
	})
}

func (f *Filter) analyzeOne(ctx context.Context, query string, id int, c models.SearchHit) (models.EvidenceItem, bool) {
	if helpers.RuneLen(c.Content) > inlineContentChars {
		hint := defaultHintScore
		if c.RelevanceHint != nil {
			hint = *c.RelevanceHint
		}
		return snippetAnalysis(id, c, hint*10), true
	}

	messages := []Message{
		{Role: "system", Content: analysisSystemPrompt},
		{Role: "user", Content: analysisPrompt(query, c)},
	}
	policy := f.opts.policy(retry.Fixed(2, time.Second))
	policy.OnRetry = func(attempt int, err error) {
		f.opts.telemetry.Retry(telemetry.StageFilter)
		f.opts.logger.Printf("analysis of source %d attempt %d failed: %v", id, attempt, err)
	}
	doc, err := retry.Run(ctx, policy, func(ctx context.Context, attempt int) (planner.AnalysisDocument, error) {
		out, err := f.llm.Complete(ctx, f.model, messages, 0.1, 400)
		if err != nil {
			return planner.AnalysisDocument{}, err
		}
		obj, err := helpers.ExtractJSONObject(out)
		if err != nil {
			return planner.AnalysisDocument{}, err
		}
		return planner.ParseAnalysisDocument([]byte(obj))
	})
	if err != nil {
		f.opts.telemetry.Fallback(telemetry.StageFilter)
		f.opts.logger.Printf("using fallback analysis for source %d: %v", id, err)
		return snippetAnalysis(id, c, fallbackRelevance), true
	}

	item := models.EvidenceItem{
		SearchHit:      c,
		SourceID:       id,
		RelevanceScore: doc.RelevanceScore,
		Scored:         true,
		KeyFacts:       doc.KeyFacts,
		MainTopics:     doc.MainTopics,
		Summary:        doc.Summary,
	}
	if item.KeyFacts == nil {
		item.KeyFacts = []string{}
	}
	return item, doc.RelevanceScore >= minRelevance
}

func snippetAnalysis(id int, c models.SearchHit, score float64) models.EvidenceItem {
	return models.EvidenceItem{
		SearchHit:      c,
		SourceID:       id,
		RelevanceScore: score,
		Scored:         true,
		KeyFacts:       []string{c.Snippet},
		MainTopics:     []string{},
		Summary:        c.Snippet,
	}
}

func analysisPrompt(query string, c models.SearchHit) string {
	return fmt.Sprintf(`Analyze this content for: %s

Title: %s
Content: %s

Return ONLY this exact JSON format (no markdown, no extra text):
{"relevance_score": 8, "key_facts": ["fact1", "fact2"], "main_topics": ["topic1"], "summary": "brief summary"}`,
		query, c.Title, prefixRunes(c.Content, analysisInputChars))
}
