package core

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mohammad-safakhou/researchbot/internal/agent/rules"
	"github.com/mohammad-safakhou/researchbot/internal/agent/telemetry"
	"github.com/mohammad-safakhou/researchbot/internal/helpers"
	"github.com/mohammad-safakhou/researchbot/internal/retry"
	"github.com/mohammad-safakhou/researchbot/models"
	"go.opentelemetry.io/otel/attribute"
)

// QueryType is the rhetorical shape of a resolved query.
type QueryType string

const (
	QueryPerson      QueryType = "person"
	QueryProduct     QueryType = "product"
	QueryFinancial   QueryType = "financial"
	QueryComparison  QueryType = "comparison"
	QueryNews        QueryType = "news"
	QueryExplanation QueryType = "explanation"
	QueryCompetitive QueryType = "competitive"
	QueryOverview    QueryType = "overview"
	QueryGeneral     QueryType = "general"
)

var queryTypeRules = rules.Set[QueryType]{
	{Tag: QueryPerson, Match: rules.ContainsAny("ceo", "founder", "leader", "who is", "president", "chairman")},
	{Tag: QueryProduct, Match: rules.ContainsAny("product", "service", "feature", "offers", "what does")},
	{Tag: QueryFinancial, Match: rules.ContainsAny("revenue", "profit", "financial", "valuation", "funding", "stock", "earnings")},
	{Tag: QueryComparison, Match: rules.ContainsAny("compare", "vs", "versus", "difference between", "better than")},
	{Tag: QueryNews, Match: rules.ContainsAny("latest", "recent", "news", "update", "development", "new")},
	{Tag: QueryExplanation, Match: rules.ContainsAny("how", "why", "when", "where")},
	{Tag: QueryCompetitive, Match: rules.ContainsAny("competitor", "competition", "rival", "alternative")},
	{Tag: QueryOverview, Match: rules.ContainsAny("company", "business", "about", "tell me", "information", "details")},
}

// ClassifyQuery returns the first matching query type, or QueryGeneral.
func ClassifyQuery(query string) QueryType {
	if t, ok := queryTypeRules.Classify(strings.ToLower(query)); ok {
		return t
	}
	return QueryGeneral
}

const (
	contextItems        = 5
	contextSummaryChars = 600
	minAnswerChars      = 100
	maxKeyPoints        = 6
	defaultRelevance    = 5.0
)

const noEvidenceAnswer = "I couldn't find enough information to answer your question. Please try rephrasing or asking about something else."

var (
	errShortAnswer = errors.New("answer too short")
	bulletLine     = regexp.MustCompile(`^[•\-*]\s*`)
)

// Synthesizer writes the final answer from ranked evidence.
type Synthesizer struct {
	llm   Generator
	model string
	opts  options
}

func NewSynthesizer(llm Generator, model string, opts ...Option) *Synthesizer {
	return &Synthesizer{llm: llm, model: model, opts: buildOptions("[SYNTH] ", opts)}
}

// Write never fails. Generated answers are high confidence, the assembled
// fallback is medium and an empty evidence list yields a low-confidence
// answer without calling the provider.
func (s *Synthesizer) Write(ctx context.Context, resolvedQuery string, evidence []models.EvidenceItem) models.Answer {
	if len(evidence) == 0 {
		return models.Answer{
			Answer:     noEvidenceAnswer,
			KeyPoints:  []string{},
			Confidence: models.ConfidenceLow,
			Sources:    []models.Source{},
		}
	}
	qt := ClassifyQuery(resolvedQuery)
	ctx, done := s.opts.telemetry.StartStage(ctx, telemetry.StageSynthesize,
		attribute.String("synthesize.query_type", string(qt)),
		attribute.Int("synthesize.evidence", len(evidence)))

	messages := []Message{
		{Role: "system", Content: prompts.System},
		{Role: "user", Content: synthesisPrompt(resolvedQuery, evidence, qt)},
	}
	policy := s.opts.policy(retry.Fixed(3, 2*time.Second))
	policy.OnRetry = func(attempt int, err error) {
		s.opts.telemetry.Retry(telemetry.StageSynthesize)
		s.opts.logger.Printf("write attempt %d/3 failed: %v", attempt, err)
	}
	sources := sourceList(evidence)
	answer := retry.Do(ctx, policy, func(ctx context.Context, attempt int) (models.Answer, error) {
		out, err := s.llm.Complete(ctx, s.model, messages, 0.4, 1800)
		if err != nil {
			return models.Answer{}, err
		}
		out = strings.TrimSpace(out)
		if helpers.RuneLen(out) < minAnswerChars {
			return models.Answer{}, errShortAnswer
		}
		text := helpers.FormatAnswer(out)
		return models.Answer{
			Answer:     text,
			KeyPoints:  keyPoints(text, evidence),
			Confidence: models.ConfidenceHigh,
			Sources:    sources,
		}, nil
	}, func(err error) models.Answer {
		s.opts.telemetry.Fallback(telemetry.StageSynthesize)
		s.opts.logger.Printf("using fallback answer: %v", err)
		return fallbackAnswer(evidence, sources)
	})
	s.opts.logger.Printf("%s answer: %d chars, %d key points, %d sources",
		qt, len(answer.Answer), len(answer.KeyPoints), len(answer.Sources))
	done(nil)
	return answer
}

func synthesisPrompt(query string, evidence []models.EvidenceItem, qt QueryType) string {
	tpl, ok := prompts.Types[qt]
	if !ok {
		tpl = prompts.Types[QueryGeneral]
	}
	base := fill(prompts.Instructions, map[string]string{
		"query":   query,
		"context": evidenceContext(evidence),
	})
	return base + "\n\n" + tpl.structure() + "\n\n" + prompts.Closing
}

func evidenceContext(evidence []models.EvidenceItem) string {
	if len(evidence) > contextItems {
		evidence = evidence[:contextItems]
	}
	parts := make([]string, 0, len(evidence))
	for _, e := range evidence {
		var b strings.Builder
		b.WriteString("\n[Source ")
		b.WriteString(strconv.Itoa(e.SourceID))
		b.WriteString("] ")
		b.WriteString(e.Title)
		b.WriteString("\n")
		if summary := summaryOf(e); helpers.RuneLen(summary) > 50 {
			b.WriteString(helpers.Truncate(helpers.CleanText(summary), contextSummaryChars, "..."))
			b.WriteString("\n")
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n")
}

func summaryOf(e models.EvidenceItem) string {
	if strings.TrimSpace(e.Summary) != "" {
		return e.Summary
	}
	return e.Snippet
}

// keyPoints collects bulleted lines of the answer, backfilled from the top
// evidence facts when fewer than two are found.
func keyPoints(answer string, evidence []models.EvidenceItem) []string {
	points := []string{}
	for _, line := range strings.Split(answer, "\n") {
		line = strings.TrimSpace(line)
		if !bulletLine.MatchString(line) || strings.HasPrefix(line, "**") {
			continue
		}
		p := helpers.StripBold(bulletLine.ReplaceAllString(line, ""))
		if n := helpers.RuneLen(p); n >= 15 && n < 200 {
			points = append(points, p)
		}
	}
	if len(points) < 2 {
		for _, e := range topEvidence(evidence, 3) {
			facts := e.KeyFacts
			if len(facts) > 2 {
				facts = facts[:2]
			}
			for _, f := range facts {
				if f = helpers.CleanText(f); helpers.RuneLen(f) > 10 {
					points = append(points, f)
				}
			}
		}
	}
	if len(points) > maxKeyPoints {
		points = points[:maxKeyPoints]
	}
	return points
}

func fallbackAnswer(evidence []models.EvidenceItem, sources []models.Source) models.Answer {
	var b strings.Builder
	b.WriteString("**Answer**\n\n")
	if first := repairSummary(summaryOf(evidence[0]), 300); first != "" {
		b.WriteString(first + "\n\n")
	}

	facts := []string{}
	for _, e := range topEvidence(evidence, 3) {
		for _, f := range e.KeyFacts {
			f = helpers.CompleteSentence(helpers.RemoveCitations(helpers.CleanText(f)))
			if helpers.RuneLen(f) > 20 {
				facts = append(facts, f)
			}
		}
	}
	if len(facts) > maxKeyPoints {
		facts = facts[:maxKeyPoints]
	}
	if len(facts) > 0 {
		b.WriteString("**Key Points**\n\n")
		for _, f := range facts {
			b.WriteString("• " + f + "\n")
		}
		b.WriteString("\n")
	}
	if len(evidence) > 1 {
		if second := repairSummary(summaryOf(evidence[1]), 250); second != "" {
			b.WriteString(second + "\n\n")
		}
	}
	return models.Answer{
		Answer:     helpers.FormatAnswer(b.String()),
		KeyPoints:  facts,
		Confidence: models.ConfidenceMedium,
		Sources:    sources,
	}
}

func repairSummary(s string, max int) string {
	s = helpers.RemoveCitations(helpers.CleanText(s))
	s = helpers.TruncateToSentence(s, max)
	if s == "" {
		return ""
	}
	return helpers.CompleteSentence(s)
}

// sourceList covers every evidence item in evidence order.
func sourceList(evidence []models.EvidenceItem) []models.Source {
	out := make([]models.Source, 0, len(evidence))
	for _, e := range evidence {
		rel := e.RelevanceScore
		if !e.Scored && rel == 0 {
			rel = defaultRelevance
		}
		out = append(out, models.Source{
			ID:        e.SourceID,
			Title:     e.Title,
			URL:       e.URL,
			Snippet:   e.Snippet,
			Relevance: rel,
		})
	}
	return out
}

func topEvidence(evidence []models.EvidenceItem, n int) []models.EvidenceItem {
	if len(evidence) > n {
		return evidence[:n]
	}
	return evidence
}
