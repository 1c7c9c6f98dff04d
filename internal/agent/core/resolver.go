package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mohammad-safakhou/researchbot/internal/agent/rules"
	"github.com/mohammad-safakhou/researchbot/internal/agent/telemetry"
	"github.com/mohammad-safakhou/researchbot/internal/helpers"
	"github.com/mohammad-safakhou/researchbot/internal/planner"
	"github.com/mohammad-safakhou/researchbot/internal/retry"
	"github.com/mohammad-safakhou/researchbot/models"
	"go.opentelemetry.io/otel/attribute"
)

const (
	transcriptTurns     = 8
	transcriptTurnChars = 500
	fallbackTurns       = 4
	fallbackIntent      = "company research"
)

var errShortResponse = errors.New("empty response")

// Canned categories are matched by phrase containment on the lowercased query.
var cannedRules = rules.Set[string]{
	{Tag: "off_topic_example", Match: rules.ContainsAny(
		"how to make coffee", "how to cook", "recipe for", "how to bake",
		"cooking instructions", "how do i make", "how to prepare")},
	{Tag: "confused_purpose", Match: rules.ContainsAny(
		"what am i doing here", "what is this", "where am i", "what is this place",
		"what is this website", "what can i do here")},
	{Tag: "identity", Match: rules.ContainsAny(
		"who are you", "what are you", "who r u", "what r u",
		"tell me about yourself", "introduce yourself")},
}

var edgeCaseRules = rules.Set[string]{
	{Tag: "too_short", Match: func(q string) bool { return utf8.RuneCountInString(q) < 3 }},
	{Tag: "confused_user", Match: rules.MatchAny(
		`i don'?t know`, `not sure`, `help\s*me`, `what can you do`, `confused`,
		`i'?m lost`, `don'?t understand`, `how does this work`, `what should i ask`,
		`give me (some )?options`, `suggest something`)},
	{Tag: "off_topic", Match: rules.MatchAny(
		`how are you`, `what'?s (the )?weather`, `tell (me )?a joke`, `sing (me )?a song`,
		`movie recommendation`, `book recommendation`, `play (a )?game`, `sports score`,
		`love advice`, `what should i eat`, `translate`, `math problem`, `homework help`)},
	{Tag: "gibberish", Match: IsGibberish},
	{Tag: "malicious", Match: rules.MatchAny(
		`<script`, `javascript:`, `onerror\s*=`, `select\s+.*\s+from`, `drop\s+table`,
		`union\s+select`, `insert\s+into`, `delete\s+from`, `--\s*$`,
		`'?\s*or\s*'?1'?\s*=\s*'?1`)},
}

var hasReference = rules.MatchAny(
	`\b(he|his|him|she|her|hers)\b`,
	`\b(it|its)\b`,
	`\b(they|their|them)\b`,
	`\b(this|that|these|those)\b`,
	`\bthe company\b`, `\bthis company\b`, `\bthat company\b`,
	`\bthe person\b`, `\bthe organization\b`,
)

var (
	nonLetters    = regexp.MustCompile(`[^a-z]`)
	keyboardWalks = []string{"qwert", "asdfg", "zxcvb", "abcde", "fghij"}
)

// IsGibberish flags text whose letters are too repetitive, nearly vowel-free
// or contain a keyboard walk. Inputs with fewer than three letters pass.
func IsGibberish(text string) bool {
	clean := nonLetters.ReplaceAllString(strings.ToLower(text), "")
	n := len(clean)
	if n < 3 {
		return false
	}
	distinct := make(map[rune]bool)
	vowels := 0
	for _, c := range clean {
		distinct[c] = true
		if strings.ContainsRune("aeiou", c) {
			vowels++
		}
	}
	if float64(len(distinct)) < float64(n)*0.3 {
		return true
	}
	if float64(vowels) < float64(n)*0.15 {
		return true
	}
	for _, w := range keyboardWalks {
		if strings.Contains(clean, w) {
			return true
		}
	}
	return false
}

// Resolver turns a raw utterance and its history into a ResolvedPlan.
type Resolver struct {
	llm   Generator
	model string
	opts  options
}

func NewResolver(llm Generator, model string, opts ...Option) *Resolver {
	return &Resolver{llm: llm, model: model, opts: buildOptions("[RESOLVER] ", opts)}
}

// Resolve never fails: provider faults end in the deterministic fallback plan.
// Non-terminal plans always carry exactly subQueryCount sub-queries.
func (r *Resolver) Resolve(ctx context.Context, query string, history []models.Turn, subQueryCount int) models.ResolvedPlan {
	if subQueryCount < 1 {
		subQueryCount = 1
	}
	ctx, done := r.opts.telemetry.StartStage(ctx, telemetry.StageResolve,
		attribute.Int("resolve.sub_queries", subQueryCount))
	lower := strings.ToLower(strings.TrimSpace(query))

	if tag, ok := cannedRules.Classify(lower); ok {
		r.opts.logger.Printf("canned response: %s", tag)
		done(nil)
		return shortcutPlan(models.ShortcutCanned, tag, query, history)
	}
	if tag, ok := edgeCaseRules.Classify(lower); ok {
		r.opts.logger.Printf("edge case: %s", tag)
		done(nil)
		return shortcutPlan(models.ShortcutEdgeCase, tag, query, history)
	}

	transcript := buildTranscript(history)
	referenced := hasReference(lower)
	prompt := directPrompt(query, subQueryCount)
	if referenced && transcript != "" {
		prompt = referencePrompt(query, transcript, subQueryCount)
	}
	messages := []Message{
		{Role: "system", Content: fmt.Sprintf("You are a context-aware query analyzer. Return only valid JSON with exactly %d sub-queries.", subQueryCount)},
		{Role: "user", Content: prompt},
	}

	policy := r.opts.policy(retry.Fixed(3, 2*time.Second))
	policy.OnRetry = func(attempt int, err error) {
		r.opts.telemetry.Retry(telemetry.StageResolve)
		r.opts.logger.Printf("resolve attempt %d/3 failed: %v", attempt, err)
	}
	plan := retry.Do(ctx, policy, func(ctx context.Context, attempt int) (models.ResolvedPlan, error) {
		out, err := r.llm.Complete(ctx, r.model, messages, 0.1, 500)
		if err != nil {
			return models.ResolvedPlan{}, err
		}
		return parsePlan(out, query, subQueryCount)
	}, func(err error) models.ResolvedPlan {
		r.opts.telemetry.Fallback(telemetry.StageResolve)
		r.opts.logger.Printf("using fallback plan: %v", err)
		return fallbackPlan(query, history, referenced, subQueryCount)
	})
	r.opts.logger.Printf("resolved %q -> %q (%d sub-queries)", query, plan.ResolvedQuery, len(plan.SubQueries))
	done(nil)
	return plan
}

func shortcutPlan(kind models.ShortcutKind, tag, query string, history []models.Turn) models.ResolvedPlan {
	resp, ok := fixedResponses[tag]
	if !ok {
		if kind == models.ShortcutCanned {
			resp = fixedResponses["default_canned"]
		} else {
			resp = fixedResponses["default_edge_case"]
		}
	}
	recent := ""
	if tag == "confused_user" && len(history) > 0 {
		recent = "\n\n**📌 Recent Context:** " + prefixRunes(history[len(history)-1].Content, 150) + "..."
	}
	keyPoints := append([]string{}, resp.KeyPoints...)
	return models.ResolvedPlan{
		ResolvedQuery: query,
		Intent:        resp.Intent,
		SubQueries:    []string{},
		Shortcut: &models.Shortcut{
			Kind: kind,
			Tag:  tag,
			Response: models.Answer{
				Answer:     fill(resp.Answer, map[string]string{"context": recent}),
				KeyPoints:  keyPoints,
				Confidence: resp.Confidence,
				Sources:    []models.Source{},
			},
		},
	}
}

func buildTranscript(history []models.Turn) string {
	if len(history) == 0 {
		return ""
	}
	if len(history) > transcriptTurns {
		history = history[len(history)-transcriptTurns:]
	}
	parts := make([]string, 0, len(history))
	for _, t := range history {
		role := strings.ToUpper(string(t.Role))
		if role == "" {
			role = "USER"
		}
		parts = append(parts, role+": "+helpers.Truncate(t.Content, transcriptTurnChars, "..."))
	}
	return strings.Join(parts, "\n\n")
}

func referencePrompt(query, transcript string, n int) string {
	return fmt.Sprintf(`You are analyzing a conversation. The user just asked a follow-up question.

FULL CONVERSATION TRANSCRIPT:
%s

CURRENT QUESTION: %s

TASK:
1. Read the conversation transcript to understand what has been discussed
2. Identify what "he", "she", "it", "they", "this company", "that", etc. refer to
3. Rewrite the question with all references replaced by actual names
4. Create %d specific search queries

OUTPUT (JSON only, no markdown):
{"resolved_query": "question with all pronouns replaced", "intent": "user intent", "sub_queries": ["search query 1", "search query 2", "search query %d"]}

IMPORTANT: Generate exactly %d sub-queries.`, transcript, query, n, n, n)
}

func directPrompt(query string, n int) string {
	return fmt.Sprintf(`Create %d specific search queries for this question.

QUESTION: %s

OUTPUT (JSON only):
{"resolved_query": %q, "intent": "user intent", "sub_queries": ["query 1", "query 2", "query %d"]}

IMPORTANT: Generate exactly %d sub-queries.`, n, query, query, n, n)
}

// parsePlan repairs and validates a provider response, then pads or trims
// the sub-queries to n.
func parsePlan(raw, query string, n int) (models.ResolvedPlan, error) {
	raw = strings.TrimSpace(raw)
	if utf8.RuneCountInString(raw) < 10 {
		return models.ResolvedPlan{}, errShortResponse
	}
	obj, err := helpers.ExtractJSONObject(raw)
	if err != nil {
		return models.ResolvedPlan{}, err
	}
	doc, err := planner.ParsePlanDocument([]byte(obj))
	if err != nil {
		return models.ResolvedPlan{}, err
	}
	subs := make([]string, 0, n)
	for _, s := range doc.SubQueries {
		if s = strings.TrimSpace(s); s != "" {
			subs = append(subs, s)
		}
	}
	return models.ResolvedPlan{
		ResolvedQuery: strings.TrimSpace(doc.ResolvedQuery),
		Intent:        doc.Intent,
		SubQueries:    fitSubQueries(subs, query, n),
	}, nil
}

// fitSubQueries pads with "<first> details" or truncates to exactly n.
func fitSubQueries(subs []string, query string, n int) []string {
	for len(subs) < n {
		base := query
		if len(subs) > 0 {
			base = subs[0]
		}
		subs = append(subs, base+" details")
	}
	return subs[:n]
}

func fallbackPlan(query string, history []models.Turn, referenced bool, n int) models.ResolvedPlan {
	if len(history) > fallbackTurns {
		history = history[len(history)-fallbackTurns:]
	}
	var candidates []string
	seen := make(map[string]bool)
	for _, t := range history {
		for _, e := range extractEntities(historyStopwords, 5, prefixRunes(t.Content, 600)) {
			if !seen[e] {
				seen[e] = true
				candidates = append(candidates, e)
			}
		}
	}

	resolved := query
	var subs []string
	if referenced && len(candidates) > 0 {
		entity := candidates[0]
		resolved = entity + " " + query
		if n > 3 {
			subs = []string{entity + " " + query, entity + " detailed information", entity + " comprehensive overview",
				entity + " latest updates", entity + " in-depth analysis"}
		} else {
			subs = []string{entity + " " + query, entity + " information", entity + " details"}
		}
	} else if n > 3 {
		subs = []string{query, query + " detailed information", query + " comprehensive guide",
			query + " latest updates", query + " in-depth analysis"}
	} else {
		subs = []string{query, query + " information", query + " details"}
	}
	if len(subs) > n {
		subs = subs[:n]
	}
	return models.ResolvedPlan{
		ResolvedQuery: resolved,
		Intent:        fallbackIntent,
		SubQueries:    fitSubQueries(subs, query, n),
	}
}
