package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/mohammad-safakhou/researchbot/config"
	"github.com/mohammad-safakhou/researchbot/internal/retry"
	"github.com/mohammad-safakhou/researchbot/models"
	searchmodels "github.com/mohammad-safakhou/researchbot/tools/web_search/models"
)

var errUpstream = errors.New("upstream unavailable")

func testOptions() []Option {
	return []Option{Quiet(), WithSleep(retry.NoSleep)}
}

// stubLLM answers each stage from its own script, keyed by the system prompt.
type stubLLM struct {
	mu       sync.Mutex
	resolve  func(prompt string) (string, error)
	analyze  func(prompt string) (string, error)
	write    func(prompt string) (string, error)
	prompts  map[string][]string
	calls    map[string]int
	lastTemp map[string]float64
}

func newStubLLM() *stubLLM {
	return &stubLLM{prompts: map[string][]string{}, calls: map[string]int{}, lastTemp: map[string]float64{}}
}

func (s *stubLLM) Complete(ctx context.Context, model string, messages []Message, temperature float64, maxTokens int) (string, error) {
	system, user := messages[0].Content, messages[len(messages)-1].Content
	stage, fn := "write", s.write
	switch {
	case strings.Contains(system, "query analyzer"):
		stage, fn = "resolve", s.resolve
	case strings.Contains(system, "JSON-only"):
		stage, fn = "analyze", s.analyze
	}
	s.mu.Lock()
	s.calls[stage]++
	s.prompts[stage] = append(s.prompts[stage], user)
	s.lastTemp[stage] = temperature
	s.mu.Unlock()
	if fn == nil {
		return "", errUpstream
	}
	return fn(user)
}

func (s *stubLLM) count(stage string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[stage]
}

func (s *stubLLM) lastPrompt(stage string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.prompts[stage]
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

func reply(text string) func(string) (string, error) {
	return func(string) (string, error) { return text, nil }
}

// stubSearcher returns canned results per query, or errs for queries in fail.
type stubSearcher struct {
	mu      sync.Mutex
	results map[string][]searchmodels.Result
	fail    map[string]bool
	queries []string
	depths  []searchmodels.Depth
}

func (s *stubSearcher) Search(ctx context.Context, query string, depth searchmodels.Depth, maxResults int) ([]searchmodels.Result, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.depths = append(s.depths, depth)
	s.mu.Unlock()
	if s.fail[query] {
		return nil, errUpstream
	}
	res := s.results[query]
	if len(res) > maxResults {
		res = res[:maxResults]
	}
	return res, nil
}

type page struct {
	status int
	body   string
	err    error
}

// stubFetcher serves pages by URL.
type stubFetcher struct {
	mu      sync.Mutex
	pages   map[string]page
	fetched []string
	headers map[string]string
}

func (s *stubFetcher) Get(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (int, string, error) {
	s.mu.Lock()
	s.fetched = append(s.fetched, url)
	s.headers = headers
	s.mu.Unlock()
	p, ok := s.pages[url]
	if !ok {
		return 404, "", nil
	}
	return p.status, p.body, p.err
}

func (s *stubFetcher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fetched)
}

// memoryDocs records entries and previews them as plain lines.
type memoryDocs struct {
	mu      sync.Mutex
	entries []DocumentEntry
}

func (d *memoryDocs) Record(ctx context.Context, e DocumentEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, e)
	return nil
}

func (d *memoryDocs) Preview(ctx context.Context, sessionID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var lines []string
	for _, e := range d.entries {
		if e.SessionID == sessionID {
			lines = append(lines, e.Query)
		}
	}
	if len(lines) == 0 {
		return "", models.ErrNoDocument
	}
	return strings.Join(lines, "\n"), nil
}

func testConfig() *config.Config {
	return &config.Config{
		LLM:    config.LLMConfig{Provider: "groq", Model: "test-model"},
		Search: config.SearchConfig{Provider: "stub", Depth: "advanced", MaxResults: 10},
		Fetch:  config.FetchConfig{Mode: "http", Timeout: time.Second, MaxWords: 3000, Concurrency: 2},
		Pipeline: config.PipelineConfig{
			Normal:        config.ModeLimits{SubQueries: 3, Sources: 5},
			Deep:          config.ModeLimits{SubQueries: 5, Sources: 8},
			ContextWindow: 10,
		},
	}
}

func score(v float64) *float64 { return &v }

func longText(seed string) string {
	return strings.Repeat(seed+" ", 200/len(seed)+1)
}
