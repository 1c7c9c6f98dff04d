package core

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mohammad-safakhou/researchbot/config"
	"github.com/mohammad-safakhou/researchbot/internal/agent/telemetry"
	"github.com/mohammad-safakhou/researchbot/internal/helpers"
	"github.com/mohammad-safakhou/researchbot/models"
	"github.com/mohammad-safakhou/researchbot/tools/web_fetch"
	"github.com/mohammad-safakhou/researchbot/tools/web_fetch/extract"
	searchmodels "github.com/mohammad-safakhou/researchbot/tools/web_search/models"
	"github.com/mohammad-safakhou/researchbot/tools/web_search/stub"
	"github.com/sourcegraph/conc/iter"
	"go.opentelemetry.io/otel/attribute"
)

// inlineContentChars is the length above which provider content is used as is.
const inlineContentChars = 100

// RetrieverConfig bounds searching and page fetching.
type RetrieverConfig struct {
	Depth        searchmodels.Depth
	MaxResults   int
	Pause        time.Duration
	FetchTimeout time.Duration
	MaxWords     int
	Concurrency  int
	MinDelay     time.Duration
	MaxDelay     time.Duration
}

// RetrieverConfigFrom maps the search and fetch sections of cfg.
func RetrieverConfigFrom(cfg *config.Config) RetrieverConfig {
	return RetrieverConfig{
		Depth:        searchmodels.Depth(cfg.Search.Depth),
		MaxResults:   cfg.Search.MaxResults,
		Pause:        cfg.Search.Pause,
		FetchTimeout: cfg.Fetch.Timeout,
		MaxWords:     cfg.Fetch.MaxWords,
		Concurrency:  cfg.Fetch.Concurrency,
		MinDelay:     cfg.Fetch.MinDelay,
		MaxDelay:     cfg.Fetch.MaxDelay,
	}
}

// Retriever runs sub-queries against the search provider and fills in page
// content where the provider did not supply it.
type Retriever struct {
	search Searcher
	fetch  PageFetcher
	cfg    RetrieverConfig
	opts   options
	randMu sync.Mutex
}

// NewRetriever uses the placeholder searcher when search is nil.
func NewRetriever(search Searcher, fetch PageFetcher, cfg RetrieverConfig, opts ...Option) *Retriever {
	if search == nil {
		search = stub.Search{}
	}
	if cfg.Depth == "" {
		cfg.Depth = searchmodels.DepthAdvanced
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = web_fetch.DefaultTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	return &Retriever{search: search, fetch: fetch, cfg: cfg, opts: buildOptions("[RETRIEVER] ", opts)}
}

// Search runs each sub-query in order and returns the hits deduplicated by
// URL, first occurrence winning. A failing sub-query is logged and skipped.
func (r *Retriever) Search(ctx context.Context, subQueries []string, maxResultsPerQuery int) []models.SearchHit {
	if maxResultsPerQuery <= 0 {
		maxResultsPerQuery = r.cfg.MaxResults
	}
	ctx, done := r.opts.telemetry.StartStage(ctx, telemetry.StageSearch,
		attribute.Int("search.sub_queries", len(subQueries)))

	var hits []models.SearchHit
	seen := make(map[string]bool)
	for i, q := range subQueries {
		if ctx.Err() != nil {
			break
		}
		results, err := r.search.Search(ctx, q, r.cfg.Depth, maxResultsPerQuery)
		if err != nil {
			r.opts.logger.Printf("search %q failed: %v", q, err)
		}
		for _, res := range results {
			if strings.TrimSpace(res.URL) == "" {
				continue
			}
			key := helpers.URLKey(res.URL)
			if seen[key] {
				continue
			}
			seen[key] = true
			hits = append(hits, models.SearchHit{
				URL:           res.URL,
				Title:         res.Title,
				Snippet:       res.Content,
				Content:       res.Content,
				Query:         q,
				RelevanceHint: res.Score,
			})
		}
		if i < len(subQueries)-1 {
			r.opts.pause(ctx, r.cfg.Pause)
		}
	}
	r.opts.logger.Printf("found %d unique hits for %d sub-queries", len(hits), len(subQueries))
	done(ctx.Err())
	return hits
}

// Fetch takes at most maxItems hits in order and guarantees each returned
// hit non-empty content. Hits are fetched with bounded concurrency; output
// order matches input order.
func (r *Retriever) Fetch(ctx context.Context, hits []models.SearchHit, maxItems int) []models.SearchHit {
	if maxItems >= 0 && len(hits) > maxItems {
		hits = hits[:maxItems]
	}
	ctx, done := r.opts.telemetry.StartStage(ctx, telemetry.StageFetch,
		attribute.Int("fetch.items", len(hits)))
	mapper := iter.Mapper[models.SearchHit, models.SearchHit]{MaxGoroutines: r.cfg.Concurrency}
	out := mapper.Map(hits, func(h *models.SearchHit) models.SearchHit {
		return r.fill(ctx, *h)
	})
	done(nil)
	return out
}

func (r *Retriever) fill(ctx context.Context, h models.SearchHit) models.SearchHit {
	if helpers.RuneLen(h.Content) > inlineContentChars {
		return h
	}
	if r.fetch == nil {
		return withSnippet(h)
	}
	text, err := r.scrape(ctx, h.URL)
	r.politeDelay(ctx)
	if err != nil {
		r.opts.logger.Printf("scrape %s: %v; using snippet", h.URL, err)
		return withSnippet(h)
	}
	if text == "" {
		return withSnippet(h)
	}
	h.Content = text
	return h
}

func (r *Retriever) scrape(ctx context.Context, url string) (string, error) {
	status, page, err := r.fetch.Get(ctx, url, web_fetch.BrowserHeaders, r.cfg.FetchTimeout)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("status %d", status)
	}
	return extract.MainText(page, url, r.cfg.MaxWords), nil
}

func (r *Retriever) politeDelay(ctx context.Context) {
	d := r.cfg.MinDelay
	if span := r.cfg.MaxDelay - r.cfg.MinDelay; span > 0 {
		r.randMu.Lock()
		d += time.Duration(r.opts.rand.Int63n(int64(span)))
		r.randMu.Unlock()
	}
	r.opts.pause(ctx, d)
}

// withSnippet falls back to the snippet, then the title, as content.
func withSnippet(h models.SearchHit) models.SearchHit {
	switch {
	case strings.TrimSpace(h.Snippet) != "":
		h.Content = h.Snippet
	case strings.TrimSpace(h.Content) != "":
	default:
		h.Content = h.Title
	}
	return h
}
