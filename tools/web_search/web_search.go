package web_search

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mohammad-safakhou/researchbot/config"
	"github.com/mohammad-safakhou/researchbot/tools/web_search/brave"
	"github.com/mohammad-safakhou/researchbot/tools/web_search/models"
	"github.com/mohammad-safakhou/researchbot/tools/web_search/serper"
	"github.com/mohammad-safakhou/researchbot/tools/web_search/stub"
	"github.com/mohammad-safakhou/researchbot/tools/web_search/tavily"
)

// WebSearcher runs one web search. Implementations return at most maxResults hits.
type WebSearcher interface {
	Search(ctx context.Context, query string, depth models.Depth, maxResults int) ([]models.Result, error)
}

type Provider string

const (
	TavilyProvider Provider = "tavily"
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
	StubProvider   Provider = "stub"
)

var ErrUnsupportedProvider = errors.New("unsupported search provider")

// NewWebSearcher builds the searcher selected by cfg. cfg is expected to be
// normalized, so a provider without a key has already become the stub.
func NewWebSearcher(cfg config.SearchConfig) (WebSearcher, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	switch Provider(cfg.Provider) {
	case TavilyProvider:
		return tavily.New(cfg.TavilyAPIKey, client), nil
	case SerperProvider:
		return serper.Search{ApiKey: cfg.SerperAPIKey, Client: client}, nil
	case BraveProvider:
		return brave.Search{ApiKey: cfg.BraveAPIKey, Client: client}, nil
	case StubProvider:
		return stub.Search{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}
