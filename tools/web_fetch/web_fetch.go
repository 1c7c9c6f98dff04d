package web_fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/researchbot/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/researchbot/tools/web_fetch/httpfetch"
)

const DefaultTimeout = 10 * time.Second

// PageFetcher retrieves the raw HTML of a page. Implementations honour the
// per-call timeout and never follow it with extra waiting.
type PageFetcher interface {
	Get(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (int, string, error)
}

// BrowserHeaders mimic a desktop Chrome request. Accept-Encoding is left to
// the transport so compressed bodies are decoded transparently.
var BrowserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

type FetcherType string

const (
	HTTPFetcherType     FetcherType = "http"
	ChromedpFetcherType FetcherType = "chromedp"
)

var ErrUnsupportedFetcher = errors.New("unsupported fetcher type")

func NewPageFetcher(fetcherType FetcherType) (PageFetcher, error) {
	switch fetcherType {
	case HTTPFetcherType, "":
		return httpfetch.New(), nil
	case ChromedpFetcherType:
		return &chromedp.Fetch{UserAgent: BrowserHeaders["User-Agent"]}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFetcher, fetcherType)
	}
}
