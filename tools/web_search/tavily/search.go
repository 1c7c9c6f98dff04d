// Package tavily queries the Tavily search API.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/researchbot/internal/retry"
	"github.com/mohammad-safakhou/researchbot/tools/web_search/models"
)

const DefaultEndpoint = "https://api.tavily.com/search"

// ErrRateLimited is returned when the API keeps answering 429.
var ErrRateLimited = errors.New("tavily: rate limited")

type Search struct {
	ApiKey   string
	Endpoint string
	Client   *http.Client
	// Backoff is used for 429 responses only.
	Backoff retry.Policy
}

func New(apiKey string, client *http.Client) *Search {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Search{
		ApiKey:   apiKey,
		Endpoint: DefaultEndpoint,
		Client:   client,
		Backoff:  retry.Fixed(3, 2*time.Second),
	}
}

type request struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth"`
	MaxResults        int    `json:"max_results"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
	IncludeImages     bool   `json:"include_images"`
}

type response struct {
	Results []struct {
		Title   string   `json:"title"`
		URL     string   `json:"url"`
		Content string   `json:"content"`
		Score   *float64 `json:"score"`
	} `json:"results"`
}

func (s *Search) Search(ctx context.Context, query string, depth models.Depth, maxResults int) ([]models.Result, error) {
	if depth == "" {
		depth = models.DepthAdvanced
	}
	body, err := json.Marshal(request{
		APIKey:      s.ApiKey,
		Query:       query,
		SearchDepth: string(depth),
		MaxResults:  maxResults,
	})
	if err != nil {
		return nil, err
	}

	return retry.Run(ctx, s.Backoff, func(ctx context.Context, attempt int) ([]models.Result, error) {
		out, err := s.do(ctx, body, maxResults)
		if err != nil && !errors.Is(err, ErrRateLimited) {
			// only 429s are worth another attempt
			return nil, retry.Permanent(err)
		}
		return out, err
	})
}

func (s *Search) do(ctx context.Context, body []byte, maxResults int) ([]models.Result, error) {
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.ApiKey)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tavily: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var raw response
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("tavily: decode: %w", err)
	}
	out := make([]models.Result, 0, len(raw.Results))
	for i, r := range raw.Results {
		if maxResults > 0 && i >= maxResults {
			break
		}
		out = append(out, models.Result{URL: r.URL, Title: r.Title, Content: r.Content, Score: r.Score})
	}
	return out, nil
}
