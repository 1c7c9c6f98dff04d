package serper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mohammad-safakhou/researchbot/tools/web_search/models"
	"github.com/mohammad-safakhou/researchbot/utils"
)

const DefaultEndpoint = "https://google.serper.dev/search"

type Search struct {
	ApiKey   string
	Endpoint string
	Client   *http.Client
}

// Search queries serper.dev. Organic hits carry no score, so the position
// is turned into a descending hint in (0,1].
func (s Search) Search(ctx context.Context, q string, depth models.Depth, k int) ([]models.Result, error) {
	// https://serper.dev/ docs
	payload := map[string]any{"q": q, "num": k}
	body, _ := json.Marshal(payload)

	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.ApiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper: status %d", resp.StatusCode)
	}
	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	var out []models.Result
	items, _ := raw["organic"].([]any)
	for i, it := range items {
		if k > 0 && i >= k {
			break
		}
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		score := 1 - float64(i)/float64(len(items)+1)
		out = append(out, models.Result{
			Title: utils.Str(m["title"]), URL: utils.Str(m["link"]), Content: utils.Str(m["snippet"]), Score: &score,
		})
	}
	return out, nil
}

func (s Search) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}
