// Package stub answers every query with a single placeholder hit pointing at
// a plain web search. It is used when no search provider key is configured.
package stub

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/researchbot/tools/web_search/models"
	"github.com/mohammad-safakhou/researchbot/utils"
)

const placeholderScore = 0.5

type Search struct{}

func (Search) Search(ctx context.Context, query string, depth models.Depth, maxResults int) ([]models.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	score := placeholderScore
	return []models.Result{{
		URL:     "https://www.google.com/search?q=" + utils.UrlQuery(query),
		Title:   "Search results for: " + query,
		Content: fmt.Sprintf("Please configure Tavily API for better search results. Query: %s", query),
		Score:   &score,
	}}, nil
}
