package document

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve"

	"github.com/mohammad-safakhou/researchbot/internal/helpers"
)

// Hit is one topic matched by Search.
type Hit struct {
	Index   int     `json:"index"`
	Topic   string  `json:"topic"`
	Query   string  `json:"query"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

type indexedTopic struct {
	Topic   string `json:"topic"`
	Query   string `json:"query"`
	Content string `json:"content"`
}

// Search ranks the session's topics against q with a throwaway in-memory
// full-text index and returns at most k hits.
func (e *Exporter) Search(ctx context.Context, sessionID, q string, k int) ([]Hit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []Hit{}, nil
	}
	if k <= 0 {
		k = 5
	}
	doc, err := e.Document(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer index.Close()

	batch := index.NewBatch()
	for i, t := range doc.Topics {
		if err := batch.Index(strconv.Itoa(i), indexedTopic{
			Topic:   t.Topic,
			Query:   t.Query,
			Content: helpers.RemoveCitations(t.Content),
		}); err != nil {
			return nil, fmt.Errorf("index topic %d: %w", i, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("index topics: %w", err)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(q), k, 0, false)
	res, err := index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search topics: %w", err)
	}
	out := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		i, err := strconv.Atoi(h.ID)
		if err != nil || i < 0 || i >= len(doc.Topics) {
			continue
		}
		t := doc.Topics[i]
		out = append(out, Hit{
			Index:   i + 1,
			Topic:   t.Topic,
			Query:   t.Query,
			Snippet: helpers.Truncate(helpers.CleanText(helpers.RemoveCitations(t.Content)), 200, "..."),
			Score:   h.Score,
		})
	}
	return out, nil
}
