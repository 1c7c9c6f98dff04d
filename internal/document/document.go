// Package document keeps the per-session research document: a topic log
// built from answered turns, rendered as an HTML preview or a DOCX report.
package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/mohammad-safakhou/researchbot/models"
)

// ErrNoDocument is returned when a session has not produced any topic yet.
var ErrNoDocument = models.ErrNoDocument

const (
	topicWords          = 8
	similarityThreshold = 0.5
)

// Repository persists documents by session id. Get returns ErrNoDocument
// for an unknown session.
type Repository interface {
	Get(ctx context.Context, sessionID string) (models.Document, error)
	Put(ctx context.Context, doc models.Document) error
	// PruneBefore deletes documents last updated before cutoff.
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type Option func(*Exporter)

func WithLogger(l *log.Logger) Option { return func(e *Exporter) { e.logger = l } }

func WithClock(now func() time.Time) Option { return func(e *Exporter) { e.now = now } }

// Quiet discards logging.
func Quiet() Option { return WithLogger(log.New(io.Discard, "", 0)) }

// Exporter merges answered turns into documents and renders them.
type Exporter struct {
	repo   Repository
	logger *log.Logger
	now    func() time.Time
	mu     sync.Mutex
}

func NewExporter(repo Repository, opts ...Option) *Exporter {
	e := &Exporter{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.New(log.Writer(), "[DOCS] ", log.LstdFlags)
	}
	return e
}

// Record merges entry into its session's document. A similar existing topic
// is overwritten by a deep dive and left alone otherwise; a new topic is
// appended.
func (e *Exporter) Record(ctx context.Context, entry models.DocumentEntry) error {
	if entry.SessionID == "" {
		return fmt.Errorf("record document: empty session id")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UTC()
	doc, err := e.repo.Get(ctx, entry.SessionID)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoDocument):
		doc = models.Document{SessionID: entry.SessionID, CreatedAt: now, Topics: []models.Topic{}}
	default:
		return fmt.Errorf("load document: %w", err)
	}

	topic := TopicOf(entry.Query)
	sources := append([]models.Source{}, entry.Sources...)
	for i := range doc.Topics {
		if !SimilarTopics(doc.Topics[i].Topic, topic) {
			continue
		}
		if !entry.DeepDive {
			e.logger.Printf("session %s: topic %q already covered", short(entry.SessionID), doc.Topics[i].Topic)
			return nil
		}
		doc.Topics[i].Content = entry.Answer
		doc.Topics[i].Sources = sources
		doc.Topics[i].UpdatedAt = now
		e.logger.Printf("session %s: deep dive replaced topic %q", short(entry.SessionID), doc.Topics[i].Topic)
		return e.save(ctx, doc)
	}
	doc.Topics = append(doc.Topics, models.Topic{
		Topic:     topic,
		Query:     entry.Query,
		Content:   entry.Answer,
		Sources:   sources,
		CreatedAt: now,
		UpdatedAt: now,
	})
	e.logger.Printf("session %s: added topic %q", short(entry.SessionID), topic)
	return e.save(ctx, doc)
}

func (e *Exporter) save(ctx context.Context, doc models.Document) error {
	if err := e.repo.Put(ctx, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// Document returns the stored document of sessionID.
func (e *Exporter) Document(ctx context.Context, sessionID string) (models.Document, error) {
	doc, err := e.repo.Get(ctx, sessionID)
	if err != nil {
		return models.Document{}, err
	}
	if len(doc.Topics) == 0 {
		return models.Document{}, ErrNoDocument
	}
	return doc, nil
}

// Prune removes documents idle for longer than retention.
func (e *Exporter) Prune(ctx context.Context, retention time.Duration) (int, error) {
	return e.repo.PruneBefore(ctx, e.now().Add(-retention))
}

// TopicOf names a topic after the first eight words of its query.
func TopicOf(query string) string {
	words := strings.Fields(query)
	if len(words) <= topicWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:topicWords], " ") + "..."
}

// SimilarTopics compares lowercase word sets by Jaccard index.
func SimilarTopics(a, b string) bool {
	wa, wb := wordSet(a), wordSet(b)
	union := len(wa)
	inter := 0
	for w := range wb {
		if wa[w] {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return false
	}
	return float64(inter)/float64(union) >= similarityThreshold
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w] = true
	}
	return out
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
