// Package store persists research documents in Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/mohammad-safakhou/researchbot/models"
)

type Store struct {
	DB *sql.DB
}

var (
	metricsOnce    sync.Once
	savedCounter   otelmetric.Int64Counter
	loadedCounter  otelmetric.Int64Counter
	prunedCounter  otelmetric.Int64Counter
	metricsInitErr error
)

func initStoreMetrics() {
	meter := otel.Meter("store")
	var err error
	savedCounter, err = meter.Int64Counter("research_documents_saved_total")
	if err != nil {
		metricsInitErr = err
		return
	}
	loadedCounter, err = meter.Int64Counter("research_documents_loaded_total")
	if err != nil {
		metricsInitErr = err
		return
	}
	prunedCounter, err = meter.Int64Counter("research_documents_pruned_total")
	if err != nil {
		metricsInitErr = err
	}
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// Get loads the document of sessionID, or models.ErrNoDocument.
func (s *Store) Get(ctx context.Context, sessionID string) (models.Document, error) {
	var (
		doc    = models.Document{SessionID: sessionID}
		topics []byte
	)
	err := s.DB.QueryRowContext(ctx,
		`SELECT created_at, topics FROM research_documents WHERE session_id = $1`, sessionID,
	).Scan(&doc.CreatedAt, &topics)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Document{}, models.ErrNoDocument
	}
	if err != nil {
		return models.Document{}, err
	}
	if err := json.Unmarshal(topics, &doc.Topics); err != nil {
		return models.Document{}, fmt.Errorf("decode topics of %s: %w", sessionID, err)
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	metricsOnce.Do(initStoreMetrics)
	if metricsInitErr == nil && loadedCounter != nil {
		loadedCounter.Add(ctx, 1)
	}
	return doc, nil
}

// Put upserts doc. updated_at tracks the newest topic.
func (s *Store) Put(ctx context.Context, doc models.Document) error {
	if doc.SessionID == "" {
		return errors.New("session id is required")
	}
	topics := doc.Topics
	if topics == nil {
		topics = []models.Topic{}
	}
	payload, err := json.Marshal(topics)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO research_documents (session_id, created_at, updated_at, topics)
VALUES ($1, $2, $3, $4)
ON CONFLICT (session_id) DO UPDATE
SET updated_at = EXCLUDED.updated_at, topics = EXCLUDED.topics`,
		doc.SessionID, doc.CreatedAt, doc.UpdatedAt(), payload,
	)
	if err != nil {
		return err
	}
	metricsOnce.Do(initStoreMetrics)
	if metricsInitErr == nil && savedCounter != nil {
		savedCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.Int("topics", len(topics))))
	}
	return nil
}

// PruneBefore deletes documents whose last update is older than cutoff.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if cutoff.IsZero() {
		return 0, errors.New("cutoff is required")
	}
	res, err := s.DB.ExecContext(ctx, `DELETE FROM research_documents WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	metricsOnce.Do(initStoreMetrics)
	if metricsInitErr == nil && prunedCounter != nil && n > 0 {
		prunedCounter.Add(ctx, n)
	}
	return int(n), nil
}
