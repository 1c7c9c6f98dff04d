package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mohammad-safakhou/researchbot/internal/document"
	"github.com/mohammad-safakhou/researchbot/internal/store"
	"github.com/mohammad-safakhou/researchbot/models"
)

func TestDocumentsRoundTripPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		tcPostgres.WithDatabase("research"),
		tcPostgres.WithUsername("research"),
		tcPostgres.WithPassword("research"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp")),
	)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	defer func() { _ = pgC.Terminate(ctx) }()

	host, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://research:research@%s:%s/research?sslmode=disable", host, port.Port())

	if err := store.Migrate("file://../../migrations", dsn, "up", 0); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("NewWithDSN: %v", err)
	}
	defer st.Close()

	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	exp := document.NewExporter(st, document.Quiet(), document.WithClock(func() time.Time { return clock }))
	entry := models.DocumentEntry{
		SessionID: "pg-session",
		Query:     "Tell me about Tesla",
		Answer:    "**Overview**\nTesla builds electric cars.",
		Sources:   []models.Source{{ID: 1, Title: "Tesla", URL: "https://tesla.com"}},
	}
	if err := exp.Record(ctx, entry); err != nil {
		t.Fatalf("Record: %v", err)
	}
	html, err := exp.Preview(ctx, "pg-session")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if html == "" {
		t.Fatalf("empty preview")
	}

	clock = clock.Add(72 * time.Hour)
	n, err := exp.Prune(ctx, 24*time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("Prune: n=%d err=%v", n, err)
	}
	if _, err := st.Get(ctx, "pg-session"); !errors.Is(err, models.ErrNoDocument) {
		t.Fatalf("expected pruned document to be gone, got %v", err)
	}
}
