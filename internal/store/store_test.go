package store

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/mohammad-safakhou/researchbot/models"
)

func TestGetDecodesTopics(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"created_at", "topics"}).
		AddRow(created, []byte(`[{"topic":"Tesla","query":"Tell me about Tesla","content":"EV maker","sources":[{"id":1,"title":"t","url":"https://a","snippet":"","relevance":8}]}]`))
	mock.ExpectQuery(`SELECT created_at, topics FROM research_documents WHERE session_id = \$1`).
		WithArgs("s1").
		WillReturnRows(rows)

	doc, err := st.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.SessionID != "s1" || !doc.CreatedAt.Equal(created) {
		t.Fatalf("unexpected document header %+v", doc)
	}
	if len(doc.Topics) != 1 || doc.Topics[0].Topic != "Tesla" || len(doc.Topics[0].Sources) != 1 {
		t.Fatalf("unexpected topics %+v", doc.Topics)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetMissingDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectQuery(`SELECT created_at, topics FROM research_documents`).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "topics"}))

	if _, err := st.Get(context.Background(), "nobody"); !errors.Is(err, models.ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument, got %v", err)
	}
}

func TestPutUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	created := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)
	doc := models.Document{
		SessionID: "s1",
		CreatedAt: created,
		Topics:    []models.Topic{{Topic: "Tesla", CreatedAt: created, UpdatedAt: updated}},
	}
	mock.ExpectExec(`INSERT INTO research_documents .* ON CONFLICT \(session_id\) DO UPDATE`).
		WithArgs("s1", created, updated, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.Put(context.Background(), doc); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
	if err := st.Put(context.Background(), models.Document{}); err == nil {
		t.Fatalf("expected error without session id")
	}
}

func TestPruneBefore(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	cutoff := time.Now().Add(-24 * time.Hour)
	mock.ExpectExec(`DELETE FROM research_documents WHERE updated_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := st.PruneBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("PruneBefore: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 pruned, got %d", n)
	}
	if _, err := st.PruneBefore(context.Background(), time.Time{}); err == nil {
		t.Fatal("expected error for zero cutoff")
	}
}
