package redis_session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mohammad-safakhou/researchbot/models"
	"github.com/mohammad-safakhou/researchbot/session"
	redis_session "github.com/mohammad-safakhou/researchbot/session/redis"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	defer func() { _ = redisC.Terminate(ctx) }()

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}

	store := redis_session.NewRedisSessionStore(host+":"+port.Port(), "", 0, time.Hour)
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	id, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Append(ctx, id, models.Turn{Role: models.RoleUser, Content: "Tell me about Tesla"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append(ctx, id, models.Turn{
		Role:    models.RoleAssistant,
		Content: "Tesla builds cars.",
		Sources: []models.Source{{ID: 1, Title: "Tesla", URL: "https://tesla.example", Relevance: 8}},
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	turns, err := store.Read(ctx, id)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(turns) != 2 || turns[1].Role != models.RoleAssistant || turns[1].Sources[0].URL != "https://tesla.example" {
		t.Fatalf("unexpected turns %+v", turns)
	}

	if err := store.Clear(ctx, id); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if turns, _ := store.Read(ctx, id); len(turns) != 0 {
		t.Fatalf("expected empty history, got %d", len(turns))
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Read(ctx, id); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
