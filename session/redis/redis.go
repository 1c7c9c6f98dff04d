package redis_session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/researchbot/models"
	"github.com/mohammad-safakhou/researchbot/session"
	"github.com/redis/go-redis/v9"
)

// Store keeps each session as a meta key plus a list of JSON-encoded turns.
// Both keys share the session ttl, refreshed on every append.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(addr, password string, db int, ttl time.Duration) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{client: rdb, ttl: ttl}
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func metaKey(id string) string  { return fmt.Sprintf("session:%s:meta", id) }
func turnsKey(id string) string { return fmt.Sprintf("session:%s:turns", id) }

func (store *Store) Ping(ctx context.Context) error { return store.client.Ping(ctx).Err() }

func (store *Store) Close() error { return store.client.Close() }

func (store *Store) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()
	meta, _ := json.Marshal(map[string]any{"created_at": time.Now().UTC()})
	if err := store.client.Set(ctx, metaKey(id), meta, store.ttl).Err(); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

func (store *Store) Exists(ctx context.Context, id string) (bool, error) {
	n, err := store.client.Exists(ctx, metaKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (store *Store) Append(ctx context.Context, id string, turn models.Turn) error {
	ok, err := store.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return session.ErrNotFound
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	b, err := json.Marshal(turn)
	if err != nil {
		return err
	}
	_, err = store.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, turnsKey(id), b)
		if store.ttl > 0 {
			p.Expire(ctx, turnsKey(id), store.ttl)
			p.Expire(ctx, metaKey(id), store.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (store *Store) Read(ctx context.Context, id string) ([]models.Turn, error) {
	ok, err := store.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, session.ErrNotFound
	}
	raw, err := store.client.LRange(ctx, turnsKey(id), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read turns: %w", err)
	}
	turns := make([]models.Turn, 0, len(raw))
	for _, r := range raw {
		var turn models.Turn
		if err := json.Unmarshal([]byte(r), &turn); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (store *Store) Clear(ctx context.Context, id string) error {
	ok, err := store.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return session.ErrNotFound
	}
	return store.client.Del(ctx, turnsKey(id)).Err()
}

func (store *Store) Delete(ctx context.Context, id string) error {
	return store.client.Del(ctx, metaKey(id), turnsKey(id)).Err()
}
