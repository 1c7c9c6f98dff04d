// Package session defines the conversation store. A session is an ordered,
// append-only log of turns; concurrent writers to one session are serialized
// by the store, not by callers.
package session

import (
	"context"
	"errors"

	"github.com/mohammad-safakhou/researchbot/models"
)

var ErrNotFound = errors.New("session not found")

// Store persists conversation history.
type Store interface {
	Create(ctx context.Context) (string, error)
	Exists(ctx context.Context, id string) (bool, error)
	Append(ctx context.Context, id string, turn models.Turn) error
	Read(ctx context.Context, id string) ([]models.Turn, error)
	// Clear empties the history but keeps the session.
	Clear(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type StoreType string

const (
	InMemoryStore StoreType = "memory"
	RedisStore    StoreType = "redis"
)
