package inmemory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/researchbot/models"
	"github.com/mohammad-safakhou/researchbot/session"
)

type entry struct {
	turns     []models.Turn
	expiresAt time.Time
}

type Store struct {
	sessions map[string]*entry
	ttl      time.Duration
	now      func() time.Time
	mu       sync.Mutex
}

// NewInMemorySessionStore keeps sessions in process memory. A zero ttl keeps
// them forever; otherwise a session expires ttl after its last write.
func NewInMemorySessionStore(ttl time.Duration) *Store {
	return &Store{sessions: make(map[string]*entry), ttl: ttl, now: time.Now}
}

func (store *Store) Create(ctx context.Context) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	id := uuid.NewString()
	store.sessions[id] = &entry{expiresAt: store.deadline()}
	return id, nil
}

func (store *Store) Exists(ctx context.Context, id string) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	_, ok := store.live(id)
	return ok, nil
}

func (store *Store) Append(ctx context.Context, id string, turn models.Turn) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	e, ok := store.live(id)
	if !ok {
		return session.ErrNotFound
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = store.now().UTC()
	}
	turn.Sources = slices.Clone(turn.Sources)
	e.turns = append(e.turns, turn)
	e.expiresAt = store.deadline()
	return nil
}

func (store *Store) Read(ctx context.Context, id string) ([]models.Turn, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	e, ok := store.live(id)
	if !ok {
		return nil, session.ErrNotFound
	}
	return slices.Clone(e.turns), nil
}

func (store *Store) Clear(ctx context.Context, id string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	e, ok := store.live(id)
	if !ok {
		return session.ErrNotFound
	}
	e.turns = nil
	return nil
}

func (store *Store) Delete(ctx context.Context, id string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.sessions, id)
	return nil
}

// Sweep evicts every expired session and reports how many were removed.
func (store *Store) Sweep(ctx context.Context) (int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	now := store.now()
	n := 0
	for id, e := range store.sessions {
		if e.expired(now) {
			delete(store.sessions, id)
			n++
		}
	}
	return n, nil
}

// live returns the session under id, evicting it when expired. Callers hold mu.
func (store *Store) live(id string) (*entry, bool) {
	e, ok := store.sessions[id]
	if !ok {
		return nil, false
	}
	if e.expired(store.now()) {
		delete(store.sessions, id)
		return nil, false
	}
	return e, true
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

func (store *Store) deadline() time.Time {
	if store.ttl <= 0 {
		return time.Time{}
	}
	return store.now().Add(store.ttl)
}
