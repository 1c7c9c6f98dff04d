// Package worker runs background maintenance for the research service.
package worker

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/researchbot/config"
)

const (
	lockKey = "researchbot:janitor:lock"
	lockTTL = 2 * time.Minute
)

// releaseScript deletes the lock only while it still carries our token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Pruner deletes documents idle for longer than retention.
type Pruner interface {
	Prune(ctx context.Context, retention time.Duration) (int, error)
}

// SessionSweeper drops expired conversation sessions.
type SessionSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Locker is the subset of a redis client used to keep one janitor sweeping
// at a time across replicas.
type Locker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type Option func(*Janitor)

func WithLogger(l *log.Logger) Option { return func(j *Janitor) { j.logger = l } }

func WithLocker(l Locker) Option { return func(j *Janitor) { j.lock = l } }

// WithSessions also sweeps expired sessions on every run.
func WithSessions(s SessionSweeper) Option { return func(j *Janitor) { j.sessions = s } }

func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) Option {
	return func(j *Janitor) {
		j.now = now
		j.after = after
	}
}

func Quiet() Option { return WithLogger(log.New(io.Discard, "", 0)) }

// Janitor prunes stale research documents and expired sessions on a cron
// schedule.
type Janitor struct {
	pruner    Pruner
	sessions  SessionSweeper
	expr      *cronexpr.Expression
	retention time.Duration
	lock      Locker
	logger    *log.Logger
	now       func() time.Time
	after     func(time.Duration) <-chan time.Time
}

// NewJanitor parses cfg.CleanupCron. An empty expression yields a disabled
// janitor whose Run returns immediately.
func NewJanitor(p Pruner, cfg config.DocumentsConfig, opts ...Option) (*Janitor, error) {
	j := &Janitor{pruner: p, retention: cfg.Retention, now: time.Now, after: time.After}
	if cfg.CleanupCron != "" {
		expr, err := cronexpr.Parse(cfg.CleanupCron)
		if err != nil {
			return nil, fmt.Errorf("parse cleanup cron %q: %w", cfg.CleanupCron, err)
		}
		j.expr = expr
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.logger == nil {
		j.logger = log.New(log.Writer(), "[JANITOR] ", log.LstdFlags)
	}
	return j, nil
}

func (j *Janitor) Enabled() bool {
	return j.expr != nil && (j.retention > 0 || j.sessions != nil)
}

// Run sweeps at every scheduled time until ctx is done.
func (j *Janitor) Run(ctx context.Context) error {
	if !j.Enabled() {
		return nil
	}
	for {
		next := j.expr.Next(j.now())
		if next.IsZero() {
			j.logger.Printf("cleanup schedule has no future runs")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-j.after(next.Sub(j.now())):
		}
		if _, err := j.Sweep(ctx); err != nil {
			j.logger.Printf("sweep failed: %v", err)
		}
	}
}

// Sweep prunes once. It reports 0 without pruning when another replica
// holds the lock.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	if j.lock != nil {
		token := uuid.NewString()
		ok, err := j.lock.SetNX(ctx, lockKey, token, lockTTL).Result()
		if err != nil {
			return 0, fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return 0, nil
		}
		defer func() {
			rctx := context.WithoutCancel(ctx)
			if err := j.lock.Eval(rctx, releaseScript, []string{lockKey}, token).Err(); err != nil {
				j.logger.Printf("release lock: %v", err)
			}
		}()
	}
	if j.sessions != nil {
		n, err := j.sessions.Sweep(ctx)
		if err != nil {
			j.logger.Printf("session sweep failed: %v", err)
		} else if n > 0 {
			j.logger.Printf("evicted %d expired sessions", n)
		}
	}
	if j.retention <= 0 {
		return 0, nil
	}
	n, err := j.pruner.Prune(ctx, j.retention)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.logger.Printf("pruned %d documents idle for more than %s", n, j.retention)
	}
	return n, nil
}
