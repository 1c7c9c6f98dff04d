// Package retry runs an operation a bounded number of times with a fixed
// pause between attempts and degrades to a fallback on exhaustion.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted wraps the last attempt error once every attempt has failed.
var ErrExhausted = errors.New("retry: attempts exhausted")

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Run stops at the first
// permanent error and returns it unwrapped from the marker.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// SleepFunc pauses between attempts. It returns early with ctx.Err() when the
// context is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy bounds a retried operation.
type Policy struct {
	Attempts int
	Delay    time.Duration
	Sleep    SleepFunc
	// OnRetry is called after each failed attempt that will be retried.
	OnRetry func(attempt int, err error)
}

// Fixed returns a policy of n attempts with a constant pause.
func Fixed(n int, delay time.Duration) Policy {
	return Policy{Attempts: n, Delay: delay}
}

// WithSleep returns a copy of p using sleep between attempts.
func (p Policy) WithSleep(sleep SleepFunc) Policy {
	p.Sleep = sleep
	return p
}

// NoSleep is a SleepFunc that never waits. Useful in tests.
func NoSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run calls op until it succeeds or the policy is exhausted. The returned
// error wraps ErrExhausted and the last failure.
func Run[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = contextSleep
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := op(ctx, attempt)
		if err == nil {
			return out, nil
		}
		lastErr = err
		var perm permanentError
		if errors.As(err, &perm) {
			lastErr = perm.err
			break
		}
		if attempt == attempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if serr := sleep(ctx, p.Delay); serr != nil {
			lastErr = errors.Join(err, serr)
			break
		}
	}
	return zero, errors.Join(ErrExhausted, lastErr)
}

// Do is Run with a deterministic fallback. It never returns an error: on
// exhaustion the fallback receives the final error and its value is returned.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error), fallback func(err error) T) T {
	out, err := Run(ctx, p, op)
	if err != nil {
		return fallback(err)
	}
	return out
}
