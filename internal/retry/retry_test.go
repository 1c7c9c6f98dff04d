package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunSucceedsAfterFailures(t *testing.T) {
	var slept []time.Duration
	p := Fixed(3, 2*time.Second).WithSleep(func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})
	calls := 0
	out, err := Run(context.Background(), p, func(ctx context.Context, attempt int) (string, error) {
		calls++
		if attempt < 3 {
			return "", errors.New("boom")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "ok" || calls != 3 {
		t.Fatalf("expected ok after 3 calls, got %q after %d", out, calls)
	}
	if len(slept) != 2 || slept[0] != 2*time.Second {
		t.Fatalf("expected two 2s pauses, got %v", slept)
	}
}

func TestRunExhausted(t *testing.T) {
	cause := errors.New("bad json")
	p := Fixed(2, time.Second).WithSleep(NoSleep)
	_, err := Run(context.Background(), p, func(ctx context.Context, attempt int) (int, error) {
		return 0, cause
	})
	if !errors.Is(err, ErrExhausted) || !errors.Is(err, cause) {
		t.Fatalf("expected exhausted error wrapping cause, got %v", err)
	}
}

func TestDoFallback(t *testing.T) {
	p := Fixed(3, time.Second).WithSleep(NoSleep)
	retries := 0
	p.OnRetry = func(int, error) { retries++ }
	got := Do(context.Background(), p, func(ctx context.Context, attempt int) (int, error) {
		return 0, errors.New("down")
	}, func(err error) int { return 42 })
	if got != 42 {
		t.Fatalf("expected fallback value, got %d", got)
	}
	if retries != 2 {
		t.Fatalf("expected 2 retry callbacks, got %d", retries)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := Run(ctx, Fixed(5, time.Millisecond), func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, errors.New("fail")
	})
	if calls != 1 {
		t.Fatalf("expected a single attempt before cancellation, got %d", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in error chain, got %v", err)
	}
}

func TestZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_, _ = Run(context.Background(), Policy{}, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, errors.New("x")
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestPermanentErrorStopsRetrying(t *testing.T) {
	calls := 0
	base := errors.New("bad request")
	_, err := Run(context.Background(), Fixed(4, time.Second).WithSleep(NoSleep), func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, Permanent(base)
	})
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
	if !errors.Is(err, base) || !errors.Is(err, ErrExhausted) {
		t.Fatalf("unexpected error chain %v", err)
	}
}
