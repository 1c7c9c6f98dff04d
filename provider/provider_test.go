package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mohammad-safakhou/researchbot/config"
	"github.com/sony/gobreaker/v2"
)

func TestNewProviderRequiresKey(t *testing.T) {
	_, err := NewProvider(config.LLMConfig{Provider: "groq"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNewProviderRejectsUnknownBackend(t *testing.T) {
	if _, err := NewProvider(config.LLMConfig{Provider: "mystery", APIKey: "k"}); err == nil {
		t.Fatalf("expected error for unsupported provider")
	}
}

func TestNewProviderBuildsGroqClient(t *testing.T) {
	gen, err := NewProvider(config.LLMConfig{Provider: "groq", APIKey: "k", Breaker: config.BreakerConfig{Enabled: true}})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if _, ok := gen.(*breakerGenerator); !ok {
		t.Fatalf("expected breaker-wrapped generator, got %T", gen)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	failing := GeneratorFunc(func(ctx context.Context, model string, messages []Message, temperature float64, maxTokens int) (string, error) {
		calls++
		return "", errors.New("upstream down")
	})
	gen := WithBreaker(failing, config.BreakerConfig{FailureThreshold: 2, OpenTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		if _, err := gen.Complete(context.Background(), "m", nil, 0, 0); err == nil {
			t.Fatalf("expected failure on call %d", i)
		}
	}
	_, err := gen.Complete(context.Background(), "m", nil, 0, 0)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected the open breaker to short-circuit, upstream saw %d calls", calls)
	}
}
