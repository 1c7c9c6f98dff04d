package provider

import (
	"context"
	"log"
	"time"

	"github.com/mohammad-safakhou/researchbot/config"
	"github.com/sony/gobreaker/v2"
)

type breakerGenerator struct {
	next Generator
	cb   *gobreaker.CircuitBreaker[string]
}

// WithBreaker wraps gen in a circuit breaker that opens after
// cfg.FailureThreshold consecutive failures and probes again after
// cfg.OpenTimeout. While open, calls fail fast with gobreaker.ErrOpenState,
// which the pipeline's retry policies treat like any other transport error.
func WithBreaker(gen Generator, cfg config.BreakerConfig) Generator {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	logger := log.New(log.Writer(), "[LLM] ", log.LstdFlags)
	settings := gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Printf("circuit %s: %s -> %s", name, from, to)
		},
	}
	return &breakerGenerator{next: gen, cb: gobreaker.NewCircuitBreaker[string](settings)}
}

func (b *breakerGenerator) Complete(ctx context.Context, model string, messages []Message, temperature float64, maxTokens int) (string, error) {
	return b.cb.Execute(func() (string, error) {
		return b.next.Complete(ctx, model, messages, temperature, maxTokens)
	})
}
