package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohammad-safakhou/researchbot/config"
	openai_provider "github.com/mohammad-safakhou/researchbot/provider/openai"
)

// Client names a supported completion backend
type Client string

const (
	OpenAI Client = "openai"
	Groq   Client = "groq"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// Message is one chat message sent to a Generator
type Message = openai_provider.Message

// Generator is the text completion capability used by every pipeline stage.
type Generator interface {
	Complete(ctx context.Context, model string, messages []Message, temperature float64, maxTokens int) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, model string, messages []Message, temperature float64, maxTokens int) (string, error)

func (f GeneratorFunc) Complete(ctx context.Context, model string, messages []Message, temperature float64, maxTokens int) (string, error) {
	return f(ctx, model, messages, temperature, maxTokens)
}

// ErrNotConfigured is returned when the selected backend has no API key
var ErrNotConfigured = errors.New("llm provider not configured")

// NewProvider builds the configured Generator, wrapped in a circuit breaker
// when one is enabled.
func NewProvider(cfg config.LLMConfig) (Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: llm.api_key is empty", ErrNotConfigured)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	var gen Generator
	switch Client(strings.ToLower(cfg.Provider)) {
	case OpenAI:
		gen = openai_provider.NewOpenAIClient(cfg.APIKey, cfg.BaseURL, timeout)
	case Groq:
		base := cfg.BaseURL
		if base == "" {
			base = groqBaseURL
		}
		gen = openai_provider.NewOpenAIClient(cfg.APIKey, base, timeout)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}

	if cfg.Breaker.Enabled {
		gen = WithBreaker(gen, cfg.Breaker)
	}
	return gen, nil
}
