// Package llm provides the completion transports used to reach remote models.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptyResponse is returned when the provider answered but the response
// carries no text.
var ErrEmptyResponse = errors.New("model response has no text")

// Transport sends a single prompt to a model and returns the reply text.
type Transport interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Provider names a supported model backend.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
)

// Config selects and configures a transport.
type Config struct {
	Provider  Provider
	Model     string
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	MaxTokens int
}

// New creates the transport for cfg.Provider.
func New(ctx context.Context, cfg Config) (Transport, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}

	switch Provider(strings.ToLower(string(cfg.Provider))) {
	case ProviderGemini, "":
		return NewGemini(ctx, cfg)
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	case ProviderAnthropic:
		return NewAnthropic(cfg)
	case ProviderOllama:
		return NewOllama(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func textOrEmpty(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
