package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const defaultOllamaModel = "llama3.1"

// OllamaClient implements Transport for a local Ollama server via langchaingo.
type OllamaClient struct {
	llm       llms.Model
	maxTokens int
}

// NewOllama creates an Ollama transport. No API key is needed.
func NewOllama(cfg Config) (*OllamaClient, error) {
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}

	opts := []ollama.Option{
		ollama.WithModel(model),
		ollama.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}

	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama: create client: %w", err)
	}
	return &OllamaClient{llm: llm, maxTokens: cfg.MaxTokens}, nil
}

// Complete sends prompt as a single prompt completion.
func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	text, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, llms.WithMaxTokens(c.maxTokens))
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return textOrEmpty(text)
}
