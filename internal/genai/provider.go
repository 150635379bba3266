// Package genai abstracts the chat generation backend. Exactly one provider
// is selected at startup; the orchestrator never branches on vendor.
package genai

import (
	"context"
	"fmt"
)

// Stream yields generated text deltas in order. Recv returns io.EOF when the
// model finishes cleanly; any other error means the stream died mid-answer.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Provider is a chat generation backend.
type Provider interface {
	// Name identifies the backend in logs.
	Name() string
	// StreamChat starts a streaming completion for one user message under a
	// system prompt.
	StreamChat(ctx context.Context, systemPrompt, userMessage string) (Stream, error)
	// Complete returns a full non-streaming completion, used for offline
	// work like FAQ suggestion where deltas have no audience.
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// Config selects and parameterizes a provider.
type Config struct {
	Provider         string
	Model            string
	OpenAIAPIKey     string
	AnthropicAPIKey  string
	OpenRouterAPIKey string
}

// New constructs the configured provider. Unknown provider names are a
// startup error, not a runtime fallback.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "openai", "":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.Model), nil
	case "openrouter":
		if cfg.OpenRouterAPIKey == "" {
			return nil, fmt.Errorf("openrouter provider requires an API key")
		}
		return NewOpenRouterProvider(cfg.OpenRouterAPIKey, cfg.Model), nil
	case "claude":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("claude provider requires an API key")
		}
		return NewClaudeProvider(cfg.AnthropicAPIKey, cfg.Model), nil
	}
	return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
}
