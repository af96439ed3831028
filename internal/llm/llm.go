// Package llm provides the generative-language capability used for NL→SQL
// translation and result summarization. The pipeline treats every provider
// failure as one opaque kind regardless of the underlying cause.
package llm

import (
	"context"
	"fmt"

	"github.com/sqlbridge/sqlbridge/internal/config"
)

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ServiceError wraps any provider failure (network, auth, quota, decode).
type ServiceError struct {
	Provider string
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("generation service %s: %v", e.Provider, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// NewFromConfig builds the configured provider. Only providers with an API
// key are usable; an empty key is a configuration error, not a silent no-op.
func NewFromConfig(cfg config.AIConfig) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("generative service API key is required (provider %q)", cfg.Provider)
	}
	switch cfg.Provider {
	case "", "gemini":
		return NewGeminiGenerator(GeminiConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}), nil
	case "openai":
		return NewOpenAIGenerator(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown generative provider %q", cfg.Provider)
	}
}
