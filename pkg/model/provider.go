package model

import (
	"context"
	"fmt"

	"github.com/harun/loom/internal/config"
)

// Provider is the contract every model backend implements.
type Provider interface {
	// Execute makes one model call and returns the full response.
	Execute(ctx context.Context, req Request) (*Response, error)

	// ExecuteStreaming makes one model call, invoking onDelta for every
	// text fragment as it arrives, and returns the assembled response.
	ExecuteStreaming(ctx context.Context, req Request, onDelta func(text string)) (*Response, error)

	// Moderate classifies a prompt before it reaches a model.
	Moderate(ctx context.Context, prompt string, modelName string) (*ModerationResult, error)

	// Name returns the provider name.
	Name() string
}

// NewProvider creates a provider backend by name.
func NewProvider(provider, apiKey string) (Provider, error) {
	switch provider {
	case "anthropic":
		return NewAnthropicProvider(apiKey), nil
	case "openai":
		return NewOpenAIProvider(apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// FromConfig creates the highest-priority configured provider. Lower
// Priority values win.
func FromConfig(profiles []config.ProviderConfig) (Provider, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	best := profiles[0]
	for _, p := range profiles[1:] {
		if p.Priority < best.Priority {
			best = p
		}
	}
	return NewProvider(best.Provider, best.APIKey)
}
