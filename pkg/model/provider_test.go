package model

import (
	"errors"
	"testing"

	"github.com/harun/loom/internal/config"
	"github.com/harun/loom/pkg/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func calculatorDefinition() tools.Definition {
	return tools.Definition{
		Name:        "calculator",
		Description: "Evaluates arithmetic expressions",
		Parameters: []tools.Parameter{
			{Name: "expression", Type: "string", Description: "expression to evaluate", Required: true},
		},
	}
}

func TestNewProvider(t *testing.T) {
	t.Run("anthropic", func(t *testing.T) {
		p, err := NewProvider("anthropic", "test-key")
		require.NoError(t, err)
		assert.Equal(t, "anthropic", p.Name())
	})

	t.Run("openai", func(t *testing.T) {
		p, err := NewProvider("openai", "test-key")
		require.NoError(t, err)
		assert.Equal(t, "openai", p.Name())
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := NewProvider("cohere", "test-key")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported provider")
	})
}

func TestFromConfigPicksHighestPriority(t *testing.T) {
	p, err := FromConfig([]config.ProviderConfig{
		{Provider: "openai", APIKey: "k1", Priority: 2},
		{Provider: "anthropic", APIKey: "k2", Priority: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())
}

func TestFromConfigRequiresProviders(t *testing.T) {
	_, err := FromConfig(nil)
	require.Error(t, err)
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.False(t, IsRetryableError(errors.New("invalid api key")))
	assert.True(t, IsRetryableError(errors.New("429 Too Many Requests")))
	assert.True(t, IsRetryableError(errors.New("rate limit exceeded")))
	assert.True(t, IsRetryableError(errors.New("read tcp: ECONNRESET")))
	assert.True(t, IsRetryableError(errors.New("upstream returned 503")))
}

func TestBuildAnthropicParams(t *testing.T) {
	req := Request{
		Model:        "claude-sonnet-4-20250514",
		SystemPrompt: "be terse",
		Temperature:  0.5,
		Messages: []Message{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
			{Role: "tool", Content: "42", ToolCallID: "call_1"},
		},
	}

	params := buildAnthropicParams(req)
	assert.Equal(t, "claude-sonnet-4-20250514", string(params.Model))
	assert.Equal(t, int64(DefaultMaxTokens), params.MaxTokens)
	require.Len(t, params.System, 1)
	assert.Equal(t, "be terse", params.System[0].Text)
	assert.Len(t, params.Messages, 3)
}

func TestBuildOpenAIParamsCarriesTools(t *testing.T) {
	req := Request{
		Model: "gpt-4o",
		Messages: []Message{
			{Role: "user", Content: "hi"},
		},
		Tools: []tools.Definition{calculatorDefinition()},
	}

	params, err := buildOpenAIParams(req)
	require.NoError(t, err)
	require.Len(t, params.Tools, 1)
	assert.Equal(t, "calculator", params.Tools[0].Function.Name)
	// System prompt absent, so messages are carried through untouched.
	assert.Len(t, params.Messages, 1)
}
