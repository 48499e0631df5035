package model

import (
	"strings"

	"github.com/harun/loom/pkg/tools"
)

// Message is one turn in a provider conversation.
type Message struct {
	Role       string       `json:"role"`
	Content    string       `json:"content"`
	ToolCalls  []tools.Call `json:"tool_calls,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
}

// Request contains the parameters for one provider call.
type Request struct {
	Model        string
	Messages     []Message
	Tools        []tools.Definition
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// Response is what a provider call resolves to.
type Response struct {
	Content   string
	ToolCalls []tools.Call
	Usage     *TokenUsage
}

// TokenUsage tracks token consumption for one call.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ModerationResult reports whether a prompt was flagged and why.
type ModerationResult struct {
	Flagged    bool     `json:"flagged"`
	Categories []string `json:"categories,omitempty"`
	Provider   string   `json:"provider"`
}

// DefaultMaxTokens is used when a request does not set its own budget.
const DefaultMaxTokens = 4096

// IsRetryableError reports whether a provider error is transient: network
// resets, rate limits and upstream 5xx responses.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"ECONNRESET", "ETIMEDOUT",
		"429", "rate limit",
		"500", "502", "503", "504",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
