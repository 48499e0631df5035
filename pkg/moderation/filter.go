// Package moderation screens prompts and responses before and after model
// calls. A local keyword/pattern filter runs first; an optional provider
// check escalates anything the local pass could not decide.
package moderation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/harun/loom/internal/config"
	"github.com/harun/loom/pkg/model"
	"github.com/rs/zerolog"
)

// ContentFilter checks content against configured keywords and patterns.
type ContentFilter struct {
	enabled  bool
	keywords []string
	patterns []*regexp.Regexp
}

// New creates a new content filter.
func New(cfg config.ModerationConfig) (*ContentFilter, error) {
	patterns := make([]*regexp.Regexp, 0, len(cfg.BlockedPatterns))
	for _, p := range cfg.BlockedPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", p, err)
		}
		patterns = append(patterns, re)
	}

	return &ContentFilter{
		enabled:  cfg.Enabled,
		keywords: cfg.BlockedKeywords,
		patterns: patterns,
	}, nil
}

// CheckPrompt returns an error if the prompt contains blocked content.
func (f *ContentFilter) CheckPrompt(prompt string) error {
	if !f.enabled {
		return nil
	}

	normalized := strings.ToLower(prompt)
	for _, kw := range f.keywords {
		if strings.Contains(normalized, strings.ToLower(kw)) {
			return fmt.Errorf("prompt contains blocked keyword: %s", kw)
		}
	}
	for i, re := range f.patterns {
		if re.MatchString(prompt) {
			return fmt.Errorf("prompt matches blocked pattern #%d", i+1)
		}
	}
	return nil
}

// CheckResponse returns an error if a model response contains blocked
// content. Same rules as the prompt check.
func (f *ContentFilter) CheckResponse(response string) error {
	if !f.enabled {
		return nil
	}
	return f.CheckPrompt(response)
}

// Checker combines the local filter with an optional provider-side
// moderation call.
type Checker struct {
	filter   *ContentFilter
	provider model.Provider
	model    string
	logger   zerolog.Logger
}

// NewChecker creates a checker. provider may be nil, leaving only the local
// filter active.
func NewChecker(filter *ContentFilter, provider model.Provider, modelName string, logger zerolog.Logger) *Checker {
	return &Checker{
		filter:   filter,
		provider: provider,
		model:    modelName,
		logger:   logger,
	}
}

// Check screens a prompt. The local filter decides first; if it passes and
// a provider is configured, the provider's verdict decides.
func (c *Checker) Check(ctx context.Context, prompt string) error {
	if err := c.filter.CheckPrompt(prompt); err != nil {
		return err
	}
	if c.provider == nil {
		return nil
	}

	result, err := c.provider.Moderate(ctx, prompt, c.model)
	if err != nil {
		// Provider moderation is advisory. A transport failure must
		// not block an otherwise clean prompt.
		c.logger.Warn().Err(err).Str("provider", c.provider.Name()).Msg("provider moderation unavailable")
		return nil
	}
	if result.Flagged {
		c.logger.Info().
			Str("provider", result.Provider).
			Strs("categories", result.Categories).
			Msg("prompt flagged by provider moderation")
		return fmt.Errorf("prompt flagged by %s moderation", result.Provider)
	}
	return nil
}
