package config

import (
	"fmt"
	"regexp"
)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validProviders = map[string]bool{
	"anthropic": true,
	"openai":    true,
}

// Validate checks a configuration for invalid values
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if cfg.Engine.MaxIterations <= 0 {
		return fmt.Errorf("engine.max_iterations must be positive, got %d", cfg.Engine.MaxIterations)
	}
	if cfg.Engine.FanOutConcurrency < 0 {
		return fmt.Errorf("engine.fanout_concurrency cannot be negative, got %d", cfg.Engine.FanOutConcurrency)
	}

	for i, p := range cfg.Providers {
		if !validProviders[p.Provider] {
			return fmt.Errorf("providers[%d]: unsupported provider %q", i, p.Provider)
		}
		if p.APIKey == "" {
			return fmt.Errorf("providers[%d]: api_key is required for %s", i, p.Provider)
		}
	}

	if cfg.Logging.Level != "" && !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of trace/debug/info/warn/error, got %q", cfg.Logging.Level)
	}

	for i, pattern := range cfg.Moderation.BlockedPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("moderation.blocked_patterns[%d]: %w", i, err)
		}
	}

	for i, pattern := range cfg.Logging.RedactPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("logging.redact_patterns[%d]: %w", i, err)
		}
	}

	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0, 1], got %g", cfg.Telemetry.SampleRatio)
	}

	if cfg.Trace.Enabled && cfg.Trace.Path == "" {
		return fmt.Errorf("trace.path is required when trace recording is enabled")
	}

	if cfg.EventStream.Enabled && cfg.EventStream.Addr == "" {
		return fmt.Errorf("event_stream.addr is required when the event stream is enabled")
	}

	return nil
}
