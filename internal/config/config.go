package config

// Config represents the main Loom configuration
type Config struct {
	// Engine execution limits and defaults
	Engine EngineConfig `json:"engine" mapstructure:"engine"`

	// Model provider profiles
	Providers []ProviderConfig `json:"providers" mapstructure:"providers"`

	// Moderation
	Moderation ModerationConfig `json:"moderation" mapstructure:"moderation"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Run-event recorder
	Trace TraceConfig `json:"trace" mapstructure:"trace"`

	// OpenTelemetry spans
	Telemetry TelemetryConfig `json:"telemetry" mapstructure:"telemetry"`

	// Run-event websocket stream
	EventStream EventStreamConfig `json:"event_stream" mapstructure:"event_stream"`
}

// EngineConfig holds graph engine defaults
type EngineConfig struct {
	MaxIterations     int    `json:"max_iterations" mapstructure:"max_iterations"`
	DefaultModel      string `json:"default_model" mapstructure:"default_model"`
	FanOutConcurrency int    `json:"fanout_concurrency" mapstructure:"fanout_concurrency"`
}

// ProviderConfig holds credentials for one model provider
type ProviderConfig struct {
	Provider string `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Priority int    `json:"priority" mapstructure:"priority"`
}

// ModerationConfig holds content filter configuration
type ModerationConfig struct {
	Enabled         bool     `json:"enabled" mapstructure:"enabled"`
	BlockedKeywords []string `json:"blocked_keywords" mapstructure:"blocked_keywords"`
	BlockedPatterns []string `json:"blocked_patterns" mapstructure:"blocked_patterns"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level          string   `json:"level" mapstructure:"level"`
	File           string   `json:"file" mapstructure:"file"`
	Console        bool     `json:"console" mapstructure:"console"`
	Pretty         bool     `json:"pretty" mapstructure:"pretty"`
	Redaction      bool     `json:"redaction" mapstructure:"redaction"`
	RedactPatterns []string `json:"redact_patterns" mapstructure:"redact_patterns"`
}

// TraceConfig holds run-event recorder configuration
type TraceConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"` // sqlite database path
}

// TelemetryConfig holds OpenTelemetry tracer configuration
type TelemetryConfig struct {
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// EventStreamConfig holds websocket event stream configuration
type EventStreamConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxIterations:     50,
			FanOutConcurrency: 8,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "loom-engine",
			SampleRatio: 1,
		},
	}
}
