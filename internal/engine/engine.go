package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/harun/loom/internal/config"
	"github.com/harun/loom/internal/logger"
	"github.com/harun/loom/internal/observability"
	"github.com/harun/loom/internal/tracing"
	"github.com/harun/loom/pkg/eventstream"
	"github.com/harun/loom/pkg/graph"
	"github.com/harun/loom/pkg/model"
	"github.com/harun/loom/pkg/moderation"
	"github.com/harun/loom/pkg/nodes"
	"github.com/harun/loom/pkg/scheduler"
	"github.com/harun/loom/pkg/tools"
	"github.com/harun/loom/pkg/trace"
)

// Engine wires the configured collaborators around the graph runtime:
// model provider, moderation, tool environment, run-event recorder,
// websocket event stream and the cron scheduler.
type Engine struct {
	cfg    *config.Config
	logger *logger.Logger

	provider    model.Provider
	registry    *tools.Registry
	environment *tools.LocalEnvironment
	recorder    *trace.Recorder
	stream      *eventstream.Server
	scheduler   *scheduler.Service
	watcher     *config.Watcher

	mu      sync.RWMutex
	checker *moderation.Checker

	tracingEnabled bool
}

// New assembles an engine from a validated configuration.
func New(cfg *config.Config, log *logger.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}

	observability.EnsureRegistered()

	e := &Engine{cfg: cfg, logger: log}

	if err := tracing.Init(tracing.Options{
		ServiceName: cfg.Telemetry.ServiceName,
		SampleRatio: cfg.Telemetry.SampleRatio,
	}); err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
	} else {
		e.tracingEnabled = true
	}

	if len(cfg.Providers) > 0 {
		provider, err := model.FromConfig(cfg.Providers)
		if err != nil {
			return nil, fmt.Errorf("failed to create model provider: %w", err)
		}
		e.provider = provider
		log.Info().Str("provider", provider.Name()).Msg("Model provider initialized")
	}

	if err := e.applyModeration(cfg.Moderation); err != nil {
		return nil, fmt.Errorf("failed to create content filter: %w", err)
	}
	log.Info().Bool("enabled", cfg.Moderation.Enabled).Msg("Content moderation initialized")

	e.registry = tools.NewRegistry()
	environment, err := tools.NewLocalEnvironment(tools.LocalEnvironmentConfig{
		Registry: e.registry,
		Logger:   log.GetZerolog(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tool environment: %w", err)
	}
	e.environment = environment

	if cfg.Trace.Enabled {
		recorder, err := trace.NewRecorder(trace.Config{
			Path:   cfg.Trace.Path,
			Logger: log.GetZerolog(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create trace recorder: %w", err)
		}
		e.recorder = recorder
		log.Info().Str("path", cfg.Trace.Path).Msg("Trace recorder initialized")
	}

	if cfg.EventStream.Enabled {
		e.stream = eventstream.NewServer(eventstream.ServerConfig{
			Addr:   cfg.EventStream.Addr,
			Logger: log.GetZerolog(),
		})
		log.Info().Str("addr", cfg.EventStream.Addr).Msg("Event stream initialized")
	}

	e.scheduler = scheduler.NewService(log.GetZerolog())

	return e, nil
}

// NewFromFile loads the configuration at path, builds the logger it
// describes and assembles the engine. The config file is watched and
// moderation rules are re-applied when it changes on disk.
func NewFromFile(path string) (*Engine, error) {
	cfg, err := config.NewLoader(path).Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		Patterns:  cfg.Logging.RedactPatterns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	e, err := New(cfg, log)
	if err != nil {
		log.Close()
		return nil, err
	}

	watcher, err := config.NewWatcher(path, log.GetZerolog(), e.onConfigChange)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to watch config file, hot reload disabled")
	} else {
		e.watcher = watcher
	}

	return e, nil
}

func (e *Engine) onConfigChange(cfg *config.Config) {
	if err := e.applyModeration(cfg.Moderation); err != nil {
		e.logger.Error().Err(err).Msg("Failed to apply reloaded moderation config, keeping previous rules")
		return
	}
	e.mu.Lock()
	e.cfg.Moderation = cfg.Moderation
	e.cfg.Engine = cfg.Engine
	e.mu.Unlock()
	e.logger.Info().Msg("Configuration reloaded")
}

func (e *Engine) applyModeration(cfg config.ModerationConfig) error {
	filter, err := moderation.New(cfg)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.checker = moderation.NewChecker(filter, e.provider, e.cfg.Engine.DefaultModel, e.logger.GetZerolog())
	e.mu.Unlock()
	return nil
}

// Provider returns the configured model provider, or nil when the
// configuration names none.
func (e *Engine) Provider() model.Provider { return e.provider }

// Registry returns the tool registry shared by all runs.
func (e *Engine) Registry() *tools.Registry { return e.registry }

// Environment returns the local tool environment bound to the registry.
func (e *Engine) Environment() *tools.LocalEnvironment { return e.environment }

// Scheduler returns the cron scheduler.
func (e *Engine) Scheduler() *scheduler.Service { return e.scheduler }

// Recorder returns the run-event recorder, or nil when tracing to
// SQLite is disabled.
func (e *Engine) Recorder() *trace.Recorder { return e.recorder }

// EventStream returns the websocket server, or nil when disabled.
func (e *Engine) EventStream() *eventstream.Server { return e.stream }

// Checker returns the current moderation checker. Hot reload replaces
// it, so callers should not retain the value across runs.
func (e *Engine) Checker() *moderation.Checker {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.checker
}

// Hooks returns a fresh hook registry with the engine's interception
// consumers attached. Each run gets its own registry so per-run hooks
// never leak between runs.
func (e *Engine) Hooks() *graph.HookRegistry {
	hooks := graph.NewHookRegistry()
	if e.recorder != nil {
		e.recorder.Attach(hooks)
	}
	if e.stream != nil {
		e.stream.Broadcaster().Attach(hooks)
	}
	return hooks
}

// Options returns the graph options a run under this engine starts
// from. Caller-supplied options come last and win.
func (e *Engine) Options(extra ...graph.Option) []graph.Option {
	e.mu.RLock()
	maxIterations := e.cfg.Engine.MaxIterations
	e.mu.RUnlock()

	opts := []graph.Option{
		graph.WithLogger(e.logger.GetZerolog()),
		graph.WithHooks(e.Hooks()),
		graph.WithEnvironment(e.environment),
	}
	if maxIterations > 0 {
		opts = append(opts, graph.WithMaxIterations(maxIterations))
	}
	return append(opts, extra...)
}

// FanOutScheduler returns the branch scheduler the configuration asks
// for: a bounded pool when fanout_concurrency is set, otherwise the
// unbounded default.
func (e *Engine) FanOutScheduler() graph.Scheduler {
	e.mu.RLock()
	size := e.cfg.Engine.FanOutConcurrency
	e.mu.RUnlock()
	if size > 0 {
		return graph.NewPoolScheduler(size)
	}
	return graph.DefaultScheduler()
}

// ModelCallConfig returns a node configuration pre-bound to the
// engine's provider, default model, tool registry and moderation.
func (e *Engine) ModelCallConfig() nodes.ModelCallConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return nodes.ModelCallConfig{
		Provider: e.provider,
		Model:    e.cfg.Engine.DefaultModel,
		Registry: e.registry,
		Checker:  e.checker,
	}
}

// Run executes a graph with the engine's options applied.
func Run[I, O any](ctx context.Context, e *Engine, g *graph.Graph[I, O], in I, opts ...graph.Option) (O, error) {
	return graph.Run(ctx, g, in, e.Options(opts...)...)
}

// Schedule registers a recurring run of the graph under the engine's
// options. The schedule fires only after Start.
func Schedule[I, O any](e *Engine, name, spec string, g *graph.Graph[I, O], in I, opts ...graph.Option) error {
	return scheduler.ScheduleRun(e.scheduler, name, spec, g, in, e.Options(opts...)...)
}

// Start brings up the long-running services: the websocket event
// stream and the cron scheduler.
func (e *Engine) Start() {
	if e.stream != nil {
		go func() {
			if err := e.stream.Start(); err != nil {
				e.logger.Error().Err(err).Msg("Event stream server stopped")
			}
		}()
	}
	e.scheduler.Start()
	e.logger.Info().Msg("Engine started")
}

// Shutdown stops the services in reverse start order and releases the
// recorder, watcher and tracer. The first error wins but shutdown
// always runs to completion.
func (e *Engine) Shutdown(ctx context.Context) error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(e.scheduler.Stop(ctx))
	if e.stream != nil {
		record(e.stream.Shutdown(ctx))
	}
	if e.recorder != nil {
		record(e.recorder.Close())
	}
	if e.watcher != nil {
		record(e.watcher.Close())
	}
	if e.tracingEnabled {
		record(tracing.Shutdown(ctx))
		e.tracingEnabled = false
	}

	e.logger.Info().Msg("Engine stopped")
	return firstErr
}
