package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Environment is the boundary through which the engine reaches external
// capabilities. The engine never executes tool logic itself.
type Environment interface {
	// ExecuteTools runs a batch of tool calls and returns one result per call.
	ExecuteTools(ctx context.Context, calls []Call) ([]Result, error)

	// ReportProblem surfaces an engine-side failure to the environment.
	ReportProblem(err error)
}

// Handler is the function signature for locally executed tools.
type Handler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// LocalEnvironment executes tools in-process against registered handlers.
type LocalEnvironment struct {
	registry *Registry
	handlers map[string]Handler
	timeout  time.Duration
	logger   zerolog.Logger
	mu       sync.RWMutex
}

// LocalEnvironmentConfig configures a LocalEnvironment.
type LocalEnvironmentConfig struct {
	Registry *Registry
	Timeout  time.Duration
	Logger   zerolog.Logger
}

// NewLocalEnvironment creates an environment backed by in-process handlers.
func NewLocalEnvironment(cfg LocalEnvironmentConfig) (*LocalEnvironment, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &LocalEnvironment{
		registry: cfg.Registry,
		handlers: make(map[string]Handler),
		timeout:  timeout,
		logger:   cfg.Logger.With().Str("component", "local-env").Logger(),
	}, nil
}

// Bind registers a definition together with its handler.
func (e *LocalEnvironment) Bind(def Definition, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler is required for tool %s", def.Name)
	}
	if err := e.registry.Register(def); err != nil {
		return err
	}

	e.mu.Lock()
	e.handlers[def.Name] = handler
	e.mu.Unlock()
	return nil
}

// Registry returns the registry backing this environment.
func (e *LocalEnvironment) Registry() *Registry {
	return e.registry
}

// ExecuteTools validates and runs each call, never partially failing the
// batch: a bad call produces a failed Result, not an error.
func (e *LocalEnvironment) ExecuteTools(ctx context.Context, calls []Call) ([]Result, error) {
	results := make([]Result, 0, len(calls))
	for _, call := range calls {
		results = append(results, e.executeOne(ctx, call))
	}
	return results, nil
}

func (e *LocalEnvironment) executeOne(ctx context.Context, call Call) Result {
	start := time.Now()

	if err := e.registry.Validate(call); err != nil {
		e.logger.Warn().Str("tool", call.Name).Err(err).Msg("Tool call rejected")
		return Result{ID: call.ID, Success: false, Error: err.Error()}
	}

	e.mu.RLock()
	handler, exists := e.handlers[call.Name]
	e.mu.RUnlock()
	if !exists {
		return Result{ID: call.ID, Success: false, Error: fmt.Sprintf("no handler bound for tool: %s", call.Name)}
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	output, err := handler(runCtx, call.Parameters)
	if err != nil {
		e.logger.Warn().
			Str("tool", call.Name).
			Dur("duration", time.Since(start)).
			Err(err).
			Msg("Tool execution failed")
		return Result{ID: call.ID, Success: false, Error: err.Error()}
	}

	e.logger.Debug().
		Str("tool", call.Name).
		Dur("duration", time.Since(start)).
		Msg("Tool executed")

	return Result{ID: call.ID, Success: true, Output: output}
}

// ReportProblem logs an engine-side failure.
func (e *LocalEnvironment) ReportProblem(err error) {
	if err == nil {
		return
	}
	e.logger.Error().Err(err).Msg("Problem reported by engine")
}
