package graph

import (
	"sync"

	"github.com/harun/loom/internal/tracing"
	"github.com/harun/loom/pkg/tools"
	"github.com/rs/zerolog"
)

// DefaultMaxIterations caps the model/tool calls of a run unless overridden.
const DefaultMaxIterations = 50

// iterationCounter caps total model/tool calls per run. It is shared by
// every fork of a context and guarded by a run-wide lock so concurrent
// branches cannot corrupt or bypass the cap.
type iterationCounter struct {
	mu    sync.Mutex
	used  int
	limit int
}

// ExecContext is the per-run mutable state threaded through node execution.
// It is created once per run, forked for concurrent branches and destroyed
// when the run completes. It is not safe for unsynchronized concurrent
// mutation: every concurrent branch must own its own fork.
type ExecContext struct {
	runID   string
	graph   string
	session *Session
	storage *Storage
	env     tools.Environment
	policy  *tools.Policy
	hooks   *HookRegistry
	counter *iterationCounter
	logger  zerolog.Logger
}

// Option configures a run and its execution context.
type Option func(*runConfig)

type runConfig struct {
	env           tools.Environment
	session       *Session
	hooks         *HookRegistry
	maxIterations int
	logger        zerolog.Logger
}

// WithEnvironment sets the tool/environment boundary for the run.
func WithEnvironment(env tools.Environment) Option {
	return func(cfg *runConfig) { cfg.env = env }
}

// WithSession seeds the run with an existing conversation.
func WithSession(session *Session) Option {
	return func(cfg *runConfig) { cfg.session = session }
}

// WithHooks attaches a hook registry to the run.
func WithHooks(hooks *HookRegistry) Option {
	return func(cfg *runConfig) { cfg.hooks = hooks }
}

// WithMaxIterations overrides the run-wide model/tool call cap.
func WithMaxIterations(n int) Option {
	return func(cfg *runConfig) { cfg.maxIterations = n }
}

// WithLogger sets the base logger for the run.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *runConfig) { cfg.logger = logger }
}

// NewExecContext creates a fresh per-run context.
func NewExecContext(opts ...Option) *ExecContext {
	cfg := runConfig{
		maxIterations: DefaultMaxIterations,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	session := cfg.session
	if session == nil {
		session = NewSession()
	}
	hooks := cfg.hooks
	if hooks == nil {
		hooks = NewHookRegistry()
	}
	if cfg.maxIterations <= 0 {
		cfg.maxIterations = DefaultMaxIterations
	}

	return &ExecContext{
		runID:   tracing.NewRunID(),
		session: session,
		storage: newStorage(),
		env:     cfg.env,
		hooks:   hooks,
		counter: &iterationCounter{limit: cfg.maxIterations},
		logger:  cfg.logger,
	}
}

// RunID returns the run's unique id.
func (ec *ExecContext) RunID() string {
	return ec.runID
}

// GraphName returns the name of the graph currently executing.
func (ec *ExecContext) GraphName() string {
	return ec.graph
}

// Session returns the run's conversation state.
func (ec *ExecContext) Session() *Session {
	return ec.session
}

// Environment returns the run's tool environment handle, which may be nil.
func (ec *ExecContext) Environment() tools.Environment {
	return ec.env
}

// ToolPolicy returns the visibility policy of the graph currently executing.
func (ec *ExecContext) ToolPolicy() *tools.Policy {
	return ec.policy
}

// Hooks returns the run's interception registry.
func (ec *ExecContext) Hooks() *HookRegistry {
	return ec.hooks
}

// Logger returns the run's base logger.
func (ec *ExecContext) Logger() zerolog.Logger {
	return ec.logger
}

// CountCall consumes one unit of the run-wide iteration budget. It returns
// an IterationLimitError once the cap is exceeded.
func (ec *ExecContext) CountCall() error {
	c := ec.counter
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.used >= c.limit {
		return &IterationLimitError{Limit: c.limit}
	}
	c.used++
	return nil
}

// IterationsUsed reports how many iterations the run has consumed.
func (ec *ExecContext) IterationsUsed() int {
	c := ec.counter
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Fork yields a causally independent copy for a concurrent branch: session
// and storage are copied so sibling branches cannot observe each other's
// mutations. The iteration counter and hook registry stay shared run-wide.
func (ec *ExecContext) Fork() *ExecContext {
	return &ExecContext{
		runID:   ec.runID,
		graph:   ec.graph,
		session: ec.session.clone(),
		storage: ec.storage.clone(),
		env:     ec.env,
		policy:  ec.policy,
		hooks:   ec.hooks,
		counter: ec.counter,
		logger:  ec.logger,
	}
}

// Merge adopts exactly one child's session, storage and environment state.
// The other branches' contexts and mutations are discarded by never being
// merged.
func (ec *ExecContext) Merge(child *ExecContext) {
	if child == nil {
		return
	}
	ec.session = child.session
	ec.storage = child.storage
	ec.env = child.env
}

// enterGraph switches the context to a graph's scope and returns a restore
// function for when the graph exits. A graph without its own policy inherits
// the enclosing one.
func (ec *ExecContext) enterGraph(name string, policy *tools.Policy) func() {
	prevGraph, prevPolicy := ec.graph, ec.policy
	ec.graph = name
	if policy != nil {
		ec.policy = policy
	}
	return func() {
		ec.graph = prevGraph
		ec.policy = prevPolicy
	}
}

// emit fires a hook event stamped with the run's identity.
func (ec *ExecContext) emit(point HookPoint, event Event) {
	event.RunID = ec.runID
	if event.Graph == "" {
		event.Graph = ec.graph
	}
	ec.hooks.Emit(point, event)
}
