package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// RunIDKey is the context key for run ID
	RunIDKey ContextKey = "run_id"
	// GraphKey is the context key for the graph currently executing
	GraphKey ContextKey = "graph"
	// NodeKey is the context key for the node currently executing
	NodeKey ContextKey = "node"
)

// TraceContext holds tracing information for a graph run
type TraceContext struct {
	TraceID string
	RunID   string
	Graph   string
	Node    string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewRunID generates a new run ID
func NewRunID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithRunID adds a run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithGraph adds the current graph name to the context
func WithGraph(ctx context.Context, graph string) context.Context {
	return context.WithValue(ctx, GraphKey, graph)
}

// WithNode adds the current node name to the context
func WithNode(ctx context.Context, node string) context.Context {
	return context.WithValue(ctx, NodeKey, node)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetRunID retrieves the run ID from the context
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

// GetGraph retrieves the current graph name from the context
func GetGraph(ctx context.Context) string {
	if graph, ok := ctx.Value(GraphKey).(string); ok {
		return graph
	}
	return ""
}

// GetNode retrieves the current node name from the context
func GetNode(ctx context.Context) string {
	if node, ok := ctx.Value(NodeKey).(string); ok {
		return node
	}
	return ""
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID: GetTraceID(ctx),
		RunID:   GetRunID(ctx),
		Graph:   GetGraph(ctx),
		Node:    GetNode(ctx),
	}
}

// NewRunContext creates a context for a fresh graph run, assigning a trace ID
// when none is present and always assigning a new run ID.
func NewRunContext(ctx context.Context) context.Context {
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	return WithRunID(ctx, NewRunID())
}

// PropagateToLogger adds tracing context to a zerolog logger
func PropagateToLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	if tc.TraceID != "" {
		logger = logger.With().Str("trace_id", tc.TraceID).Logger()
	}
	if tc.RunID != "" {
		logger = logger.With().Str("run_id", tc.RunID).Logger()
	}
	if tc.Graph != "" {
		logger = logger.With().Str("graph", tc.Graph).Logger()
	}
	if tc.Node != "" {
		logger = logger.With().Str("node", tc.Node).Logger()
	}

	return logger
}

// LoggerFromContext creates a logger with tracing context from the given context
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	return PropagateToLogger(ctx, baseLogger)
}
