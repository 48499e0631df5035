package graph

import (
	"context"
	"time"

	"github.com/harun/loom/internal/observability"
	"github.com/harun/loom/internal/tracing"
	"go.opentelemetry.io/otel/codes"
)

// Run executes a graph top to bottom with a fresh execution context. The
// context lives for exactly this run. A failed run returns no result and
// surfaces the originating error.
func Run[I, O any](ctx context.Context, g *Graph[I, O], in I, opts ...Option) (O, error) {
	return RunWith(ctx, g, NewExecContext(opts...), in)
}

// RunWith executes a graph against a caller-prepared execution context,
// which lets callers inspect the context after the run.
func RunWith[I, O any](ctx context.Context, g *Graph[I, O], ec *ExecContext, in I) (O, error) {
	var zero O

	ctx = tracing.WithRunID(ctx, ec.runID)
	ctx = tracing.WithGraph(ctx, g.name)
	ctx, span := tracing.StartSpan(ctx, "loom.graph", "graph.run")
	defer span.End()

	ec.logger = ec.logger.With().Str("run_id", ec.runID).Logger()
	logger := ec.logger.With().Str("graph", g.name).Logger()

	ec.emit(HookRunStart, Event{Graph: g.name, Input: in})
	logger.Info().Msg("run started")

	startedAt := time.Now()
	out, err := g.Execute(ctx, ec, in)
	elapsed := time.Since(startedAt)

	observability.RecordRun(g.name, elapsed, err == nil)
	observability.RecordIterationsUsed(g.name, ec.IterationsUsed())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		ec.emit(HookRunError, Event{Graph: g.name, Input: in, Err: err})
		logger.Error().Err(err).Dur("elapsed", elapsed).Int("iterations", ec.IterationsUsed()).Msg("run failed")
		return zero, err
	}

	ec.emit(HookRunFinish, Event{Graph: g.name, Output: out})
	logger.Info().Dur("elapsed", elapsed).Int("iterations", ec.IterationsUsed()).Msg("run finished")
	return out, nil
}
