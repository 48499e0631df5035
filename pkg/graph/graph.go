package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/loom/internal/observability"
	"github.com/harun/loom/internal/tracing"
	"github.com/harun/loom/pkg/tools"
)

// Status is the traversal state of a run within a graph.
type Status int

const (
	StatusNotStarted Status = iota
	StatusRunning
	StatusFinished
	StatusFailed
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not_started"
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// nodeFailure wraps a node execution error so enclosing traversal levels
// know the node-error hook already fired for it.
type nodeFailure struct {
	node string
	err  error
}

func (f *nodeFailure) Error() string {
	return fmt.Sprintf("node %q: %v", f.node, f.err)
}

func (f *nodeFailure) Unwrap() error { return f.err }

// Graph is an immutable, validated state machine bounded by Start and
// Finish. It satisfies the same typed execute contract as a Node, so graphs
// nest to arbitrary depth.
type Graph[I, O any] struct {
	name   string
	start  *Node[I, I]
	finish *Node[O, O]
	nodes  map[string]NodeRef
	policy *tools.Policy
}

// Name returns the graph's name.
func (g *Graph[I, O]) Name() string { return g.name }

// ToolPolicy returns the graph's tool visibility policy, which may be nil.
func (g *Graph[I, O]) ToolPolicy() *tools.Policy { return g.policy }

// Execute drives the traversal loop: run the current node, resolve one
// outgoing edge in declaration order, advance, repeat until Finish runs.
// Finish's output is the result.
func (g *Graph[I, O]) Execute(ctx context.Context, ec *ExecContext, in I) (O, error) {
	var zero O

	restore := ec.enterGraph(g.name, g.policy)
	defer restore()

	ctx = tracing.WithGraph(ctx, g.name)
	logger := ec.Logger().With().Str("graph", g.name).Logger()

	ec.emit(HookGraphStart, Event{Graph: g.name, Input: in})
	logger.Debug().Str("status", StatusRunning.String()).Msg("graph started")

	// Cyclic graphs whose nodes never touch the iteration budget still
	// have to terminate.
	stepLimit := ec.counter.limit * 10
	steps := 0

	var current NodeRef = g.start
	var payload any = in

	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if steps++; steps > stepLimit {
			return zero, &StepLimitError{Graph: g.name, Steps: stepLimit}
		}

		ctx := tracing.WithNode(ctx, current.Name())
		ec.emit(HookNodeBefore, Event{Graph: g.name, Node: current.Name(), Input: payload})

		startedAt := time.Now()
		out, err := current.runAny(ctx, ec, payload)
		observability.RecordNodeExecution(g.name, current.Name(), time.Since(startedAt), err == nil)

		if err != nil {
			if _, reported := err.(*nodeFailure); !reported {
				ec.emit(HookNodeError, Event{Graph: g.name, Node: current.Name(), Input: payload, Err: err})
				err = &nodeFailure{node: current.Name(), err: err}
			}
			logger.Error().Err(err).Str("node", current.Name()).Msg("node execution failed")
			return zero, err
		}
		ec.emit(HookNodeAfter, Event{Graph: g.name, Node: current.Name(), Input: payload, Output: out})

		if current.terminal() {
			result, ok := out.(O)
			if !ok {
				return zero, fmt.Errorf("graph %q: finish produced %T, want %T", g.name, out, zero)
			}
			ec.emit(HookGraphFinish, Event{Graph: g.name, Output: result})
			logger.Debug().Str("status", StatusFinished.String()).Msg("graph finished")
			return result, nil
		}

		next, nextPayload, err := g.resolveNext(ctx, ec, current, out)
		if err != nil {
			logger.Error().Err(err).Str("node", current.Name()).Msg("edge resolution failed")
			return zero, err
		}
		current, payload = next, nextPayload
	}
}

// resolveNext tries the node's outgoing edges in declaration order and
// follows the first whose predicate holds. No match is a configuration
// defect, fatal for the run.
func (g *Graph[I, O]) resolveNext(ctx context.Context, ec *ExecContext, from NodeRef, out any) (NodeRef, any, error) {
	for _, e := range from.outgoing() {
		if !e.matches(ctx, ec, out) {
			continue
		}
		next, err := e.apply(ctx, ec, out)
		if err != nil {
			return nil, nil, fmt.Errorf("graph %q: transform on edge %s -> %s: %w",
				g.name, from.Name(), e.target().Name(), err)
		}
		return e.target(), next, nil
	}
	return nil, nil, &NoMatchingEdgeError{Graph: g.name, Node: from.Name()}
}

// Node wraps the graph behind the plain node contract so it can be wired
// into an enclosing graph as a subgraph.
func (g *Graph[I, O]) Node() *Node[I, O] {
	return NewNode(g.name, g.Execute)
}

// Runnable adapts the graph to the scheduling surface used by fan-out and
// the retry wrapper.
func (g *Graph[I, O]) Runnable() Runnable[I, O] {
	return Runnable[I, O]{Name: g.name, Run: g.Execute}
}
