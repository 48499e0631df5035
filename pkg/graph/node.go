package graph

import (
	"context"
	"fmt"
)

// Func is a node's unit of work.
type Func[I, O any] func(ctx context.Context, ec *ExecContext, in I) (O, error)

// Predicate guards an edge against a node's output.
type Predicate[O any] func(ctx context.Context, ec *ExecContext, out O) bool

// Transform maps a node's output into the next node's input.
type Transform[O, P any] func(ctx context.Context, ec *ExecContext, out O) (P, error)

// NodeRef is the untyped view of a node held by a graph. Payloads cross it
// as any and are re-asserted at the typed boundaries. Only nodes produced
// by this package satisfy it.
type NodeRef interface {
	Name() string
	runAny(ctx context.Context, ec *ExecContext, in any) (any, error)
	outgoing() []anyEdge
	terminal() bool
	freeze()
}

// anyEdge is the type-erased runtime view of an edge.
type anyEdge interface {
	target() NodeRef
	matches(ctx context.Context, ec *ExecContext, out any) bool
	apply(ctx context.Context, ec *ExecContext, out any) (any, error)
}

type edge[O any] struct {
	to        NodeRef
	predicate Predicate[O]
	transform func(ctx context.Context, ec *ExecContext, out O) (any, error)
}

func (e *edge[O]) target() NodeRef { return e.to }

func (e *edge[O]) matches(ctx context.Context, ec *ExecContext, out any) bool {
	typed, ok := out.(O)
	if !ok {
		return false
	}
	if e.predicate == nil {
		return true
	}
	return e.predicate(ctx, ec, typed)
}

func (e *edge[O]) apply(ctx context.Context, ec *ExecContext, out any) (any, error) {
	typed, ok := out.(O)
	if !ok {
		return nil, fmt.Errorf("edge to %q: unexpected payload type %T", e.to.Name(), out)
	}
	if e.transform == nil {
		return typed, nil
	}
	return e.transform(ctx, ec, typed)
}

// Node is a named unit of execution with one input type and one output type.
// Edges are tried in declaration order; the first whose predicate holds wins.
// A node is owned by its enclosing graph and immutable once the graph is
// built.
type Node[I, O any] struct {
	name     string
	fn       Func[I, O]
	edges    []anyEdge
	isFinish bool
	frozen   bool
}

// NewNode creates a node with an explicit name and execution function.
func NewNode[I, O any](name string, fn Func[I, O]) *Node[I, O] {
	if name == "" {
		panic("graph: node name must not be empty")
	}
	if fn == nil {
		panic(fmt.Sprintf("graph: node %q has no execution function", name))
	}
	return &Node[I, O]{name: name, fn: fn}
}

// Passthrough creates an identity node, useful as a join or rename point.
func Passthrough[T any](name string) *Node[T, T] {
	return NewNode(name, func(ctx context.Context, ec *ExecContext, in T) (T, error) {
		return in, nil
	})
}

// Name returns the node's name, unique within its enclosing graph.
func (n *Node[I, O]) Name() string { return n.name }

func (n *Node[I, O]) runAny(ctx context.Context, ec *ExecContext, in any) (any, error) {
	typed, ok := in.(I)
	if !ok {
		var zero I
		if in != nil {
			return nil, fmt.Errorf("node %q: expected input %T, got %T", n.name, zero, in)
		}
		typed = zero
	}
	return n.fn(ctx, ec, typed)
}

func (n *Node[I, O]) outgoing() []anyEdge { return n.edges }

func (n *Node[I, O]) terminal() bool { return n.isFinish }

func (n *Node[I, O]) freeze() { n.frozen = true }

func (n *Node[I, O]) attach(e anyEdge) {
	if n.frozen {
		panic(fmt.Sprintf("graph: node %q belongs to a built graph and cannot gain edges", n.name))
	}
	if n.isFinish {
		panic(fmt.Sprintf("graph: finish node %q cannot have outgoing edges", n.name))
	}
	n.edges = append(n.edges, e)
}

// Runnable adapts the node to the scheduling surface used by fan-out and
// the retry wrapper.
func (n *Node[I, O]) Runnable() Runnable[I, O] {
	return Runnable[I, O]{Name: n.name, Run: n.fn}
}

// Runnable is a named executable unit. Both plain nodes and whole graphs
// reduce to it, which is what lets subgraphs compose anywhere a node fits.
type Runnable[I, O any] struct {
	Name string
	Run  Func[I, O]
}

// Node converts the runnable back into a graph node.
func (r Runnable[I, O]) Node() *Node[I, O] {
	return NewNode(r.Name, r.Run)
}

// Then declares an unconditional edge from one node to the next. The output
// type of the source must equal the input type of the target.
func Then[I, O, P any](from *Node[I, O], to *Node[O, P]) {
	from.attach(&edge[O]{to: to})
}

// When declares a conditional edge guarded by a predicate over the source's
// output. Declaration order is the tie breaker: earlier edges win.
func When[I, O, P any](from *Node[I, O], to *Node[O, P], pred Predicate[O]) {
	from.attach(&edge[O]{to: to, predicate: pred})
}

// ThenMap declares an unconditional edge whose transform adapts the source's
// output into the target's input type.
func ThenMap[I, O, P, Q any](from *Node[I, O], to *Node[P, Q], tr Transform[O, P]) {
	from.attach(&edge[O]{
		to: to,
		transform: func(ctx context.Context, ec *ExecContext, out O) (any, error) {
			return tr(ctx, ec, out)
		},
	})
}

// WhenMap declares a conditional, transforming edge.
func WhenMap[I, O, P, Q any](from *Node[I, O], to *Node[P, Q], pred Predicate[O], tr Transform[O, P]) {
	from.attach(&edge[O]{
		to:        to,
		predicate: pred,
		transform: func(ctx context.Context, ec *ExecContext, out O) (any, error) {
			return tr(ctx, ec, out)
		},
	})
}
