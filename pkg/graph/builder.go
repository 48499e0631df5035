package graph

import (
	"github.com/harun/loom/pkg/tools"
)

// StartNodeName and FinishNodeName are the sentinel node names every graph
// is bounded by.
const (
	StartNodeName  = "start"
	FinishNodeName = "finish"
)

// Builder is the mutable first phase of graph construction. Nodes are
// registered and wired freely, then Build validates the whole and returns
// the frozen graph. A builder is single-use.
type Builder[I, O any] struct {
	name   string
	start  *Node[I, I]
	finish *Node[O, O]
	added  []NodeRef
	policy *tools.Policy
	built  bool
}

// NewBuilder starts construction of a graph with the given name. Start and
// Finish sentinels are created up front so edges can reference them before
// the graph exists.
func NewBuilder[I, O any](name string) *Builder[I, O] {
	finish := Passthrough[O](FinishNodeName)
	finish.isFinish = true
	return &Builder[I, O]{
		name:   name,
		start:  Passthrough[I](StartNodeName),
		finish: finish,
	}
}

// Start returns the graph's entry sentinel.
func (b *Builder[I, O]) Start() *Node[I, I] { return b.start }

// Finish returns the graph's exit sentinel.
func (b *Builder[I, O]) Finish() *Node[O, O] { return b.finish }

// Add registers nodes with the graph under construction. Wiring happens
// separately through Then, When, ThenMap and WhenMap.
func (b *Builder[I, O]) Add(nodes ...NodeRef) *Builder[I, O] {
	b.added = append(b.added, nodes...)
	return b
}

// WithToolPolicy scopes tool visibility while execution is inside this
// graph. Subgraphs without their own policy inherit the enclosing one.
func (b *Builder[I, O]) WithToolPolicy(policy *tools.Policy) *Builder[I, O] {
	b.policy = policy
	return b
}

// Build validates the graph and freezes it. It fails on a reused builder,
// duplicate node names, or a Finish unreachable from Start. A graph is
// never returned half-valid.
func (b *Builder[I, O]) Build() (*Graph[I, O], error) {
	if b.built {
		return nil, &ConfigError{Graph: b.name, Reason: "builder already consumed by Build"}
	}
	if b.name == "" {
		return nil, &ConfigError{Graph: b.name, Reason: "graph name must not be empty"}
	}

	nodes := make(map[string]NodeRef)
	register := func(n NodeRef) *ConfigError {
		if prev, ok := nodes[n.Name()]; ok && prev != n {
			return &ConfigError{Graph: b.name, Reason: "duplicate node name " + n.Name()}
		}
		nodes[n.Name()] = n
		return nil
	}
	if err := register(b.start); err != nil {
		return nil, err
	}
	if err := register(b.finish); err != nil {
		return nil, err
	}
	for _, n := range b.added {
		if err := register(n); err != nil {
			return nil, err
		}
	}

	reached := make(map[NodeRef]bool)
	if err := b.walk(b.start, nodes, reached); err != nil {
		return nil, err
	}
	if !reached[b.finish] {
		return nil, &ConfigError{Graph: b.name, Reason: "finish is not reachable from start"}
	}

	for _, n := range nodes {
		n.freeze()
	}
	b.built = true

	return &Graph[I, O]{
		name:   b.name,
		start:  b.start,
		finish: b.finish,
		nodes:  nodes,
		policy: b.policy,
	}, nil
}

// MustBuild is Build for graphs wired at program start, where a
// construction defect is unrecoverable.
func (b *Builder[I, O]) MustBuild() *Graph[I, O] {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}

// walk depth-first marks every node reachable from n, registering nodes
// that were wired in by edge but never passed to Add.
func (b *Builder[I, O]) walk(n NodeRef, nodes map[string]NodeRef, reached map[NodeRef]bool) *ConfigError {
	if reached[n] {
		return nil
	}
	reached[n] = true
	if prev, ok := nodes[n.Name()]; ok && prev != n {
		return &ConfigError{Graph: b.name, Reason: "duplicate node name " + n.Name()}
	}
	nodes[n.Name()] = n
	for _, e := range n.outgoing() {
		if err := b.walk(e.target(), nodes, reached); err != nil {
			return err
		}
	}
	return nil
}
