package nodes

import (
	"context"

	"github.com/harun/loom/pkg/graph"
)

// Transform builds a node from a pure function. It consumes no iteration
// budget.
func Transform[I, O any](name string, fn func(in I) (O, error)) *graph.Node[I, O] {
	return graph.NewNode(name, func(ctx context.Context, ec *graph.ExecContext, in I) (O, error) {
		return fn(in)
	})
}
