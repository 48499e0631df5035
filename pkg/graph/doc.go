// Package graph provides the typed graph execution engine driving agent workflows.
//
// Invariants:
// - Edge resolution is deterministic: edges are tried in declaration order and
//   the first matching predicate wins.
// - A graph is only obtainable through a validated Build(); finish is always
//   reachable from start and node names are unique.
// - Concurrent branches never share a mutable ExecContext: fan-out forks the
//   context per branch and fan-in merges exactly one back.
// - The iteration counter is run-wide and guarded by a lock, so concurrent
//   branches cannot bypass the call cap.
//
// Usage:
//
//	b := graph.NewBuilder[string, string]("pipeline")
//	upper := graph.NewNode("upper", func(ctx context.Context, ec *graph.ExecContext, in string) (string, error) {
//		return strings.ToUpper(in), nil
//	})
//	b.Add(upper)
//	graph.Then(b.Start(), upper)
//	graph.Then(upper, b.Finish())
//	g, _ := b.Build()
//	out, _ := graph.Run(context.Background(), g, "hello")
//	_ = out
package graph
