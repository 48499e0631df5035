package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/loom/internal/observability"
	"github.com/harun/loom/pkg/graph"
	"github.com/harun/loom/pkg/tools"
)

// ToolCall builds a node invoking one fixed tool through the context's
// environment. params maps the node's input to the tool's parameters. The
// tool must be visible under the graph's tool policy.
func ToolCall[I any](name, tool string, params func(ctx context.Context, ec *graph.ExecContext, in I) map[string]interface{}) *graph.Node[I, tools.Result] {
	return graph.NewNode(name, func(ctx context.Context, ec *graph.ExecContext, in I) (tools.Result, error) {
		env := ec.Environment()
		if env == nil {
			return tools.Result{}, fmt.Errorf("tool node %q: no environment configured", name)
		}
		if policy := ec.ToolPolicy(); !policy.Allows(tool) {
			return tools.Result{}, fmt.Errorf("tool node %q: tool %q not allowed by policy", name, tool)
		}
		if err := ec.CountCall(); err != nil {
			return tools.Result{}, err
		}

		call := tools.Call{
			ID:         tools.NewCallID(),
			Name:       tool,
			Parameters: params(ctx, ec, in),
		}
		ec.Hooks().Emit(graph.HookToolCall, graph.Event{
			RunID: ec.RunID(),
			Graph: ec.GraphName(),
			Node:  name,
			Fields: map[string]interface{}{
				"tool":    tool,
				"call_id": call.ID,
			},
		})

		startedAt := time.Now()
		results, err := env.ExecuteTools(ctx, []tools.Call{call})
		observability.RecordToolCall(tool, time.Since(startedAt), err == nil)
		if err != nil {
			env.ReportProblem(err)
			return tools.Result{}, fmt.Errorf("tool node %q: %w", name, err)
		}
		if len(results) != 1 {
			return tools.Result{}, fmt.Errorf("tool node %q: expected 1 result, got %d", name, len(results))
		}

		result := results[0]
		ec.Hooks().Emit(graph.HookToolResult, graph.Event{
			RunID:  ec.RunID(),
			Graph:  ec.GraphName(),
			Node:   name,
			Output: result.Output,
			Fields: map[string]interface{}{
				"call_id": result.ID,
				"success": result.Success,
			},
		})
		return result, nil
	})
}
