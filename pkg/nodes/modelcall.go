package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/loom/internal/observability"
	"github.com/harun/loom/pkg/graph"
	"github.com/harun/loom/pkg/model"
	"github.com/harun/loom/pkg/moderation"
	"github.com/harun/loom/pkg/tools"
)

// metadata key carrying assistant tool calls through the session.
const toolCallsMetaKey = "tool_calls"

// ModelCallConfig configures a model-call node.
type ModelCallConfig struct {
	Provider     model.Provider
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int

	// Registry supplies tool descriptors for prompting. Nil disables the
	// tool loop.
	Registry *tools.Registry

	// Checker screens the incoming prompt. Nil disables moderation.
	Checker *moderation.Checker

	// Streaming switches the provider call to streaming delivery. OnDelta
	// receives every text fragment.
	Streaming bool
	OnDelta   func(text string)
}

// ModelCall builds a node that sends the session plus the incoming prompt
// to the model and loops on tool calls until the model answers with text.
// The final text is the node's output.
func ModelCall(name string, cfg ModelCallConfig) *graph.Node[string, string] {
	return graph.NewNode(name, func(ctx context.Context, ec *graph.ExecContext, prompt string) (string, error) {
		if cfg.Provider == nil {
			return "", fmt.Errorf("model call %q: no provider configured", name)
		}

		if cfg.Checker != nil {
			if err := cfg.Checker.Check(ctx, prompt); err != nil {
				return "", fmt.Errorf("moderation: %w", err)
			}
		}

		session := ec.Session()
		session.Append(graph.Message{Role: "user", Content: prompt})

		var descriptors []tools.Definition
		if cfg.Registry != nil {
			descriptors = cfg.Registry.Descriptors(ec.ToolPolicy())
		}

		for {
			if err := ec.CountCall(); err != nil {
				return "", err
			}

			req := model.Request{
				Model:        cfg.Model,
				Messages:     sessionMessages(session),
				Tools:        descriptors,
				Temperature:  cfg.Temperature,
				MaxTokens:    cfg.MaxTokens,
				SystemPrompt: cfg.SystemPrompt,
			}

			ec.Hooks().Emit(graph.HookModelCallBefore, graph.Event{
				RunID: ec.RunID(),
				Graph: ec.GraphName(),
				Node:  name,
				Fields: map[string]interface{}{
					"provider": cfg.Provider.Name(),
					"model":    cfg.Model,
					"tools":    len(descriptors),
				},
			})

			startedAt := time.Now()
			var response *model.Response
			var err error
			if cfg.Streaming {
				response, err = cfg.Provider.ExecuteStreaming(ctx, req, cfg.OnDelta)
			} else {
				response, err = cfg.Provider.Execute(ctx, req)
			}
			observability.RecordModelCall(cfg.Provider.Name(), time.Since(startedAt), err == nil)
			if err != nil {
				return "", fmt.Errorf("model call %q: %w", name, err)
			}

			event := graph.Event{
				RunID:  ec.RunID(),
				Graph:  ec.GraphName(),
				Node:   name,
				Output: response.Content,
				Fields: map[string]interface{}{
					"provider":   cfg.Provider.Name(),
					"tool_calls": len(response.ToolCalls),
				},
			}
			if response.Usage != nil {
				event.Fields["input_tokens"] = response.Usage.InputTokens
				event.Fields["output_tokens"] = response.Usage.OutputTokens
			}
			ec.Hooks().Emit(graph.HookModelCallAfter, event)

			if len(response.ToolCalls) == 0 {
				session.Append(graph.Message{Role: "assistant", Content: response.Content})
				return response.Content, nil
			}

			session.Append(graph.Message{
				Role:    "assistant",
				Content: response.Content,
				Metadata: map[string]interface{}{
					toolCallsMetaKey: response.ToolCalls,
				},
			})

			if err := runToolBatch(ctx, ec, name, cfg.Registry, response.ToolCalls); err != nil {
				return "", err
			}
		}
	})
}

// runToolBatch validates, executes and records one batch of tool calls
// requested by the model.
func runToolBatch(ctx context.Context, ec *graph.ExecContext, node string, registry *tools.Registry, calls []tools.Call) error {
	env := ec.Environment()
	if env == nil {
		return fmt.Errorf("model call %q: model requested tools but no environment is configured", node)
	}

	accepted := make([]tools.Call, 0, len(calls))
	rejected := make(map[string]error)
	for _, call := range calls {
		ec.Hooks().Emit(graph.HookToolCall, graph.Event{
			RunID: ec.RunID(),
			Graph: ec.GraphName(),
			Node:  node,
			Fields: map[string]interface{}{
				"tool":    call.Name,
				"call_id": call.ID,
			},
		})

		if registry != nil {
			if err := registry.Validate(call); err != nil {
				rejected[call.ID] = err
				ec.Hooks().Emit(graph.HookToolFail, graph.Event{
					RunID: ec.RunID(),
					Graph: ec.GraphName(),
					Node:  node,
					Err:   err,
					Fields: map[string]interface{}{
						"tool":    call.Name,
						"call_id": call.ID,
					},
				})
				continue
			}
			ec.Hooks().Emit(graph.HookToolValidate, graph.Event{
				RunID: ec.RunID(),
				Graph: ec.GraphName(),
				Node:  node,
				Fields: map[string]interface{}{
					"tool":    call.Name,
					"call_id": call.ID,
				},
			})
		}
		accepted = append(accepted, call)
	}

	results := make([]tools.Result, 0, len(calls))
	if len(accepted) > 0 {
		startedAt := time.Now()
		executed, err := env.ExecuteTools(ctx, accepted)
		for _, call := range accepted {
			observability.RecordToolCall(call.Name, time.Since(startedAt), err == nil)
		}
		if err != nil {
			env.ReportProblem(err)
			return fmt.Errorf("tool execution: %w", err)
		}
		results = append(results, executed...)
	}
	for id, err := range rejected {
		results = append(results, tools.Result{ID: id, Success: false, Error: err.Error()})
	}

	session := ec.Session()
	for _, result := range results {
		ec.Hooks().Emit(graph.HookToolResult, graph.Event{
			RunID:  ec.RunID(),
			Graph:  ec.GraphName(),
			Node:   node,
			Output: result.Output,
			Fields: map[string]interface{}{
				"call_id": result.ID,
				"success": result.Success,
			},
		})

		content := fmt.Sprintf("%v", result.Output)
		if !result.Success {
			content = "error: " + result.Error
		}
		session.Append(graph.Message{
			Role:       "tool",
			Content:    content,
			ToolCallID: result.ID,
		})
	}
	return nil
}

// sessionMessages converts the session history to provider messages,
// restoring assistant tool calls from message metadata.
func sessionMessages(session *graph.Session) []model.Message {
	history := session.Messages()
	messages := make([]model.Message, 0, len(history))
	for _, msg := range history {
		converted := model.Message{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		if raw, ok := msg.Metadata[toolCallsMetaKey]; ok {
			if calls, ok := raw.([]tools.Call); ok {
				converted.ToolCalls = calls
			}
		}
		messages = append(messages, converted)
	}
	return messages
}
