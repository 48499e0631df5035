package nodes

import (
	"context"
	"errors"
	"testing"

	"github.com/harun/loom/internal/config"
	"github.com/harun/loom/pkg/graph"
	"github.com/harun/loom/pkg/model"
	"github.com/harun/loom/pkg/moderation"
	"github.com/harun/loom/pkg/tools"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider replays canned responses. Once the script is exhausted it
// repeats the last response.
type scriptedProvider struct {
	script   []*model.Response
	requests []model.Request
}

func (p *scriptedProvider) Execute(ctx context.Context, req model.Request) (*model.Response, error) {
	p.requests = append(p.requests, req)
	if len(p.script) == 0 {
		return nil, errors.New("script empty")
	}
	next := p.script[0]
	if len(p.script) > 1 {
		p.script = p.script[1:]
	}
	return next, nil
}

func (p *scriptedProvider) ExecuteStreaming(ctx context.Context, req model.Request, onDelta func(string)) (*model.Response, error) {
	resp, err := p.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	if onDelta != nil && resp.Content != "" {
		onDelta(resp.Content)
	}
	return resp, nil
}

func (p *scriptedProvider) Moderate(ctx context.Context, prompt, modelName string) (*model.ModerationResult, error) {
	return &model.ModerationResult{Provider: p.Name()}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

func runSingleNodeGraph[O any](t *testing.T, node *graph.Node[string, O], in string, opts ...graph.Option) (O, *graph.ExecContext, error) {
	t.Helper()
	b := graph.NewBuilder[string, O]("test_graph")
	b.Add(node)
	graph.Then(b.Start(), node)
	graph.Then(node, b.Finish())
	g, err := b.Build()
	require.NoError(t, err)

	ec := graph.NewExecContext(opts...)
	out, err := graph.RunWith(context.Background(), g, ec, in)
	return out, ec, err
}

func TestModelCallSingleRound(t *testing.T) {
	provider := &scriptedProvider{script: []*model.Response{
		{Content: "the answer", Usage: &model.TokenUsage{InputTokens: 10, OutputTokens: 5}},
	}}

	node := ModelCall("ask", ModelCallConfig{
		Provider:     provider,
		Model:        "test-model",
		SystemPrompt: "be helpful",
	})

	out, ec, err := runSingleNodeGraph(t, node, "what is the answer?")
	require.NoError(t, err)
	assert.Equal(t, "the answer", out)

	messages := ec.Session().Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "assistant", messages[1].Role)

	require.Len(t, provider.requests, 1)
	assert.Equal(t, "be helpful", provider.requests[0].SystemPrompt)
	assert.Equal(t, 1, ec.IterationsUsed())
}

func TestModelCallToolLoop(t *testing.T) {
	registry := tools.NewRegistry()
	env, err := tools.NewLocalEnvironment(tools.LocalEnvironmentConfig{Registry: registry})
	require.NoError(t, err)

	var handlerCalls int
	err = env.Bind(tools.Definition{
		Name:        "calculator",
		Description: "Evaluates arithmetic expressions",
		Parameters: []tools.Parameter{
			{Name: "expression", Type: "string", Description: "expression", Required: true},
		},
	}, func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		handlerCalls++
		return "42", nil
	})
	require.NoError(t, err)

	provider := &scriptedProvider{script: []*model.Response{
		{ToolCalls: []tools.Call{{
			ID:         "call_1",
			Name:       "calculator",
			Parameters: map[string]interface{}{"expression": "6*7"},
		}}},
		{Content: "the result is 42"},
	}}

	node := ModelCall("compute", ModelCallConfig{
		Provider: provider,
		Model:    "test-model",
		Registry: registry,
	})

	hookCounts := make(map[graph.HookPoint]int)
	hooks := graph.NewHookRegistry()
	hooks.OnAny(func(e graph.Event) { hookCounts[e.Point]++ })

	out, ec, err := runSingleNodeGraph(t, node, "what is 6*7?",
		graph.WithEnvironment(env), graph.WithHooks(hooks))
	require.NoError(t, err)

	assert.Equal(t, "the result is 42", out)
	assert.Equal(t, 1, handlerCalls)
	assert.Equal(t, 2, ec.IterationsUsed(), "two model rounds consume two iterations")

	assert.Equal(t, 2, hookCounts[graph.HookModelCallBefore])
	assert.Equal(t, 2, hookCounts[graph.HookModelCallAfter])
	assert.Equal(t, 1, hookCounts[graph.HookToolCall])
	assert.Equal(t, 1, hookCounts[graph.HookToolValidate])
	assert.Equal(t, 1, hookCounts[graph.HookToolResult])
	assert.Zero(t, hookCounts[graph.HookToolFail])

	// user, assistant with tool calls, tool result, final assistant
	messages := ec.Session().Messages()
	require.Len(t, messages, 4)
	assert.Equal(t, "tool", messages[2].Role)
	assert.Equal(t, "call_1", messages[2].ToolCallID)
	assert.Equal(t, "42", messages[2].Content)

	// The second request must replay the tool exchange to the provider.
	require.Len(t, provider.requests, 2)
	second := provider.requests[1]
	require.Len(t, second.Messages, 3)
	assert.Len(t, second.Messages[1].ToolCalls, 1)
}

func TestModelCallRejectsInvalidToolCalls(t *testing.T) {
	registry := tools.NewRegistry()
	env, err := tools.NewLocalEnvironment(tools.LocalEnvironmentConfig{Registry: registry})
	require.NoError(t, err)
	require.NoError(t, env.Bind(tools.Definition{
		Name:        "calculator",
		Description: "Evaluates arithmetic expressions",
		Parameters: []tools.Parameter{
			{Name: "expression", Type: "string", Description: "expression", Required: true},
		},
	}, func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return "ok", nil
	}))

	provider := &scriptedProvider{script: []*model.Response{
		{ToolCalls: []tools.Call{{
			ID:         "call_bad",
			Name:       "calculator",
			Parameters: map[string]interface{}{},
		}}},
		{Content: "done"},
	}}

	hookCounts := make(map[graph.HookPoint]int)
	hooks := graph.NewHookRegistry()
	hooks.OnAny(func(e graph.Event) { hookCounts[e.Point]++ })

	node := ModelCall("compute", ModelCallConfig{
		Provider: provider,
		Model:    "test-model",
		Registry: registry,
	})

	out, ec, err := runSingleNodeGraph(t, node, "compute",
		graph.WithEnvironment(env), graph.WithHooks(hooks))
	require.NoError(t, err)
	assert.Equal(t, "done", out)

	assert.Equal(t, 1, hookCounts[graph.HookToolFail])
	assert.Zero(t, hookCounts[graph.HookToolValidate])

	// The rejection is fed back to the model as a failed tool result.
	messages := ec.Session().Messages()
	require.Len(t, messages, 4)
	assert.Equal(t, "tool", messages[2].Role)
	assert.Contains(t, messages[2].Content, "error:")
}

func TestModelCallModerationBlocks(t *testing.T) {
	filter, err := moderation.New(config.ModerationConfig{
		Enabled:         true,
		BlockedKeywords: []string{"verboten"},
	})
	require.NoError(t, err)

	provider := &scriptedProvider{script: []*model.Response{{Content: "should never run"}}}
	node := ModelCall("ask", ModelCallConfig{
		Provider: provider,
		Model:    "test-model",
		Checker:  moderation.NewChecker(filter, nil, "", zerolog.Nop()),
	})

	_, _, err = runSingleNodeGraph(t, node, "something verboten")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "moderation")
	assert.Empty(t, provider.requests, "a blocked prompt never reaches the provider")
}

func TestModelCallHonorsIterationBudget(t *testing.T) {
	registry := tools.NewRegistry()
	env, err := tools.NewLocalEnvironment(tools.LocalEnvironmentConfig{Registry: registry})
	require.NoError(t, err)
	require.NoError(t, env.Bind(tools.Definition{
		Name:        "spinner",
		Description: "Always requested again",
	}, func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return "again", nil
	}))

	// The script never produces a text answer, so the loop only ends when
	// the budget runs out.
	provider := &scriptedProvider{script: []*model.Response{
		{ToolCalls: []tools.Call{{
			ID:         "call_loop",
			Name:       "spinner",
			Parameters: map[string]interface{}{},
		}}},
	}}

	node := ModelCall("loop", ModelCallConfig{
		Provider: provider,
		Model:    "test-model",
		Registry: registry,
	})

	_, _, err = runSingleNodeGraph(t, node, "go",
		graph.WithEnvironment(env), graph.WithMaxIterations(3))
	require.Error(t, err)

	var limit *graph.IterationLimitError
	require.ErrorAs(t, err, &limit)
	assert.Len(t, provider.requests, 3)
}

func TestModelCallStreamingDeliversDeltas(t *testing.T) {
	provider := &scriptedProvider{script: []*model.Response{{Content: "streamed text"}}}

	var deltas []string
	node := ModelCall("stream", ModelCallConfig{
		Provider:  provider,
		Model:     "test-model",
		Streaming: true,
		OnDelta:   func(text string) { deltas = append(deltas, text) },
	})

	out, _, err := runSingleNodeGraph(t, node, "go")
	require.NoError(t, err)
	assert.Equal(t, "streamed text", out)
	assert.Equal(t, []string{"streamed text"}, deltas)
}

func TestModelCallRequiresEnvironmentForTools(t *testing.T) {
	provider := &scriptedProvider{script: []*model.Response{
		{ToolCalls: []tools.Call{{ID: "c", Name: "anything"}}},
	}}
	node := ModelCall("ask", ModelCallConfig{Provider: provider, Model: "test-model"})

	_, _, err := runSingleNodeGraph(t, node, "go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no environment")
}
