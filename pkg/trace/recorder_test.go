package trace

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/harun/loom/pkg/graph"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := NewRecorder(Config{
		Path:   filepath.Join(t.TempDir(), "trace.db"),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRecorderRequiresPath(t *testing.T) {
	_, err := NewRecorder(Config{Logger: zerolog.Nop()})
	require.Error(t, err)
}

func TestRecorderPersistsRunEvents(t *testing.T) {
	r := newTestRecorder(t)

	b := graph.NewBuilder[string, string]("traced")
	work := graph.Passthrough[string]("work")
	b.Add(work)
	graph.Then(b.Start(), work)
	graph.Then(work, b.Finish())
	g, err := b.Build()
	require.NoError(t, err)

	hooks := graph.NewHookRegistry()
	r.Attach(hooks)

	ec := graph.NewExecContext(graph.WithHooks(hooks))
	_, err = graph.RunWith(context.Background(), g, ec, "x")
	require.NoError(t, err)

	events, err := r.RunEvents(context.Background(), ec.RunID())
	require.NoError(t, err)
	require.NotEmpty(t, events)

	assert.Equal(t, graph.HookRunStart, events[0].Point)
	assert.Equal(t, graph.HookRunFinish, events[len(events)-1].Point)
	for _, ev := range events {
		assert.Equal(t, ec.RunID(), ev.RunID)
		assert.False(t, ev.At.IsZero())
	}
}

func TestRecorderStoresErrorAndFields(t *testing.T) {
	r := newTestRecorder(t)

	r.Record(graph.Event{
		RunID: "run-1",
		Point: graph.HookToolFail,
		Graph: "g",
		Node:  "n",
		Err:   assert.AnError,
		Fields: map[string]interface{}{
			"tool": "calculator",
		},
	})

	events, err := r.RunEvents(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Error, assert.AnError.Error())
	assert.Equal(t, "calculator", events[0].Fields["tool"])
}

func TestRecorderListsRuns(t *testing.T) {
	r := newTestRecorder(t)

	r.Record(graph.Event{RunID: "run-a", Point: graph.HookRunStart})
	r.Record(graph.Event{RunID: "run-b", Point: graph.HookRunStart})
	r.Record(graph.Event{RunID: "run-b", Point: graph.HookRunFinish})

	ids, err := r.RunIDs(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-b", "run-a"}, ids)
}

func TestRecorderIgnoresWritesAfterClose(t *testing.T) {
	r := newTestRecorder(t)
	require.NoError(t, r.Close())

	assert.NotPanics(t, func() {
		r.Record(graph.Event{RunID: "late", Point: graph.HookRunStart})
	})
}
