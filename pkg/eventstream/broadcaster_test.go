package eventstream

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/loom/pkg/graph"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTestServer(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Wait for the server side to register the subscriber.
	require.Eventually(t, func() bool {
		return s.Subscribers() == 1
	}, time.Second, 10*time.Millisecond)
	return conn
}

func TestBroadcasterPushesRunEvents(t *testing.T) {
	s := NewServer(ServerConfig{Logger: zerolog.Nop()})
	conn := dialTestServer(t, s)

	b := graph.NewBuilder[string, string]("streamed")
	graph.Then(b.Start(), b.Finish())
	g, err := b.Build()
	require.NoError(t, err)

	hooks := graph.NewHookRegistry()
	s.Broadcaster().Attach(hooks)

	ec := graph.NewExecContext(graph.WithHooks(hooks))
	_, err = graph.RunWith(context.Background(), g, ec, "x")
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg EventMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "event", msg.Type)
	assert.Equal(t, string(graph.HookRunStart), msg.Event)
	assert.Equal(t, ec.RunID(), msg.RunID)
	assert.Equal(t, int64(1), msg.Seq)
}

func TestBroadcastWithoutSubscribersIsSafe(t *testing.T) {
	b := NewBroadcaster(NewRegistry(), zerolog.Nop())
	assert.NotPanics(t, func() {
		b.BroadcastEvent(graph.Event{Point: graph.HookRunStart, At: time.Now()})
	})
}

func TestSequenceNumbersIncrease(t *testing.T) {
	s := NewServer(ServerConfig{Logger: zerolog.Nop()})
	conn := dialTestServer(t, s)

	for i := 0; i < 3; i++ {
		s.Broadcaster().BroadcastEvent(graph.Event{Point: graph.HookNodeBefore, At: time.Now()})
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var last int64
	for i := 0; i < 3; i++ {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg EventMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Greater(t, msg.Seq, last)
		last = msg.Seq
	}
}
