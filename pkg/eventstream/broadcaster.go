package eventstream

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/harun/loom/pkg/graph"
	"github.com/rs/zerolog"
)

// EventMessage is the wire format pushed to subscribers.
type EventMessage struct {
	Type      string                 `json:"type"`
	Event     string                 `json:"event"`
	RunID     string                 `json:"run_id,omitempty"`
	Graph     string                 `json:"graph,omitempty"`
	Node      string                 `json:"node,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Timestamp int64                  `json:"timestamp"`
	Seq       int64                  `json:"seq"`
}

// Broadcaster fans run events out to every connected subscriber.
type Broadcaster struct {
	clients *Registry
	logger  zerolog.Logger
	seq     uint64
}

// NewBroadcaster creates a broadcaster over a client registry.
func NewBroadcaster(clients *Registry, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		clients: clients,
		logger:  logger.With().Str("component", "eventstream").Logger(),
	}
}

// Attach subscribes the broadcaster to every hook point of a registry.
func (b *Broadcaster) Attach(hooks *graph.HookRegistry) {
	hooks.OnAny(b.BroadcastEvent)
}

// BroadcastEvent pushes one run lifecycle event to all subscribers.
func (b *Broadcaster) BroadcastEvent(event graph.Event) {
	msg := EventMessage{
		Type:      "event",
		Event:     string(event.Point),
		RunID:     event.RunID,
		Graph:     event.Graph,
		Node:      event.Node,
		Fields:    event.Fields,
		Timestamp: event.At.UnixMilli(),
		Seq:       b.nextSeq(),
	}
	if event.Err != nil {
		msg.Error = event.Err.Error()
	}
	if event.At.IsZero() {
		msg.Timestamp = time.Now().UnixMilli()
	}
	b.broadcast(msg)
}

func (b *Broadcaster) broadcast(msg EventMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error().Err(err).Str("event", msg.Event).Msg("failed to marshal event")
		return
	}

	clients := b.clients.All()
	if len(clients) == 0 {
		return
	}

	failed := 0
	for _, client := range clients {
		if err := client.Send(data); err != nil {
			b.logger.Warn().
				Err(err).
				Str("client_id", client.ID).
				Str("event", msg.Event).
				Msg("failed to push event to subscriber")
			failed++
		}
	}
	b.logger.Debug().
		Str("event", msg.Event).
		Int64("seq", msg.Seq).
		Int("subscribers", len(clients)).
		Int("failed", failed).
		Msg("event broadcast")
}

func (b *Broadcaster) nextSeq() int64 {
	return int64(atomic.AddUint64(&b.seq, 1))
}
