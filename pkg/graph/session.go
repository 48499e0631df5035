package graph

import "sync"

// Message is one entry in a run's model conversation.
type Message struct {
	Role       string                 `json:"role"`
	Content    string                 `json:"content"`
	ToolCallID string                 `json:"tool_call_id,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Session is the model conversation state threaded through a run. It is not
// safe for unsynchronized concurrent mutation; concurrent branches must go
// through ExecContext.Fork.
type Session struct {
	mu       sync.RWMutex
	messages []Message
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{}
}

// Append adds a message to the conversation.
func (s *Session) Append(msg Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

// Messages returns a copy of the conversation so far.
func (s *Session) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.messages...)
}

// Len returns the number of messages.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// clone produces an independent copy for a forked context.
func (s *Session) clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]Message, len(s.messages))
	for i, msg := range s.messages {
		copied := msg
		if msg.Metadata != nil {
			copied.Metadata = make(map[string]interface{}, len(msg.Metadata))
			for k, v := range msg.Metadata {
				copied.Metadata[k] = v
			}
		}
		messages[i] = copied
	}
	return &Session{messages: messages}
}
