package graph

import (
	"sync"
	"time"
)

// HookPoint identifies a lifecycle event the engine emits.
type HookPoint string

const (
	HookRunStart  HookPoint = "run:start"
	HookRunFinish HookPoint = "run:finish"
	HookRunError  HookPoint = "run:error"

	HookGraphStart  HookPoint = "graph:start"
	HookGraphFinish HookPoint = "graph:finish"

	HookNodeBefore HookPoint = "node:before"
	HookNodeAfter  HookPoint = "node:after"
	HookNodeError  HookPoint = "node:error"

	HookModelCallBefore HookPoint = "model:before"
	HookModelCallAfter  HookPoint = "model:after"

	HookToolCall     HookPoint = "tool:call"
	HookToolValidate HookPoint = "tool:validate"
	HookToolFail     HookPoint = "tool:fail"
	HookToolResult   HookPoint = "tool:result"
)

// AllHookPoints lists every hook point the engine emits, in a stable order.
func AllHookPoints() []HookPoint {
	return []HookPoint{
		HookRunStart, HookRunFinish, HookRunError,
		HookGraphStart, HookGraphFinish,
		HookNodeBefore, HookNodeAfter, HookNodeError,
		HookModelCallBefore, HookModelCallAfter,
		HookToolCall, HookToolValidate, HookToolFail, HookToolResult,
	}
}

// Event is a read-only snapshot handed to hook callbacks. Callbacks observe
// execution only; nothing they do flows back into the run.
type Event struct {
	Point  HookPoint
	RunID  string
	Graph  string
	Node   string
	Input  interface{}
	Output interface{}
	Err    error
	At     time.Time
	Fields map[string]interface{}
}

// Callback handles a single lifecycle event.
type Callback func(Event)

// HookRegistry is a per-run registry of lifecycle callbacks. Registering on
// the same point accumulates callbacks; prior registrations are never
// replaced. Callbacks run synchronously in registration order.
type HookRegistry struct {
	mu        sync.RWMutex
	callbacks map[HookPoint][]Callback
}

// NewHookRegistry creates an empty registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{
		callbacks: make(map[HookPoint][]Callback),
	}
}

// On registers a callback for one hook point.
func (r *HookRegistry) On(point HookPoint, cb Callback) {
	if cb == nil {
		return
	}
	r.mu.Lock()
	r.callbacks[point] = append(r.callbacks[point], cb)
	r.mu.Unlock()
}

// OnAny registers a callback for every hook point.
func (r *HookRegistry) OnAny(cb Callback) {
	for _, point := range AllHookPoints() {
		r.On(point, cb)
	}
}

// Emit invokes all callbacks registered for a point, in registration order.
func (r *HookRegistry) Emit(point HookPoint, event Event) {
	if r == nil {
		return
	}

	r.mu.RLock()
	callbacks := append([]Callback(nil), r.callbacks[point]...)
	r.mu.RUnlock()
	if len(callbacks) == 0 {
		return
	}

	event.Point = point
	if event.At.IsZero() {
		event.At = time.Now()
	}
	// Copy extra fields so callbacks cannot see later mutations.
	if event.Fields != nil {
		fields := make(map[string]interface{}, len(event.Fields))
		for k, v := range event.Fields {
			fields[k] = v
		}
		event.Fields = fields
	}

	for _, cb := range callbacks {
		cb(event)
	}
}
