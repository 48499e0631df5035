package graph

import "sync"

// Storage is per-run typed key-value scratch space. Keys carry their value
// type; callers namespace key names to avoid collisions between independent
// features. Storage has no implicit lifecycle: whoever sets a key removes it.
type Storage struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

func newStorage() *Storage {
	return &Storage{values: make(map[string]interface{})}
}

// clone produces an independent copy for a forked context.
func (s *Storage) clone() *Storage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make(map[string]interface{}, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	return &Storage{values: values}
}

// Len returns the number of stored keys.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Key is an opaque typed storage identifier.
type Key[T any] struct {
	name string
}

// NewKey creates a typed key. The name is the collision namespace.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the key's name.
func (k Key[T]) Name() string {
	return k.name
}

// Get reads a typed value from the context's storage.
func Get[T any](ec *ExecContext, key Key[T]) (T, bool) {
	ec.storage.mu.RLock()
	raw, exists := ec.storage.values[key.name]
	ec.storage.mu.RUnlock()

	if !exists {
		var zero T
		return zero, false
	}
	value, ok := raw.(T)
	if !ok {
		var zero T
		return zero, false
	}
	return value, true
}

// Set writes a typed value into the context's storage.
func Set[T any](ec *ExecContext, key Key[T], value T) {
	ec.storage.mu.Lock()
	ec.storage.values[key.name] = value
	ec.storage.mu.Unlock()
}

// Remove deletes a key from the context's storage.
func Remove[T any](ec *ExecContext, key Key[T]) {
	ec.storage.mu.Lock()
	delete(ec.storage.values, key.name)
	ec.storage.mu.Unlock()
}
