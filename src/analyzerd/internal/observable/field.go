// Package observable provides the UI-facing state fields published by each session.
package observable

import (
	"sync"
)

// Subscription represents one subscriber's attachment to a Field.
type Subscription interface {
	// Dispose detaches the subscriber. Other subscribers are unaffected.
	Dispose()
}

// Field is an observable value holder. Writes always store the value;
// they are published to subscribers only while the field is enabled.
// Re-enabling does not replay values written while disabled.
type Field[T any] struct {
	mu      sync.Mutex
	value   T
	enabled bool
	closed  bool
	subs    map[int]func(T)
	nextID  int
}

// NewField returns a disabled Field holding the zero value.
func NewField[T any]() *Field[T] {
	return &Field[T]{subs: make(map[int]func(T))}
}

// Set stores the value unconditionally and, iff the field is enabled,
// publishes it synchronously to all current subscribers. Writes after
// Close are no-ops.
func (f *Field[T]) Set(value T) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.value = value
	if !f.enabled {
		f.mu.Unlock()
		return
	}
	handlers := make([]func(T), 0, len(f.subs))
	for _, h := range f.subs {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(value)
	}
}

// Get returns the current stored value, published or not.
func (f *Field[T]) Get() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Subscribe attaches a handler for published values and returns a
// disposable subscription. On a closed field the subscription is inert.
func (f *Field[T]) Subscribe(handler func(T)) Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return subscription{dispose: func() {}}
	}
	id := f.nextID
	f.nextID++
	f.subs[id] = handler
	return subscription{dispose: func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}}
}

func (f *Field[T]) setEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.enabled = enabled
}

func (f *Field[T]) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.enabled = false
	f.subs = make(map[int]func(T))
}

type subscription struct {
	dispose func()
}

func (s subscription) Dispose() {
	s.dispose()
}
