// Package events implements the process-wide "unauthorized" broadcast.
//
// Any component that receives an HTTP 401 calls NotifyAll; interested parties
// (the CLI login prompt, tests) subscribe a zero-argument callback.
package events

import (
	"log/slog"
	"sync"
)

// Listener is notified once per broadcast.
type Listener func()

// Subscription identifies one registered listener. Registering the same
// function twice yields two distinct subscriptions.
type Subscription struct {
	fn       Listener
	registry *Registry
	once     sync.Once
}

// Unsubscribe removes the listener. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.registry.Unsubscribe(s)
	})
}

// Registry is an ordered list of listeners.
type Registry struct {
	mu        sync.Mutex
	listeners []*Subscription
	logger    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger.With("component", "events")}
}

// Subscribe appends fn and returns its disposer.
func (r *Registry) Subscribe(fn Listener) *Subscription {
	sub := &Subscription{fn: fn, registry: r}
	r.mu.Lock()
	r.listeners = append(r.listeners, sub)
	r.mu.Unlock()
	return sub
}

// Unsubscribe removes sub if it is still registered.
func (r *Registry) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.listeners {
		if l == sub {
			r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered listeners.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// NotifyAll calls every listener registered at the time of the call, in
// registration order, on the caller's goroutine. A panicking listener is
// logged and skipped.
func (r *Registry) NotifyAll() {
	r.mu.Lock()
	snapshot := make([]*Subscription, len(r.listeners))
	copy(snapshot, r.listeners)
	r.mu.Unlock()

	for i, sub := range snapshot {
		r.invoke(i, sub.fn)
	}
}

func (r *Registry) invoke(index int, fn Listener) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("unauthorized listener panicked",
				slog.Int("index", index),
				slog.Any("panic", rec),
			)
		}
	}()
	fn()
}

// Scoped registers fn for the duration of body and removes it on every exit
// path, including a panic in body.
func (r *Registry) Scoped(fn Listener, body func() error) error {
	sub := r.Subscribe(fn)
	defer sub.Unsubscribe()
	return body()
}
