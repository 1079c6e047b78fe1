package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrRegistryClosed settles calls that were pending when the registry shut down.
var ErrRegistryClosed = errors.New("generation registry closed")

// Call is the completion handle shared by every caller of one in-flight key.
type Call[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Done is closed once the call settles.
func (c *Call[T]) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the call settles or ctx ends. A caller that stops waiting
// does not cancel the underlying work.
func (c *Call[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Registry maps keys to in-flight calls within one process. It is created at
// process start and closed on shutdown.
type Registry[T any] struct {
	mu     sync.Mutex
	calls  map[string]*Call[T]
	closed bool
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		calls: make(map[string]*Call[T]),
	}
}

// Acquire returns the handle for key. alreadyInFlight is true when another
// caller owns the work; only the owner (alreadyInFlight == false) may Release.
func (r *Registry[T]) Acquire(key string) (call *Call[T], alreadyInFlight bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.calls[key]; ok {
		return c, true
	}

	c := &Call[T]{done: make(chan struct{})}
	if r.closed {
		c.err = ErrRegistryClosed
		close(c.done)
		return c, true
	}
	r.calls[key] = c
	return c, false
}

// Release settles the call for key with the given outcome and removes it,
// whether the outcome is a success or a failure.
func (r *Registry[T]) Release(key string, val T, err error) {
	r.mu.Lock()
	c, ok := r.calls[key]
	if ok {
		delete(r.calls, key)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	c.val = val
	c.err = err
	close(c.done)
}

// InFlight reports whether key has a pending call.
func (r *Registry[T]) InFlight(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.calls[key]
	return ok
}

// Len returns the number of pending calls.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// Close settles every pending call with ErrRegistryClosed and rejects new work.
func (r *Registry[T]) Close() {
	r.mu.Lock()
	pending := r.calls
	r.calls = make(map[string]*Call[T])
	r.closed = true
	r.mu.Unlock()

	for _, c := range pending {
		c.err = ErrRegistryClosed
		close(c.done)
	}
}
