package notify

import (
	"context"
	"sync"
)

// Waiter fans ready notifications out to local subscribers by key.
type Waiter struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]chan struct{}
}

// NewWaiter creates an empty Waiter.
func NewWaiter() *Waiter {
	return &Waiter{subs: make(map[string]map[uint64]chan struct{})}
}

// Subscribe returns a channel that is closed when key is announced, and a
// cancel func that must be called once the caller stops waiting.
func (w *Waiter) Subscribe(key string) (<-chan struct{}, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++
	ch := make(chan struct{})
	if w.subs[key] == nil {
		w.subs[key] = make(map[uint64]chan struct{})
	}
	w.subs[key][id] = ch

	return ch, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if set, ok := w.subs[key]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(w.subs, key)
			}
		}
	}
}

// Notify wakes every subscriber of key and returns how many there were.
func (w *Waiter) Notify(key string) int {
	w.mu.Lock()
	set := w.subs[key]
	delete(w.subs, key)
	w.mu.Unlock()

	for _, ch := range set {
		close(ch)
	}
	return len(set)
}

// Pending returns the number of subscribers waiting on key.
func (w *Waiter) Pending(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subs[key])
}

// PublishReady notifies local subscribers directly, for processes that
// generate and serve without Redis in between.
func (w *Waiter) PublishReady(_ context.Context, key string) error {
	w.Notify(key)
	return nil
}
