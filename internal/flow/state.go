package flow

import "sync"

// StateFlow holds a current value and fans every replacement out to subscribers.
//
// Each subscriber channel has a buffer of one. When a new value is published
// and the subscriber has not yet consumed the previous one, the stale value
// is discarded and replaced, so a reader always observes the latest value.
type StateFlow[T any] struct {
	mu          sync.Mutex
	value       T
	subscribers map[chan T]struct{}
	closed      bool
}

// NewStateFlow creates a [StateFlow] holding initial.
func NewStateFlow[T any](initial T) *StateFlow[T] {
	return &StateFlow[T]{
		value:       initial,
		subscribers: make(map[chan T]struct{}),
	}
}

// Value returns the current value.
func (f *StateFlow[T]) Value() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Set replaces the current value and notifies all subscribers.
//
// Set never blocks on subscribers. After Close, Set is a no-op.
func (f *StateFlow[T]) Set(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.value = v

	for ch := range f.subscribers {
		offerLatest(ch, v)
	}
}

// Subscribe returns a channel that first yields the current value and then
// every subsequent one.
//
// Caller must call [StateFlow.Unsubscribe] when done to prevent resource leaks.
// Subscribing to a closed flow returns an already-closed channel.
func (f *StateFlow[T]) Subscribe() <-chan T {
	ch := make(chan T, 1)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		close(ch)
		return ch
	}
	ch <- f.value
	f.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (f *StateFlow[T]) Unsubscribe(ch <-chan T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for subCh := range f.subscribers {
		if subCh == ch {
			delete(f.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// subscriberCount returns the number of active subscriptions.
func (f *StateFlow[T]) subscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}

// Close closes every subscriber channel. Later calls to Set are ignored.
func (f *StateFlow[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for ch := range f.subscribers {
		delete(f.subscribers, ch)
		close(ch)
	}
}

// offerLatest puts v into a one-slot channel, evicting an unread older value.
// Only the flow sends on ch and it holds the lock, so after the eviction
// the slot is free.
func offerLatest[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
