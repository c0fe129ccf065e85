package flow

import "sync"

// DefaultBuffer is the per-subscriber buffer used by [NewSharedFlow] when
// given a non-positive size.
const DefaultBuffer = 100

// SharedFlow broadcasts one-shot values to the subscribers present at the
// time of emission.
//
// Values are sent non-blocking; if a subscriber's buffer is full, the value
// is dropped for that subscriber. Values emitted with no subscribers are
// discarded.
type SharedFlow[T any] struct {
	mu          sync.RWMutex
	buffer      int
	subscribers map[chan T]struct{}
	closed      bool
}

// NewSharedFlow creates a [SharedFlow] whose subscriber channels have the
// given buffer size.
func NewSharedFlow[T any](buffer int) *SharedFlow[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &SharedFlow[T]{
		buffer:      buffer,
		subscribers: make(map[chan T]struct{}),
	}
}

// Emit sends v to every current subscriber and reports how many received it.
func (f *SharedFlow[T]) Emit(v T) int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	delivered := 0
	for ch := range f.subscribers {
		select {
		case ch <- v:
			delivered++
		default:
			// subscriber is slow, drop the value
		}
	}
	return delivered
}

// Subscribe returns a channel receiving values emitted from now on.
//
// Caller must call [SharedFlow.Unsubscribe] when done to prevent resource leaks.
// Subscribing to a closed flow returns an already-closed channel.
func (f *SharedFlow[T]) Subscribe() <-chan T {
	ch := make(chan T, f.buffer)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		close(ch)
		return ch
	}
	f.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (f *SharedFlow[T]) Unsubscribe(ch <-chan T) {
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
func (f *SharedFlow[T]) subscriberCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers)
}

// Close closes every subscriber channel. Later emissions reach nobody.
func (f *SharedFlow[T]) Close() {
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
