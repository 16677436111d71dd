package fsm

import (
	"context"
	"sync"
)

// Mailbox is a single-slot queue from an input goroutine to a worker.
// Posting never blocks: a pending intent is merged with the new one, so a
// slow worker sees one combined intent instead of a backlog.
type Mailbox[T any] struct {
	mu      sync.Mutex
	pending T
	full    bool
	merge   func(pending, next T) T
	ready   chan struct{}
}

// NewMailbox creates a mailbox. merge combines a pending intent with a new
// one; nil keeps the newest.
func NewMailbox[T any](merge func(pending, next T) T) *Mailbox[T] {
	if merge == nil {
		merge = func(_, next T) T { return next }
	}
	return &Mailbox[T]{merge: merge, ready: make(chan struct{}, 1)}
}

// Post stores v, merging it with any pending intent.
func (m *Mailbox[T]) Post(v T) {
	m.mu.Lock()
	if m.full {
		v = m.merge(m.pending, v)
	}
	m.pending, m.full = v, true
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Take removes and returns the pending intent, if any.
func (m *Mailbox[T]) Take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.pending, m.full
	var zero T
	m.pending, m.full = zero, false
	return v, ok
}

// Pending reports whether an intent is waiting.
func (m *Mailbox[T]) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.full
}

// Ready is signaled after a Post. A signal may be stale; callers Take and
// check ok.
func (m *Mailbox[T]) Ready() <-chan struct{} {
	return m.ready
}

// Wait blocks until an intent is available or ctx is done.
func (m *Mailbox[T]) Wait(ctx context.Context) (T, error) {
	for {
		if v, ok := m.Take(); ok {
			return v, nil
		}
		select {
		case <-m.ready:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}
