// Package buffer holds captured events between capture and transport. The
// buffer is ordered and append-only; events leave it exactly once, through
// Drain, and come back only through RequeueFront after a failed send.
package buffer

import (
	"sync"

	"github.com/adeelakhani/swing-sdk/event"
)

// DefaultMaxBatch is the append count that triggers an immediate flush
// request.
const DefaultMaxBatch = 50

// Buffer is an ordered in-memory event queue. The onFull callback fires
// outside the lock whenever an append brings the count to the threshold or
// beyond, so the owner can start a drain+send cycle right away; the owner is
// responsible for serializing those cycles.
type Buffer struct {
	mu       sync.Mutex
	events   []event.Event
	maxBatch int
	onFull   func()
}

// New creates a Buffer. maxBatch values below 1 fall back to
// DefaultMaxBatch. onFull may be nil.
func New(maxBatch int, onFull func()) *Buffer {
	if maxBatch < 1 {
		maxBatch = DefaultMaxBatch
	}
	return &Buffer{maxBatch: maxBatch, onFull: onFull}
}

// Append adds one event at the tail, preserving insertion order.
func (b *Buffer) Append(ev event.Event) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	full := len(b.events) >= b.maxBatch
	b.mu.Unlock()

	if full && b.onFull != nil {
		b.onFull()
	}
}

// Drain atomically removes and returns everything currently buffered, in
// insertion order. Returns nil when empty.
func (b *Buffer) Drain() []event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.events) == 0 {
		return nil
	}
	out := b.events
	b.events = nil
	return out
}

// RequeueFront reinserts previously drained events at the head, keeping
// their original relative order ahead of anything appended since. Used only
// when a send fails.
func (b *Buffer) RequeueFront(events []event.Event) {
	if len(events) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	merged := make([]event.Event, 0, len(events)+len(b.events))
	merged = append(merged, events...)
	merged = append(merged, b.events...)
	b.events = merged
}

// Len reports the current number of buffered events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
