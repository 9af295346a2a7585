// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package input

import "sync"

// Buffer is a bounded ring of raw events. When full, Append overwrites the
// oldest event. All methods are safe for concurrent use and Append never
// waits on readers beyond the short internal lock.
type Buffer struct {
	mu    sync.RWMutex
	items []RawEvent
	head  int // index of the oldest event
	size  int
	total uint64
}

// NewBuffer creates a buffer holding at most capacity events.
// A capacity below 1 is treated as 1.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{items: make([]RawEvent, capacity)}
}

// Append adds ev, evicting the oldest event at capacity. It returns the
// number of buffered events after the append.
func (b *Buffer) Append(ev RawEvent) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.items)
	if b.size < capacity {
		b.items[(b.head+b.size)%capacity] = ev
		b.size++
	} else {
		b.items[b.head] = ev
		b.head = (b.head + 1) % capacity
	}
	b.total++
	return b.size
}

// Snapshot returns a copy of the buffered events, oldest first.
func (b *Buffer) Snapshot() []RawEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]RawEvent, b.size)
	capacity := len(b.items)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.head+i)%capacity]
	}
	return out
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return len(b.items)
}

// Total returns the number of events appended since creation or the last Reset.
func (b *Buffer) Total() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.total
}

// Reset drops every buffered event.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.items)
	b.head = 0
	b.size = 0
	b.total = 0
}
