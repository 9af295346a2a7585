// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package emitter

import (
	"errors"
	"sync"

	"github.com/tomtom215/macroguard/internal/metrics"
)

// ErrChannelUnavailable means the outbound channel was full or closed.
// Delivery is best effort; callers log and continue.
var ErrChannelUnavailable = errors.New("detection channel unavailable")

// Emitter publishes detections.
type Emitter interface {
	Emit(d Detection) error
}

// ChannelEmitter publishes to a single buffered Go channel without blocking.
type ChannelEmitter struct {
	mu     sync.RWMutex
	ch     chan Detection
	closed bool
}

// NewChannelEmitter creates an emitter with the given buffer size.
func NewChannelEmitter(buffer int) *ChannelEmitter {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelEmitter{ch: make(chan Detection, buffer)}
}

// Emit sends d if there is room. It never blocks.
func (e *ChannelEmitter) Emit(d Detection) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		metrics.RecordDelivery("channel", false)
		return ErrChannelUnavailable
	}
	select {
	case e.ch <- d:
		metrics.RecordDelivery("channel", true)
		return nil
	default:
		metrics.RecordDelivery("channel", false)
		return ErrChannelUnavailable
	}
}

// C returns the receive side of the outbound channel.
func (e *ChannelEmitter) C() <-chan Detection {
	return e.ch
}

// Close closes the channel. Later Emit calls return ErrChannelUnavailable.
func (e *ChannelEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
