// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package emitter

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/macroguard/internal/cache"
	"github.com/tomtom215/macroguard/internal/hysteresis"
)

// DefaultHistorySize is the number of detections kept by a Recorder.
const DefaultHistorySize = 100

// Stats summarizes recorded detections.
type Stats struct {
	Total             int64            `json:"total"`
	Alerts            int64            `json:"alerts"`
	Blocks            int64            `json:"blocks"`
	ByModality        map[string]int64 `json:"by_modality"`
	LastHour          int64            `json:"last_hour"`
	LastHourByDomain  map[string]int64 `json:"last_hour_by_domain"`
	AverageConfidence float64          `json:"average_confidence"`
	LastDetection     *time.Time       `json:"last_detection,omitempty"`
}

// Recorder is a Sink that keeps the most recent detections in memory along
// with running totals. Counts survive history eviction; Clear resets both.
type Recorder struct {
	mu       sync.RWMutex
	history  []Detection // ring buffer
	next     int
	size     int
	total    int64
	alerts   int64
	blocks   int64
	byMod    map[string]int64
	confSum  float64
	last     time.Time
	lastHour *cache.SlidingWindowCounter
	byDomain *cache.SlidingWindowStore
	now      cache.Clock
}

// NewRecorder creates a recorder keeping up to capacity detections.
// A nil clock uses time.Now.
func NewRecorder(capacity int, now cache.Clock) *Recorder {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	if now == nil {
		now = time.Now
	}
	return &Recorder{
		history:  make([]Detection, capacity),
		byMod:    make(map[string]int64),
		lastHour: cache.NewSlidingWindowCounter(time.Hour, 60, now),
		byDomain: cache.NewSlidingWindowStore(time.Hour, 60, 1000, now),
		now:      now,
	}
}

// Name implements Sink.
func (r *Recorder) Name() string { return "recorder" }

// Enabled implements Sink.
func (r *Recorder) Enabled() bool { return true }

// Send implements Sink.
func (r *Recorder) Send(_ context.Context, d Detection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history[r.next] = d
	r.next = (r.next + 1) % len(r.history)
	if r.size < len(r.history) {
		r.size++
	}

	r.total++
	switch d.Kind {
	case hysteresis.KindAlert:
		r.alerts++
	case hysteresis.KindBlock:
		r.blocks++
	}
	r.byMod[string(d.Modality)]++
	r.confSum += d.Confidence
	r.last = r.now()

	r.lastHour.IncrementOne()
	if d.Domain != "" {
		r.byDomain.Increment(d.Domain)
	}
	return nil
}

// History returns up to limit detections, newest first. limit <= 0
// returns everything held.
func (r *Recorder) History(limit int) []Detection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Detection, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.history)) % len(r.history)
		out = append(out, r.history[idx])
	}
	return out
}

// Stats returns a summary of everything recorded since the last Clear.
func (r *Recorder) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		Total:            r.total,
		Alerts:           r.alerts,
		Blocks:           r.blocks,
		ByModality:       make(map[string]int64, len(r.byMod)),
		LastHour:         r.lastHour.Count(),
		LastHourByDomain: r.byDomain.Snapshot(),
	}
	for k, v := range r.byMod {
		s.ByModality[k] = v
	}
	if r.total > 0 {
		s.AverageConfidence = r.confSum / float64(r.total)
		last := r.last
		s.LastDetection = &last
	}
	return s
}

// Clear drops the history and all counters.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.history)
	r.next, r.size = 0, 0
	r.total, r.alerts, r.blocks = 0, 0, 0
	r.byMod = make(map[string]int64)
	r.confSum = 0
	r.last = time.Time{}
	r.lastHour.Reset()
	r.byDomain.Clear()
}
