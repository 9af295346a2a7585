// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package cache

import (
	"sync"
	"time"
)

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// SlidingWindowCounter counts events within a trailing time window.
// Time is divided into buckets; Count sums the buckets still inside the
// window, so the resolution is windowSize/numBuckets.
//
// Complexity:
//   - Increment: O(1) amortized
//   - Count: O(k) where k = number of buckets
//   - Memory: O(k)
type SlidingWindowCounter struct {
	mu         sync.Mutex
	buckets    []int64
	bucketSize time.Duration
	numBuckets int
	current    int
	bucketTime time.Time // start of the current bucket
	now        Clock
}

// NewSlidingWindowCounter creates a counter over windowSize split into
// numBuckets buckets. A nil clock uses time.Now.
//
// Example: NewSlidingWindowCounter(time.Hour, 60, nil) gives a one-hour
// window with one-minute resolution.
func NewSlidingWindowCounter(windowSize time.Duration, numBuckets int, now Clock) *SlidingWindowCounter {
	if numBuckets <= 0 {
		numBuckets = 10
	}
	if windowSize <= 0 {
		windowSize = 5 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &SlidingWindowCounter{
		buckets:    make([]int64, numBuckets),
		bucketSize: windowSize / time.Duration(numBuckets),
		numBuckets: numBuckets,
		bucketTime: now(),
		now:        now,
	}
}

// Increment adds delta to the current bucket.
func (sw *SlidingWindowCounter) Increment(delta int64) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.advance()
	sw.buckets[sw.current] += delta
}

// IncrementOne adds 1 to the current bucket.
func (sw *SlidingWindowCounter) IncrementOne() {
	sw.Increment(1)
}

// Count returns the sum of all buckets in the window.
func (sw *SlidingWindowCounter) Count() int64 {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.advance()
	var total int64
	for _, c := range sw.buckets {
		total += c
	}
	return total
}

// Reset clears all buckets.
func (sw *SlidingWindowCounter) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	clear(sw.buckets)
	sw.current = 0
	sw.bucketTime = sw.now()
}

// advance rotates out buckets that have left the window.
// Must be called with lock held.
func (sw *SlidingWindowCounter) advance() {
	elapsed := int(sw.now().Sub(sw.bucketTime) / sw.bucketSize)
	if elapsed <= 0 {
		return
	}

	if elapsed >= sw.numBuckets {
		clear(sw.buckets)
		sw.current = 0
		sw.bucketTime = sw.now()
		return
	}
	for i := 0; i < elapsed; i++ {
		sw.current = (sw.current + 1) % sw.numBuckets
		sw.buckets[sw.current] = 0
	}
	// Keep the bucket grid aligned so partial buckets are not lost.
	sw.bucketTime = sw.bucketTime.Add(time.Duration(elapsed) * sw.bucketSize)
}

// SlidingWindowStore keeps one SlidingWindowCounter per key.
//
//	store := NewSlidingWindowStore(time.Hour, 60, 0, nil)
//	store.Increment("pointer")
//	n := store.Count("pointer")
type SlidingWindowStore struct {
	mu         sync.RWMutex
	counters   map[string]*SlidingWindowCounter
	windowSize time.Duration
	numBuckets int
	maxKeys    int // 0 = unlimited
	now        Clock
}

// NewSlidingWindowStore creates an empty store.
func NewSlidingWindowStore(windowSize time.Duration, numBuckets, maxKeys int, now Clock) *SlidingWindowStore {
	return &SlidingWindowStore{
		counters:   make(map[string]*SlidingWindowCounter),
		windowSize: windowSize,
		numBuckets: numBuckets,
		maxKeys:    maxKeys,
		now:        now,
	}
}

// Increment adds 1 to the counter for key.
func (s *SlidingWindowStore) Increment(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counter, ok := s.counters[key]
	if !ok {
		if s.maxKeys > 0 && len(s.counters) >= s.maxKeys {
			// Drop an arbitrary key; map order is random.
			for k := range s.counters {
				delete(s.counters, k)
				break
			}
		}
		counter = NewSlidingWindowCounter(s.windowSize, s.numBuckets, s.now)
		s.counters[key] = counter
	}
	counter.IncrementOne()
}

// Count returns the windowed count for key.
func (s *SlidingWindowStore) Count(key string) int64 {
	s.mu.RLock()
	counter, ok := s.counters[key]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return counter.Count()
}

// Snapshot returns the windowed count of every key with a non-zero count.
func (s *SlidingWindowStore) Snapshot() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int64, len(s.counters))
	for k, c := range s.counters {
		if n := c.Count(); n > 0 {
			out[k] = n
		}
	}
	return out
}

// Clear removes all counters.
func (s *SlidingWindowStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = make(map[string]*SlidingWindowCounter)
}

// CleanupInactive removes counters with nothing left in the window and
// returns how many were removed.
func (s *SlidingWindowStore) CleanupInactive() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, c := range s.counters {
		if c.Count() == 0 {
			delete(s.counters, k)
			removed++
		}
	}
	return removed
}
