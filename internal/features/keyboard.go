// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package features

import (
	"fmt"
	"time"

	"github.com/tomtom215/macroguard/internal/input"
)

// KeyboardOptions controls keyboard extraction.
type KeyboardOptions struct {
	// MinEvents is the minimum number of buffered events (any kind).
	MinEvents int
	// AnalysisWindow limits extraction to the most recent events; 0 uses all.
	AnalysisWindow int
	// MinIntervals is the minimum number of valid press-to-press intervals.
	MinIntervals int
	// MaxInterval is the upper bound (inclusive) for a valid interval.
	MaxInterval time.Duration
	// MaxDwell discards dwell times at or above this bound.
	MaxDwell time.Duration
	// DefaultDwell is used for key presses with no matching release.
	DefaultDwell time.Duration
}

// DefaultKeyboardOptions returns the standard keyboard extraction settings.
func DefaultKeyboardOptions() KeyboardOptions {
	return KeyboardOptions{
		MinEvents:      10,
		AnalysisWindow: 20,
		MinIntervals:   3,
		MaxInterval:    10 * time.Second,
		MaxDwell:       time.Second,
		DefaultDwell:   50 * time.Millisecond,
	}
}

// ExtractKeyboard computes [p2p mean, std, min, max, dwell mean, std] in
// seconds from a keyboard window.
func ExtractKeyboard(events []input.RawEvent, opts KeyboardOptions) (Vector, error) {
	if len(events) < opts.MinEvents {
		return Vector{}, fmt.Errorf("keyboard window has %d events, need %d: %w",
			len(events), opts.MinEvents, ErrInsufficientData)
	}

	recent := events
	if opts.AnalysisWindow > 0 && len(recent) > opts.AnalysisWindow {
		recent = recent[len(recent)-opts.AnalysisWindow:]
	}

	downs := make([]int, 0, len(recent))
	for i := range recent {
		if recent[i].Kind == input.KindKeyDown {
			downs = append(downs, i)
		}
	}

	maxInterval := opts.MaxInterval.Seconds()
	intervals := make([]float64, 0, len(downs))
	for i := 1; i < len(downs); i++ {
		dt := recent[downs[i]].Timestamp.Sub(recent[downs[i-1]].Timestamp).Seconds()
		if dt > 0 && dt <= maxInterval {
			intervals = append(intervals, dt)
		}
	}
	if len(intervals) < opts.MinIntervals {
		return Vector{}, fmt.Errorf("keyboard window has %d valid intervals, need %d: %w",
			len(intervals), opts.MinIntervals, ErrInsufficientData)
	}

	dwells := dwellTimes(recent, downs, opts)

	lo, hi := minMax(intervals)
	values := make([]float64, KeyboardDim)
	values[P2PMean] = mean(intervals)
	values[P2PStd] = stddev(intervals)
	values[P2PMin] = lo
	values[P2PMax] = hi
	values[DwellMean] = mean(dwells)
	values[DwellStd] = stddev(dwells)

	return Vector{Modality: input.ModalityKeyboard, Rows: 1, Cols: KeyboardDim, Values: values, Real: 1}, nil
}

// dwellTimes pairs each key-down with the next later key-up of the same key.
func dwellTimes(events []input.RawEvent, downs []int, opts KeyboardOptions) []float64 {
	maxDwell := opts.MaxDwell.Seconds()
	fallback := opts.DefaultDwell.Seconds()

	dwells := make([]float64, 0, len(downs))
	for _, di := range downs {
		down := events[di]
		matched := false
		for j := di + 1; j < len(events); j++ {
			up := events[j]
			if up.Kind != input.KindKeyUp || keyID(up) != keyID(down) {
				continue
			}
			matched = true
			if d := up.Timestamp.Sub(down.Timestamp).Seconds(); d > 0 && d < maxDwell {
				dwells = append(dwells, d)
			}
			break
		}
		if !matched {
			dwells = append(dwells, fallback)
		}
	}
	if len(dwells) == 0 {
		dwells = append(dwells, fallback)
	}
	return dwells
}

func keyID(e input.RawEvent) string {
	if e.Code != "" {
		return e.Code
	}
	return e.Key
}
