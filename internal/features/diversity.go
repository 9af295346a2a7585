// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package features

import (
	"math"

	"github.com/tomtom215/macroguard/internal/input"
)

// UnknownDiversity is reported when a window has too few positioned events
// to measure. It is far above any sensible repetitiveness threshold.
const UnknownDiversity = 100.0

// minDiversityEvents is the positioned-event count below which diversity is unknown.
const minDiversityEvents = 5

// PatternDiversity returns the population standard deviation, in pixels, of
// the distances between consecutive positioned events. Scripted motion that
// repeats the same step has diversity near zero.
func PatternDiversity(events []input.RawEvent) float64 {
	steps := make([]float64, 0, len(events))
	positioned := 0
	var px, py float64
	for _, ev := range events {
		if !ev.HasPosition {
			continue
		}
		if positioned > 0 {
			steps = append(steps, math.Hypot(ev.X-px, ev.Y-py))
		}
		px, py = ev.X, ev.Y
		positioned++
	}
	if positioned < minDiversityEvents {
		return UnknownDiversity
	}
	return stddev(steps)
}
