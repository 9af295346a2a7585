// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

/*
Package cache provides bucketed sliding-window counters.

The detection recorder uses them to answer "how many detections in the
last hour" without keeping every timestamp:

	recent := cache.NewSlidingWindowCounter(time.Hour, 60, nil)
	recent.IncrementOne()
	n := recent.Count()

SlidingWindowStore keys counters by an arbitrary string (modality, domain).

# Thread Safety

All types are safe for concurrent use.
*/
package cache
