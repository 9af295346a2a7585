// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

// Package hysteresis turns a stream of per-window macro probabilities into
// ALERT and BLOCK decisions.
//
// # State machine
//
// The aggregator collects scores until it holds K of them, then evaluates
// every new sample against the rolling window:
//
//	COLLECTING (len < K) -> WATCHING (len == K) -> fire -> COLLECTING
//
// BLOCK takes precedence over ALERT. Each kind has its own cooldown, and
// firing either one clears the history, so the next decision needs K
// fresh windows of evidence.
//
// # Gate
//
// Observe takes a gate flag that must be true for anything to fire. The
// pointer pipeline passes features.PatternDiversity(window) below
// Config.RepetitivenessPx; keyboard always passes true.
//
// # Thread Safety
//
// All methods are safe for concurrent use. The detector pipeline keeps a
// single goroutine as the only caller of Observe.
package hysteresis
