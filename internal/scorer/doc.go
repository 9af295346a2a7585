// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

// Package scorer turns feature vectors into macro probabilities.
//
// RuleScorer applies weighted threshold checks and is fully deterministic.
// ModelScorer runs an inference.Backend and applies softmax to its logits.
// FallbackScorer decorates a model scorer so that an inference failure
// rescores that single window with rules instead of dropping it.
//
// Every Score carries a confidence of |p - 0.5| * 2.
package scorer
