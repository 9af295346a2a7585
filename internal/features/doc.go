// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

// Package features turns a window of raw input events into a fixed-shape
// numeric vector.
//
// Extraction is a pure function of the window: the same events always give
// the same vector, and a window below the modality minimum returns
// ErrInsufficientData instead of a partial result.
//
// Keyboard windows yield six press-to-press and dwell statistics in
// seconds. Pointer windows yield a SeqLen x 3 (or x 5 with kinematics)
// matrix of event code and viewport-normalized position rows.
// PatternDiversity measures how repetitive pointer steps are and feeds the
// pointer decision gate.
package features
