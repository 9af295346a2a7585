// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

// Package detector wires the ingestion buffer, feature extraction, scoring
// and hysteresis into one pipeline per modality.
//
// Data flow:
//
//	Ingest -> input.Buffer -> mailbox (1 slot) -> Run
//	    -> features.Extract* -> scorer.Scorer -> hysteresis.Aggregator
//	    -> emitter.Emitter
//
// A new ready window replaces one still waiting in the mailbox, so at most
// one window is scored at a time and the backlog never grows. Each scoring
// pass is bounded by Config.InferenceTimeout.
//
// Reset bumps a generation counter; a pass that started before the reset
// is discarded instead of feeding stale scores into the fresh history.
package detector
