// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

// Package metrics declares the Prometheus instruments for MacroGuard.
//
// All collectors are registered on the default registry through promauto and
// exposed by the API at /metrics. The main groups are:
//
//   - ingestion: events accepted or ignored per modality
//   - scoring: windows scored by method, skipped by reason, coalesced, and
//     rescored after inference failures
//   - inference: backend latency, readiness and circuit breaker state
//   - decisions: ALERT/BLOCK counts and cooldown suppressions
//   - emitter: per-sink delivered and dropped detections
//   - sessions, WebSocket connections, API requests, config reloads
//
// Helper functions (RecordScore, RecordDecision, ...) keep label usage
// consistent across packages.
package metrics
