// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

/*
Package audit records control-plane actions: session lifecycle, threshold
changes, the global detection switch, monitored domains, history clears
and config file reloads.

Detections themselves are not audit events; they flow through the emitter.

# Usage

	auditLog := audit.NewLogger(audit.NewMemoryStore(10000), audit.DefaultConfig())
	defer auditLog.Close()

	auditLog.Record(r, audit.EventTypeDetectionToggled, audit.OutcomeSuccess,
	    &audit.Target{Type: "detection"}, "Detection disabled",
	    map[string]bool{"enabled": false})

	events, _ := auditLog.Query(ctx, audit.QueryFilter{
	    Types: []audit.EventType{audit.EventTypeSessionConfigured},
	    Limit: 50,
	})

Events are written asynchronously; Log never blocks and drops events when
the buffer is full. A nil *Logger is valid and records nothing.

# Retention

RunWithContext deletes events older than Config.Retention every
CleanupInterval and is meant to run under the supervisor tree.
*/
package audit
