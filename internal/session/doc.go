// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

// Package session manages detection sessions.
//
// A session is one capture source. It owns a keyboard and a pointer
// detector.Pipeline, each with its own scoring goroutine; nothing is
// shared between sessions or between modalities.
//
// The Manager also holds the process-wide switches: the detection
// enable toggle and the monitored-domain filter. Idle sessions are evicted
// by RunWithContext, which runs under the supervisor tree.
package session
