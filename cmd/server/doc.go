// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

/*
Package main is the entry point for the MacroGuard server.

MacroGuard scores streams of keyboard and pointer events for signs of
automated input (macros, bots, scripted clickers) and emits ALERT or BLOCK
detections once suspicion is sustained across several analysis windows.

# Application Architecture

	macroguard
	├── detection-layer
	│   ├── detection-fanout   recorder, local bus, webhook, NATS sinks
	│   ├── session-sweeper    evicts idle capture sessions
	│   └── inference-loader   loads the HTTP or WASM model (optional)
	├── messaging-layer
	│   ├── websocket-hub      dashboard broadcast
	│   ├── bus-subscriber     local bus to hub
	│   ├── stats-broadcaster
	│   ├── config-reloader    hot reload of detection settings (optional)
	│   └── audit-retention    prunes the control-plane audit trail
	└── api-layer
	    └── http-server        chi router on :8790

Each session owns one pipeline per modality. A pipeline buffers events,
extracts features, scores windows (model with rule fallback, or rules
only) and feeds a hysteresis aggregator. Fired detections go through a
non-blocking channel into the fanout.

Control-plane changes (sessions, thresholds, detection switch, domains,
history clears, config reloads) are kept in an in-memory audit trail
served at GET /api/v1/audit.

# Configuration

Koanf v2 layers, highest priority first:
  - Environment variables (HTTP_PORT, INFERENCE_BACKEND, KEYBOARD_ALERT_THRESHOLD, ...)
  - Config file (CONFIG_PATH, or ./config.yaml, /etc/macroguard/config.yaml)
  - Built-in defaults

# Build Tags

	go build ./cmd/server               # local bus and webhook sinks
	go build -tags nats ./cmd/server    # adds the NATS detection sink

# Signal Handling

SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains
in-flight requests, sessions stop their pipelines and the bus and backend
are closed.
*/
package main
