// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

/*
Package websocket provides the two WebSocket surfaces of MacroGuard.

Dashboards connect to the Hub and receive every detection as it is emitted:

	┌──────────────┐    ┌───────────────┐    ┌──────────┐
	│ detection bus │ -> │ BusSubscriber │ -> │   Hub    │ -> dashboard clients
	└──────────────┘    └───────────────┘    └──────────┘

Capture sources open a StreamClient on their session and push events as
JSON frames; each frame is answered in order with an ack, a status or an
error.

Message types:

  - detection: an ALERT or BLOCK (emitter.Detection)
  - stats_update: detection statistics
  - ping / pong: application-level keepalive
  - events, clear, configure, status: inbound stream requests
  - ack, error: stream replies

Both sides use gorilla/websocket with the same write pump: a 10s write
deadline, pings every 54s and a 60s pong wait.
*/
package websocket
