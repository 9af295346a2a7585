// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

/*
Package services provides suture.Service wrappers for MacroGuard components.

Each wrapper translates a component lifecycle into suture's context-aware
Serve pattern and names itself through fmt.Stringer for supervisor events.

# Available Services

HTTPServerService wraps *http.Server: ListenAndServe in a goroutine,
graceful Shutdown on cancel.

RunnerService wraps any component with RunWithContext(ctx) error:
  - websocket.Hub (dashboard broadcast)
  - websocket.BusSubscriber (bus to hub bridge)
  - emitter.Fanout (detection delivery to sinks)
  - session.Manager (idle session sweeper)
  - config.Reloader (config file hot reload)

BackendLoaderService loads the inference model in the background. Failed
loads return an error so the supervisor retries with backoff; until then
pipelines fall back to rule scoring.

StatsBroadcastService periodically pushes detection stats to dashboards.

# Error Handling

Returning ctx.Err() signals a clean stop. Any other error is treated as a
failure and restarted according to the tree's FailureThreshold and
FailureBackoff.
*/
package services
