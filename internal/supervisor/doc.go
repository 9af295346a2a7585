// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

/*
Package supervisor provides process supervision for MacroGuard using suture v4.

Every long-running component runs under a hierarchical supervisor tree with
automatic restart, failure isolation and graceful shutdown:

	macroguard
	├── detection-layer
	│   ├── detection-fanout      (emitter.Fanout)
	│   ├── session-sweeper       (session.Manager)
	│   └── inference-loader      (if a model backend is configured)
	├── messaging-layer
	│   ├── websocket-hub
	│   ├── bus-subscriber        (local bus to dashboard bridge)
	│   ├── stats-broadcaster
	│   └── config-reloader       (if a config file is in use)
	└── api-layer
	    └── http-server

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	if err != nil {
	    return err
	}
	tree.AddMessagingService(services.NewRunnerService("websocket-hub", hub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	err = tree.Serve(ctx)

# Restart Policy

A service returning an error other than ctx.Err() is restarted. After
FailureThreshold failures (decaying at FailureDecay per second) the
supervisor waits FailureBackoff before the next restart. On shutdown each
service gets ShutdownTimeout to return; stragglers are reported by
UnstoppedServiceReport.

Supervisor events are logged through sutureslog into the zerolog stream.
*/
package supervisor
