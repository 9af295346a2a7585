// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

/*
Package emitter delivers detections out of the detection pipelines.

Every pipeline emits into one ChannelEmitter. Emit never blocks: when the
channel is full or closed it returns ErrChannelUnavailable, which callers
count and ignore.

A Fanout drains that channel and hands each detection to the registered
sinks, one worker per sink:

  - Recorder keeps the last 100 detections plus totals and a one-hour
    sliding count for the dashboard API.
  - BusSink publishes to a Watermill publisher: the in-process gochannel
    bus feeding the WebSocket hub, or NATS when built with -tags nats.
  - WebhookSink posts JSON to an HTTP endpoint, rate limited.

Wiring:

	ch := emitter.NewChannelEmitter(256)
	fan := emitter.NewFanout(ch.C(), emitter.DefaultFanoutConfig())
	fan.Register(emitter.NewRecorder(100, nil))
	go fan.RunWithContext(ctx)
*/
package emitter
