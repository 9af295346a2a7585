// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package services

import (
	"context"
)

// Runner is a long-lived component that runs until ctx is canceled.
// websocket.Hub, websocket.BusSubscriber, emitter.Fanout, session.Manager
// and config.Reloader all satisfy it.
type Runner interface {
	RunWithContext(ctx context.Context) error
}

// RunnerService adapts a Runner to suture.Service under a fixed name.
//
//	tree.AddMessagingService(services.NewRunnerService("websocket-hub", hub))
type RunnerService struct {
	runner Runner
	name   string
}

// NewRunnerService wraps r.
func NewRunnerService(name string, r Runner) *RunnerService {
	return &RunnerService{runner: r, name: name}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	return s.runner.RunWithContext(ctx)
}

// String names the service in supervisor events.
func (s *RunnerService) String() string {
	return s.name
}
