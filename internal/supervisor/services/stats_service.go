// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package services

import (
	"context"
	"time"

	"github.com/tomtom215/macroguard/internal/emitter"
)

// StatsSource provides detection totals. emitter.Recorder satisfies it.
type StatsSource interface {
	Stats() emitter.Stats
}

// StatsBroadcaster pushes stats to dashboard clients. websocket.Hub
// satisfies it.
type StatsBroadcaster interface {
	BroadcastStatsUpdate(stats emitter.Stats)
	GetClientCount() int
}

// StatsBroadcastService periodically sends detection stats to connected
// dashboards. Ticks with no clients are skipped.
type StatsBroadcastService struct {
	source   StatsSource
	hub      StatsBroadcaster
	interval time.Duration
}

// NewStatsBroadcastService creates the service. A non-positive interval
// means 5s.
func NewStatsBroadcastService(source StatsSource, hub StatsBroadcaster, interval time.Duration) *StatsBroadcastService {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &StatsBroadcastService{source: source, hub: hub, interval: interval}
}

// Serve implements suture.Service.
func (s *StatsBroadcastService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.hub.GetClientCount() > 0 {
				s.hub.BroadcastStatsUpdate(s.source.Stats())
			}
		}
	}
}

// String names the service in supervisor events.
func (s *StatsBroadcastService) String() string {
	return "stats-broadcaster"
}
