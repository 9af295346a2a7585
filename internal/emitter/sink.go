// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package emitter

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/macroguard/internal/logging"
	"github.com/tomtom215/macroguard/internal/metrics"
)

// Sink receives detections from the Fanout.
type Sink interface {
	// Send delivers one detection.
	Send(ctx context.Context, d Detection) error

	// Name returns the sink name used in logs and metrics.
	Name() string

	// Enabled returns whether the sink should receive detections.
	Enabled() bool
}

// FanoutConfig configures a Fanout.
type FanoutConfig struct {
	// QueueSize is the per-sink backlog; detections beyond it are dropped.
	QueueSize int

	// SendTimeout bounds a single Sink.Send call.
	SendTimeout time.Duration
}

// DefaultFanoutConfig returns sensible defaults.
func DefaultFanoutConfig() FanoutConfig {
	return FanoutConfig{
		QueueSize:   64,
		SendTimeout: 10 * time.Second,
	}
}

// Fanout drains the emitter channel and delivers every detection to each
// registered sink. Every sink has its own queue and goroutine, so a slow
// webhook does not delay the recorder and per-sink order is preserved.
type Fanout struct {
	source <-chan Detection
	config FanoutConfig

	mu    sync.Mutex
	sinks []Sink
}

// NewFanout creates a fanout reading from source.
func NewFanout(source <-chan Detection, cfg FanoutConfig) *Fanout {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultFanoutConfig().QueueSize
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultFanoutConfig().SendTimeout
	}
	return &Fanout{source: source, config: cfg}
}

// Register adds a sink. Sinks registered after RunWithContext starts are
// picked up on the next run.
func (f *Fanout) Register(s Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, s)
	logging.Info().Str("sink", s.Name()).Msg("Registered detection sink")
}

// Sinks returns the registered sinks.
func (f *Fanout) Sinks() []Sink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sink(nil), f.sinks...)
}

// RunWithContext delivers detections until ctx is canceled or the source
// channel is closed. Queued detections are flushed before it returns.
func (f *Fanout) RunWithContext(ctx context.Context) error {
	sinks := f.Sinks()
	queues := make([]chan Detection, len(sinks))

	var wg sync.WaitGroup
	for i, s := range sinks {
		queues[i] = make(chan Detection, f.config.QueueSize)
		wg.Add(1)
		go func(s Sink, q <-chan Detection) {
			defer wg.Done()
			f.deliver(ctx, s, q)
		}(s, queues[i])
	}

	stop := func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
	}

	for {
		select {
		case <-ctx.Done():
			stop()
			return ctx.Err()
		case d, ok := <-f.source:
			if !ok {
				stop()
				return nil
			}
			for i, s := range sinks {
				select {
				case queues[i] <- d:
				default:
					metrics.RecordDelivery(s.Name(), false)
					logging.Warn().Str("sink", s.Name()).Str("detection_id", d.ID).Msg("Sink queue full, dropping detection")
				}
			}
		}
	}
}

func (f *Fanout) deliver(ctx context.Context, s Sink, q <-chan Detection) {
	for d := range q {
		if !s.Enabled() {
			continue
		}
		// Queued detections are still flushed after ctx is canceled.
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.config.SendTimeout)
		err := s.Send(sendCtx, d)
		cancel()

		metrics.RecordDelivery(s.Name(), err == nil)
		if err != nil {
			logging.Error().Err(err).
				Str("sink", s.Name()).
				Str("detection_id", d.ID).
				Msg("Failed to deliver detection")
		}
	}
}
