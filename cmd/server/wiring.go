// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package main

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/macroguard/internal/audit"
	"github.com/tomtom215/macroguard/internal/config"
	"github.com/tomtom215/macroguard/internal/detector"
	"github.com/tomtom215/macroguard/internal/emitter"
	"github.com/tomtom215/macroguard/internal/inference"
	"github.com/tomtom215/macroguard/internal/input"
	"github.com/tomtom215/macroguard/internal/logging"
	"github.com/tomtom215/macroguard/internal/scorer"
	"github.com/tomtom215/macroguard/internal/session"
	"github.com/tomtom215/macroguard/internal/supervisor/services"
)

// backendSet is the configured model backend. loader is nil when the
// backend needs no background load.
type backendSet struct {
	backend inference.Backend
	loader  services.Loader
}

// buildBackend creates the model backend named by inference.backend.
// "none" yields an empty set and rule-only scoring.
func buildBackend(cfg *config.Config) (backendSet, error) {
	switch cfg.Inference.Backend {
	case "", "none":
		return backendSet{}, nil
	case "http":
		b := inference.NewHTTPBackend(cfg.HTTPBackend())
		return backendSet{backend: b, loader: b}, nil
	case "wasm":
		b := inference.NewWasmBackend(cfg.WasmBackend())
		return backendSet{backend: b, loader: b}, nil
	default:
		return backendSet{}, fmt.Errorf("unknown inference backend %q", cfg.Inference.Backend)
	}
}

// buildScorer returns the rule scorer alone, or the model scorer falling
// back to rules when a backend is configured.
func buildScorer(cfg *config.Config, backend inference.Backend) scorer.Scorer {
	rules := scorer.NewRuleScorer()
	if backend == nil {
		return rules
	}
	return scorer.NewFallbackScorer(
		scorer.NewModelScorer(backend, nil),
		rules,
		cfg.Inference.FallbackWhenNotReady,
	)
}

// pipelineFactory builds per-session pipelines sharing one scorer, backend
// and emitter.
func pipelineFactory(cfg *config.Config, sc scorer.Scorer, backend inference.Backend, em emitter.Emitter) session.PipelineFactory {
	return func(sessionID string, m input.Modality) (*detector.Pipeline, error) {
		return detector.New(cfg.Pipeline(m), detector.Deps{
			Scorer:    sc,
			Backend:   backend,
			Emitter:   em,
			SessionID: sessionID,
		})
	}
}

// sinkSet holds the fanout sinks and the publishers main must close.
type sinkSet struct {
	recorder   *emitter.Recorder
	publishers []message.Publisher
}

// registerSinks attaches the recorder, the local bus and any configured
// webhook or NATS sinks to fanout.
func registerSinks(cfg *config.Config, fanout *emitter.Fanout, localBus message.Publisher) sinkSet {
	set := sinkSet{recorder: emitter.NewRecorder(cfg.Emitter.HistorySize, nil)}
	fanout.Register(set.recorder)
	fanout.Register(emitter.NewBusSink("local-bus", localBus, emitter.DetectionTopic))

	if cfg.Emitter.Webhook.Enabled {
		fanout.Register(emitter.NewWebhookSink(cfg.WebhookSink()))
		logging.Info().Str("url", cfg.Emitter.Webhook.URL).Msg("Webhook sink enabled")
	}

	if cfg.Emitter.NATS.Enabled {
		pub, err := emitter.NewNATSPublisher(cfg.NATSPublisher(), watermill.NewSlogLogger(logging.NewSlogLogger()))
		if err != nil {
			logging.Warn().Err(err).Msg("NATS sink disabled")
		} else {
			topic := cfg.Emitter.NATS.Topic
			if topic == "" {
				topic = emitter.DetectionTopic
			}
			fanout.Register(emitter.NewBusSink("nats", pub, topic))
			set.publishers = append(set.publishers, pub)
			logging.Info().Str("url", cfg.Emitter.NATS.URL).Str("topic", topic).Msg("NATS sink enabled")
		}
	}
	return set
}

// buildAuditLogger returns nil when the audit trail is disabled.
func buildAuditLogger(cfg *config.Config) *audit.Logger {
	if !cfg.Audit.Enabled {
		return nil
	}
	return audit.NewLogger(audit.NewMemoryStore(cfg.Audit.MaxEvents), audit.Config{
		Enabled:         true,
		Retention:       cfg.Audit.Retention,
		CleanupInterval: cfg.Audit.CleanupInterval,
		BufferSize:      cfg.Audit.BufferSize,
		LogEvents:       cfg.Audit.LogEvents,
	})
}
