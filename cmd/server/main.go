// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/macroguard/internal/api"
	"github.com/tomtom215/macroguard/internal/config"
	"github.com/tomtom215/macroguard/internal/emitter"
	"github.com/tomtom215/macroguard/internal/logging"
	"github.com/tomtom215/macroguard/internal/session"
	"github.com/tomtom215/macroguard/internal/supervisor"
	"github.com/tomtom215/macroguard/internal/supervisor/services"
	ws "github.com/tomtom215/macroguard/internal/websocket"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.LoggingSettings())

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("MacroGuard stopped with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

func run(cfg *config.Config) error {
	logging.Info().
		Int("port", cfg.Server.Port).
		Str("inference_backend", cfg.Inference.Backend).
		Bool("detection_enabled", cfg.Detection.Enabled).
		Strs("monitored_domains", cfg.Detection.MonitoredDomains).
		Msg("Starting MacroGuard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	// Detection layer
	backends, err := buildBackend(cfg)
	if err != nil {
		return err
	}
	if backends.backend != nil {
		defer func() {
			if err := backends.backend.Close(context.Background()); err != nil {
				logging.Warn().Err(err).Msg("Error closing inference backend")
			}
		}()
	}
	if backends.loader != nil {
		tree.AddDetectionService(services.NewBackendLoaderService(backends.loader))
	}
	sc := buildScorer(cfg, backends.backend)

	em := emitter.NewChannelEmitter(cfg.Emitter.ChannelBuffer)
	defer em.Close()
	fanout := emitter.NewFanout(em.C(), cfg.Fanout())

	localBus := emitter.NewLocalBus(cfg.Emitter.BusBuffer, nil)
	defer func() { _ = localBus.Close() }()
	sinks := registerSinks(cfg, fanout, localBus)
	defer func() {
		for _, pub := range sinks.publishers {
			_ = pub.Close()
		}
	}()
	tree.AddDetectionService(services.NewRunnerService("detection-fanout", fanout))

	sessions := session.NewManager(
		cfg.Sessions(),
		pipelineFactory(cfg, sc, backends.backend, em),
		session.NewDomainFilter(cfg.Detection.MonitoredDomains),
	)
	defer sessions.Close()
	if err := config.Apply(cfg, sessions); err != nil {
		return fmt.Errorf("apply detection settings: %w", err)
	}
	tree.AddDetectionService(services.NewRunnerService("session-sweeper", sessions))

	auditLog := buildAuditLogger(cfg)
	if auditLog != nil {
		defer func() { _ = auditLog.Close() }()
	}

	// Messaging layer
	hub := ws.NewHub()
	tree.AddMessagingService(services.NewRunnerService("websocket-hub", hub))
	tree.AddMessagingService(services.NewRunnerService("bus-subscriber", ws.NewBusSubscriber(hub, localBus, emitter.DetectionTopic)))
	tree.AddMessagingService(services.NewStatsBroadcastService(sinks.recorder, hub, 0))
	if path := config.FilePath(); path != "" {
		reloader := config.NewReloader(path, sessions)
		reloader.OnResult = auditLog.RecordReload
		tree.AddMessagingService(services.NewRunnerService("config-reloader", reloader))
	}
	if auditLog != nil {
		tree.AddMessagingService(services.NewRunnerService("audit-retention", auditLog))
	}

	// API layer
	handler := api.NewHandler(sessions, sinks.recorder,
		api.WithHub(hub),
		api.WithBackend(backends.backend),
		api.WithAllowedOrigins(cfg.Security.CORSOrigins),
		api.WithAudit(auditLog),
	)
	mw := api.NewChiMiddleware(api.MiddlewareConfig{
		AllowedOrigins:    cfg.Security.CORSOrigins,
		APIRequests:       cfg.Security.RateLimitReqs,
		APIWindow:         cfg.Security.RateLimitWindow,
		IngestRequests:    cfg.Security.IngestRateLimitReqs,
		RateLimitDisabled: cfg.Security.RateLimitDisabled,
	})
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handler, mw).SetupChi(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	err = tree.Serve(ctx)

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
