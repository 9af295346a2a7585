// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/macroguard/internal/middleware"
)

// Router wires handlers and middleware into a chi router.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router. A nil mw uses DefaultMiddlewareConfig.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(DefaultMiddlewareConfig())
	}
	return &Router{handler: handler, chiMiddleware: mw}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", router.handler.CreateSession)
			r.Get("/", router.handler.ListSessions)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", router.handler.GetSession)
				r.Delete("/", router.handler.DeleteSession)
				r.With(router.chiMiddleware.IngestRateLimit()).Post("/events", router.handler.IngestEvents)
				r.Get("/stream", router.handler.SessionStream)

				r.Post("/{modality}/clear", router.handler.ClearModality)
				r.Put("/{modality}/config", router.handler.ConfigureModality)
				r.Get("/{modality}/status", router.handler.ModalityStatus)
			})
		})

		r.Get("/detection/enabled", router.handler.GetEnabled)
		r.Put("/detection/enabled", router.handler.SetEnabled)
		r.Get("/detection/domains", router.handler.GetDomains)
		r.Put("/detection/domains", router.handler.PutDomains)

		r.Get("/detections", router.handler.Detections)
		r.Delete("/detections", router.handler.ClearDetections)
		r.Get("/detections/stats", router.handler.DetectionStats)

		r.Get("/audit", router.handler.AuditEvents)

		r.Get("/ws", router.handler.WebSocket)
	})

	return r
}
