// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// MiddlewareConfig configures the router's CORS and rate limiting.
type MiddlewareConfig struct {
	// AllowedOrigins lists CORS origins; "*" allows any.
	AllowedOrigins []string

	// APIRequests per APIWindow per client IP across /api/v1.
	APIRequests int
	APIWindow   time.Duration

	// IngestRequests per APIWindow per session on the events endpoint.
	// A capture host shares one IP across many sessions, so ingest is
	// limited by session instead.
	IngestRequests int

	// RateLimitDisabled turns both limiters off.
	RateLimitDisabled bool
}

// DefaultMiddlewareConfig allows no cross-origin callers, 600 API requests
// per minute per IP and 1200 ingest batches per minute per session.
func DefaultMiddlewareConfig() MiddlewareConfig {
	return MiddlewareConfig{
		AllowedOrigins: []string{},
		APIRequests:    600,
		APIWindow:      time.Minute,
		IngestRequests: 1200,
	}
}

// ChiMiddleware builds the middleware stack used by SetupChi.
type ChiMiddleware struct {
	config MiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware creates the middleware set.
func NewChiMiddleware(cfg MiddlewareConfig) *ChiMiddleware {
	if cfg.APIWindow <= 0 {
		cfg.APIWindow = time.Minute
	}
	return &ChiMiddleware{
		config: cfg,
		cors: cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         86400,
		}),
	}
}

// CORS returns the go-chi/cors handler.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit limits API requests per client IP.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	return m.limiter(m.config.APIRequests, httprate.KeyByIP)
}

// IngestRateLimit limits event batches per {id} session.
func (m *ChiMiddleware) IngestRateLimit() func(http.Handler) http.Handler {
	return m.limiter(m.config.IngestRequests, func(r *http.Request) (string, error) {
		return "session:" + chi.URLParam(r, "id"), nil
	})
}

func (m *ChiMiddleware) limiter(requests int, key httprate.KeyFunc) func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled || requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(requests, m.config.APIWindow,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			NewResponseWriter(w, r).Error(http.StatusTooManyRequests, ErrCodeTooManyRequests, "rate limit exceeded")
		}),
	)
}

// APISecurityHeaders sets headers for JSON responses; HSTS only over TLS.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")
			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}
