// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/macroguard/internal/inference"
)

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	Status           string               `json:"status"`
	BackendReady     bool                 `json:"backend_ready"`
	ModelInfo        *inference.ModelInfo `json:"model_info,omitempty"`
	Sessions         int                  `json:"sessions"`
	DetectionEnabled bool                 `json:"detection_enabled"`
	WebSocketClients int                  `json:"websocket_clients"`
	Uptime           float64              `json:"uptime"`
}

// backendReady is true when no model is configured.
func (h *Handler) backendReady() bool {
	return h.backend == nil || h.backend.Ready()
}

// Health handles GET /api/v1/health. A configured model that has not
// finished loading reports "degraded"; the rule scorer still serves.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ready := h.backendReady()
	status := "healthy"
	if !ready {
		status = "degraded"
	}

	health := HealthStatus{
		Status:           status,
		BackendReady:     ready,
		Sessions:         h.sessions.Count(),
		DetectionEnabled: h.sessions.Enabled(),
		Uptime:           time.Since(h.startTime).Seconds(),
	}
	if h.backend != nil {
		info := h.backend.Info()
		health.ModelInfo = &info
	}
	if h.wsHub != nil {
		health.WebSocketClients = h.wsHub.GetClientCount()
	}

	NewResponseWriter(w, r).Success(health)
}

// HealthLive handles GET /api/v1/health/live. It always succeeds while the
// process is serving.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// HealthReady handles GET /api/v1/health/ready, returning 503 until the
// configured model backend is loaded.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if !h.backendReady() {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "model backend not ready")
		return
	}
	rw.Success(map[string]string{"status": "ready"})
}
