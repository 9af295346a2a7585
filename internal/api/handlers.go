// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/macroguard/internal/audit"
	"github.com/tomtom215/macroguard/internal/detector"
	"github.com/tomtom215/macroguard/internal/emitter"
	"github.com/tomtom215/macroguard/internal/inference"
	"github.com/tomtom215/macroguard/internal/input"
	"github.com/tomtom215/macroguard/internal/session"
	ws "github.com/tomtom215/macroguard/internal/websocket"
)

// SessionService is the session API the handlers drive. session.Manager
// implements it.
type SessionService interface {
	ws.Ingester

	Create() (*session.Session, error)
	Get(id string) (*session.Session, error)
	Delete(id string) error
	List() []session.Info
	Count() int
	SetEnabled(enabled bool)
	Enabled() bool
	SetMonitoredDomains(patterns []string)
	Domains() *session.DomainFilter
}

// DetectionHistory exposes recorded detections. emitter.Recorder implements it.
type DetectionHistory interface {
	History(limit int) []emitter.Detection
	Stats() emitter.Stats
	Clear()
}

// Handler serves the HTTP API.
type Handler struct {
	sessions    SessionService
	history     DetectionHistory
	wsHub       *ws.Hub
	backend     inference.Backend
	audit       *audit.Logger
	corsOrigins []string
	startTime   time.Time
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithHub enables the dashboard WebSocket endpoint.
func WithHub(hub *ws.Hub) HandlerOption {
	return func(h *Handler) { h.wsHub = hub }
}

// WithBackend reports model readiness in health checks.
func WithBackend(b inference.Backend) HandlerOption {
	return func(h *Handler) { h.backend = b }
}

// WithAudit records control-plane changes. Without it GET /audit returns 503.
func WithAudit(l *audit.Logger) HandlerOption {
	return func(h *Handler) { h.audit = l }
}

// WithAllowedOrigins sets the origins accepted on WebSocket upgrades.
func WithAllowedOrigins(origins []string) HandlerOption {
	return func(h *Handler) { h.corsOrigins = origins }
}

// NewHandler creates a Handler.
func NewHandler(sessions SessionService, history DetectionHistory, opts ...HandlerOption) *Handler {
	h := &Handler{
		sessions:  sessions,
		history:   history,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SessionCreated is returned by CreateSession.
type SessionCreated struct {
	SessionID  string           `json:"session_id"`
	Modalities []input.Modality `json:"modalities"`
	CreatedAt  time.Time        `json:"created_at"`
}

// CreateSession handles POST /api/v1/sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	s, err := h.sessions.Create()
	if err != nil {
		h.audit.Record(r, audit.EventTypeSessionCreated, audit.OutcomeFailure,
			&audit.Target{Type: "session"}, "Session creation refused", map[string]string{"error": err.Error()})
		writeServiceError(rw, err)
		return
	}
	h.audit.Record(r, audit.EventTypeSessionCreated, audit.OutcomeSuccess,
		&audit.Target{Type: "session", ID: s.ID}, "Session created", nil)
	rw.Created(SessionCreated{
		SessionID:  s.ID,
		Modalities: input.Modalities,
		CreatedAt:  s.CreatedAt,
	})
}

// ListSessions handles GET /api/v1/sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	list := h.sessions.List()
	rw.SuccessWithCount(list, len(list))
}

// DeleteSession handles DELETE /api/v1/sessions/{id}.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := sessionID(r)
	if err := h.sessions.Delete(id); err != nil {
		writeServiceError(rw, err)
		return
	}
	h.audit.Record(r, audit.EventTypeSessionDeleted, audit.OutcomeSuccess,
		&audit.Target{Type: "session", ID: id}, "Session deleted", nil)
	rw.NoContent()
}

// IngestEvents handles POST /api/v1/sessions/{id}/events.
func (h *Handler) IngestEvents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req EventRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}
	res, err := h.sessions.Ingest(sessionID(r), req.RawEvents())
	if err != nil {
		writeServiceError(rw, err)
		return
	}
	rw.Success(res)
}

// ClearModality handles POST /api/v1/sessions/{id}/{modality}/clear.
func (h *Handler) ClearModality(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	m, ok := modalityParam(rw, r)
	if !ok {
		return
	}
	id := sessionID(r)
	if err := h.sessions.Reset(id, m); err != nil {
		writeServiceError(rw, err)
		return
	}
	h.audit.Record(r, audit.EventTypeSessionCleared, audit.OutcomeSuccess,
		&audit.Target{Type: "modality", ID: id}, "Modality state cleared", map[string]input.Modality{"modality": m})
	rw.NoContent()
}

// ConfigureModality handles PUT /api/v1/sessions/{id}/{modality}/config.
// Omitted fields keep their current values.
func (h *Handler) ConfigureModality(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	m, ok := modalityParam(rw, r)
	if !ok {
		return
	}
	var req ConfigureRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	id := sessionID(r)
	st, err := h.sessions.Status(id, m)
	if err != nil {
		writeServiceError(rw, err)
		return
	}
	cfg := req.Apply(st.Config)
	if err := h.sessions.Configure(id, m, cfg); err != nil {
		h.audit.Record(r, audit.EventTypeSessionConfigured, audit.OutcomeFailure,
			&audit.Target{Type: "modality", ID: id}, "Configuration rejected", map[string]string{"modality": string(m), "error": err.Error()})
		writeServiceError(rw, err)
		return
	}
	h.audit.Record(r, audit.EventTypeSessionConfigured, audit.OutcomeSuccess,
		&audit.Target{Type: "modality", ID: id}, "Hysteresis configuration updated", map[string]interface{}{"modality": m, "config": cfg})
	rw.Success(cfg)
}

// ModalityStatus handles GET /api/v1/sessions/{id}/{modality}/status.
func (h *Handler) ModalityStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	m, ok := modalityParam(rw, r)
	if !ok {
		return
	}
	st, err := h.sessions.Status(sessionID(r), m)
	if err != nil {
		writeServiceError(rw, err)
		return
	}
	rw.Success(st)
}

// SessionStatus bundles both modality snapshots of a session.
type SessionStatus struct {
	SessionID string                             `json:"session_id"`
	Enabled   bool                               `json:"enabled"`
	Status    map[input.Modality]detector.Status `json:"status"`
}

// GetSession handles GET /api/v1/sessions/{id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := sessionID(r)
	out := SessionStatus{
		SessionID: id,
		Enabled:   h.sessions.Enabled(),
		Status:    make(map[input.Modality]detector.Status, 2),
	}
	for _, m := range input.Modalities {
		st, err := h.sessions.Status(id, m)
		if err != nil {
			writeServiceError(rw, err)
			return
		}
		out.Status[m] = st
	}
	rw.Success(out)
}

// EnabledResponse reports the global detection switch.
type EnabledResponse struct {
	Enabled bool `json:"enabled"`
}

// GetEnabled handles GET /api/v1/detection/enabled.
func (h *Handler) GetEnabled(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(EnabledResponse{Enabled: h.sessions.Enabled()})
}

// SetEnabled handles PUT /api/v1/detection/enabled.
func (h *Handler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req EnabledRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}
	h.sessions.SetEnabled(*req.Enabled)
	h.audit.Record(r, audit.EventTypeDetectionToggled, audit.OutcomeSuccess,
		&audit.Target{Type: "detection"}, "Detection switch set", EnabledResponse{Enabled: *req.Enabled})
	rw.Success(EnabledResponse{Enabled: h.sessions.Enabled()})
}

// DomainsResponse lists monitored domain patterns. An empty list monitors
// every domain.
type DomainsResponse struct {
	Domains []string `json:"domains"`
}

// GetDomains handles GET /api/v1/detection/domains.
func (h *Handler) GetDomains(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(DomainsResponse{Domains: h.domains()})
}

// PutDomains handles PUT /api/v1/detection/domains.
func (h *Handler) PutDomains(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req DomainsRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}
	h.sessions.SetMonitoredDomains(req.Domains)
	h.audit.Record(r, audit.EventTypeDomainsChanged, audit.OutcomeSuccess,
		&audit.Target{Type: "detection"}, "Monitored domains replaced", DomainsResponse{Domains: req.Domains})
	rw.Success(DomainsResponse{Domains: h.domains()})
}

func (h *Handler) domains() []string {
	patterns := h.sessions.Domains().Patterns()
	if patterns == nil {
		patterns = []string{}
	}
	return patterns
}

// Detections handles GET /api/v1/detections?limit=N, newest first.
func (h *Handler) Detections(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	limit, ok := limitParam(rw, r, defaultDetectionLimit, maxDetectionLimit)
	if !ok {
		return
	}
	list := h.history.History(limit)
	if list == nil {
		list = []emitter.Detection{}
	}
	rw.SuccessWithCount(list, len(list))
}

// DetectionStats handles GET /api/v1/detections/stats.
func (h *Handler) DetectionStats(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.history.Stats())
}

// ClearDetections handles DELETE /api/v1/detections.
func (h *Handler) ClearDetections(w http.ResponseWriter, r *http.Request) {
	h.history.Clear()
	h.audit.Record(r, audit.EventTypeDetectionsCleared, audit.OutcomeSuccess,
		&audit.Target{Type: "detection"}, "Detection history cleared", nil)
	if h.wsHub != nil {
		h.wsHub.BroadcastStatsUpdate(h.history.Stats())
	}
	NewResponseWriter(w, r).NoContent()
}
