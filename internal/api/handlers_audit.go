// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/macroguard/internal/audit"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// AuditEvents handles GET /api/v1/audit.
//
// Query parameters: type (repeatable), outcome, target, since (RFC3339), limit.
func (h *Handler) AuditEvents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.audit == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "audit log is not enabled")
		return
	}

	limit, ok := limitParam(rw, r, defaultAuditLimit, maxAuditLimit)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := audit.QueryFilter{
		Outcome:  audit.Outcome(q.Get("outcome")),
		TargetID: q.Get("target"),
		Limit:    limit,
	}
	for _, t := range q["type"] {
		filter.Types = append(filter.Types, audit.EventType(t))
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			rw.BadRequest("since must be an RFC3339 timestamp")
			return
		}
		filter.StartTime = &since
	}

	events, err := h.audit.Query(r.Context(), filter)
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.SuccessWithCount(events, len(events))
}
