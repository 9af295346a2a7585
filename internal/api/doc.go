// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

// Package api provides the HTTP interface to MacroGuard using the chi router.
//
// # Endpoints
//
// Sessions:
//   - POST   /api/v1/sessions                         create a session
//   - GET    /api/v1/sessions                         list sessions
//   - GET    /api/v1/sessions/{id}                    status of both modalities
//   - DELETE /api/v1/sessions/{id}                    close a session
//   - POST   /api/v1/sessions/{id}/events             ingest a batch of events
//   - GET    /api/v1/sessions/{id}/stream             WebSocket ingest stream
//   - POST   /api/v1/sessions/{id}/{modality}/clear   reset a pipeline
//   - PUT    /api/v1/sessions/{id}/{modality}/config  update hysteresis settings
//   - GET    /api/v1/sessions/{id}/{modality}/status  pipeline status
//
// Detection control and history:
//   - GET/PUT /api/v1/detection/enabled
//   - GET/PUT /api/v1/detection/domains
//   - GET/DELETE /api/v1/detections, GET /api/v1/detections/stats
//   - GET /api/v1/ws dashboard feed
//
// Operational: /api/v1/health, /api/v1/health/live, /api/v1/health/ready
// and /metrics.
//
// # Responses
//
// JSON endpoints return an APIResponse envelope:
//
//	{"success":true,"data":{...},"meta":{"request_id":"...","timestamp":"...","duration_ms":0}}
//	{"success":false,"error":{"code":"SESSION_NOT_FOUND","message":"..."}}
//
// Validation failures return 400 with code VALIDATION_ERROR and per-field
// details.
package api
