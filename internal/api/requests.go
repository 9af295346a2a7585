// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package api

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/macroguard/internal/hysteresis"
	"github.com/tomtom215/macroguard/internal/input"
	"github.com/tomtom215/macroguard/internal/validation"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// maxEventsPerRequest caps one ingest batch.
const maxEventsPerRequest = 1000

// EventRequest is a batch of captured events for one session.
type EventRequest struct {
	Events []EventPayload `json:"events" validate:"required,min=1,max=1000,dive"`
}

// EventPayload is one event as sent by a capture source. Timestamps are
// Unix milliseconds and may be fractional.
type EventPayload struct {
	Kind           string   `json:"kind" validate:"required,eventkind"`
	Timestamp      float64  `json:"timestamp" validate:"gt=0"`
	X              *float64 `json:"x,omitempty"`
	Y              *float64 `json:"y,omitempty"`
	ViewportWidth  float64  `json:"viewport_width,omitempty" validate:"gte=0"`
	ViewportHeight float64  `json:"viewport_height,omitempty" validate:"gte=0"`
	Key            string   `json:"key,omitempty" validate:"max=64"`
	Code           string   `json:"code,omitempty" validate:"max=64"`
	Domain         string   `json:"domain,omitempty" validate:"max=253"`
}

// RawEvent converts the payload to an ingestion event. Both coordinates
// must be present for the event to carry a position.
func (p EventPayload) RawEvent() input.RawEvent {
	sec, frac := math.Modf(p.Timestamp / 1000)
	ev := input.RawEvent{
		Kind:           input.Kind(p.Kind),
		Timestamp:      time.Unix(int64(sec), int64(frac*1e9)),
		ViewportWidth:  p.ViewportWidth,
		ViewportHeight: p.ViewportHeight,
		Key:            p.Key,
		Code:           p.Code,
		Domain:         p.Domain,
	}
	if p.X != nil && p.Y != nil {
		ev.X, ev.Y, ev.HasPosition = *p.X, *p.Y, true
	}
	return ev
}

// RawEvents converts the whole batch.
func (r *EventRequest) RawEvents() []input.RawEvent {
	out := make([]input.RawEvent, len(r.Events))
	for i, p := range r.Events {
		out[i] = p.RawEvent()
	}
	return out
}

// ConfigureRequest updates a modality's hysteresis settings. Omitted fields
// keep their current value.
type ConfigureRequest struct {
	HistorySize         *int     `json:"history_size,omitempty" validate:"omitempty,gte=1,lte=100"`
	IndividualThreshold *float64 `json:"individual_threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
	AlertThreshold      *float64 `json:"alert_threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
	BlockThreshold      *float64 `json:"block_threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
	AlertCooldownMs     *int64   `json:"alert_cooldown_ms,omitempty" validate:"omitempty,gte=0,lte=86400000"`
	BlockCooldownMs     *int64   `json:"block_cooldown_ms,omitempty" validate:"omitempty,gte=0,lte=86400000"`
	RepetitivenessPx    *float64 `json:"repetitiveness_px,omitempty" validate:"omitempty,gte=0"`
}

// Apply overlays the request on cfg.
func (r *ConfigureRequest) Apply(cfg hysteresis.Config) hysteresis.Config {
	if r.HistorySize != nil {
		cfg.HistorySize = *r.HistorySize
	}
	if r.IndividualThreshold != nil {
		cfg.IndividualThreshold = *r.IndividualThreshold
	}
	if r.AlertThreshold != nil {
		cfg.AlertThreshold = *r.AlertThreshold
	}
	if r.BlockThreshold != nil {
		cfg.BlockThreshold = *r.BlockThreshold
	}
	if r.AlertCooldownMs != nil {
		cfg.AlertCooldown = time.Duration(*r.AlertCooldownMs) * time.Millisecond
	}
	if r.BlockCooldownMs != nil {
		cfg.BlockCooldown = time.Duration(*r.BlockCooldownMs) * time.Millisecond
	}
	if r.RepetitivenessPx != nil {
		cfg.RepetitivenessPx = *r.RepetitivenessPx
	}
	return cfg
}

// EnabledRequest toggles detection.
type EnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// DomainsRequest replaces the monitored domains.
type DomainsRequest struct {
	Domains []string `json:"domains" validate:"max=500,dive,domainpattern"`
}

// decodeAndValidate reads a JSON body into dst and validates it. On failure
// it writes the error response and returns false.
func decodeAndValidate(rw *ResponseWriter, r *http.Request, dst interface{}) bool {
	body := http.MaxBytesReader(rw.w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		rw.BadRequest(fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		writeValidationError(rw, verr)
		return false
	}
	return true
}
