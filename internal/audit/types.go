// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package audit

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// EventType categorizes audit events.
type EventType string

const (
	// Session lifecycle
	EventTypeSessionCreated    EventType = "session.created"
	EventTypeSessionDeleted    EventType = "session.deleted"
	EventTypeSessionConfigured EventType = "session.configured"
	EventTypeSessionCleared    EventType = "session.cleared"

	// Detection control
	EventTypeDetectionToggled  EventType = "detection.toggled"
	EventTypeDomainsChanged    EventType = "detection.domains_changed"
	EventTypeDetectionsCleared EventType = "detection.history_cleared"

	// Configuration file
	EventTypeConfigReloaded EventType = "config.reloaded"
)

// Outcome indicates whether an action succeeded or failed.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event is one recorded control-plane action.
type Event struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Type        EventType       `json:"type"`
	Outcome     Outcome         `json:"outcome"`
	Source      Source          `json:"source"`
	Target      *Target         `json:"target,omitempty"`
	Description string          `json:"description"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`

	CorrelationID string `json:"correlation_id,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
}

// Source is where a request originated. System-initiated events (config
// reloads) carry Source{System: true}.
type Source struct {
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	System    bool   `json:"system,omitempty"`
}

// Target is the object of an action.
type Target struct {
	// Type is session, modality, detection or config.
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// QueryFilter selects events. Zero fields match everything.
type QueryFilter struct {
	Types     []EventType
	Outcome   Outcome
	TargetID  string
	RequestID string
	StartTime *time.Time
	EndTime   *time.Time

	// Limit caps results; 0 means no limit.
	Limit  int
	Offset int
}

// Store persists audit events.
type Store interface {
	Save(ctx context.Context, event *Event) error
	Get(ctx context.Context, id string) (*Event, error)

	// Query returns matching events, newest first.
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)
	Count(ctx context.Context, filter QueryFilter) (int64, error)

	// Delete removes events older than olderThan.
	Delete(ctx context.Context, olderThan time.Time) (int64, error)
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
