// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package audit

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/macroguard/internal/logging"
)

func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.LogEvents = false
	return cfg
}

func TestLogger_RecordFromRequest(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(100)
	l := NewLogger(store, quietConfig())

	req := httptest.NewRequest("PUT", "/api/v1/detection/enabled", nil)
	req.RemoteAddr = "10.0.0.5:4321"
	req.Header.Set("User-Agent", "capture-agent/1.0")
	req = req.WithContext(logging.ContextWithRequestID(req.Context(), "req-42"))

	l.Record(req, EventTypeDetectionToggled, OutcomeSuccess, &Target{Type: "detection"}, "Detection disabled", map[string]bool{"enabled": false})
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	events, _ := store.Query(context.Background(), QueryFilter{})
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.ID == "" || ev.Timestamp.IsZero() {
		t.Error("expected ID and Timestamp to be filled in")
	}
	if ev.Source.IPAddress != "10.0.0.5" || ev.Source.UserAgent != "capture-agent/1.0" {
		t.Errorf("source = %+v", ev.Source)
	}
	if ev.RequestID != "req-42" {
		t.Errorf("request id = %q", ev.RequestID)
	}
	if string(ev.Metadata) != `{"enabled":false}` {
		t.Errorf("metadata = %s", ev.Metadata)
	}
}

func TestLogger_RecordReload(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(100)
	l := NewLogger(store, quietConfig())
	l.RecordReload("/etc/macroguard.yaml", nil)
	l.RecordReload("/etc/macroguard.yaml", errors.New("alert threshold below individual"))
	_ = l.Close()

	failures, _ := store.Query(context.Background(), QueryFilter{Outcome: OutcomeFailure})
	if len(failures) != 1 || !failures[0].Source.System {
		t.Fatalf("failures = %+v", failures)
	}
	n, _ := store.Count(context.Background(), QueryFilter{Types: []EventType{EventTypeConfigReloaded}})
	if n != 2 {
		t.Errorf("reload events = %d, want 2", n)
	}
}

func TestLogger_DisabledAndNil(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(100)
	cfg := quietConfig()
	cfg.Enabled = false
	l := NewLogger(store, cfg)
	l.Log(&Event{Type: EventTypeSessionCreated})
	_ = l.Close()

	if n, _ := store.Count(context.Background(), QueryFilter{}); n != 0 {
		t.Errorf("disabled logger stored %d events", n)
	}

	var nilLogger *Logger
	nilLogger.Log(&Event{})
	nilLogger.RecordReload("x", nil)
	nilLogger.Record(httptest.NewRequest("GET", "/", nil), EventTypeSessionCreated, OutcomeSuccess, nil, "", nil)
}

func TestLogger_Cleanup(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(100)
	cfg := quietConfig()
	cfg.Retention = time.Hour
	l := NewLogger(store, cfg)
	defer l.Close()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ctx := context.Background()
	_ = store.Save(ctx, &Event{ID: "old", Timestamp: now.Add(-2 * time.Hour)})
	_ = store.Save(ctx, &Event{ID: "new", Timestamp: now.Add(-time.Minute)})

	removed, err := l.Cleanup(ctx)
	if err != nil || removed != 1 {
		t.Fatalf("Cleanup = %d, %v; want 1", removed, err)
	}
	if _, err := store.Get(ctx, "new"); err != nil {
		t.Errorf("recent event removed: %v", err)
	}
}

func TestLogger_RunWithContextStops(t *testing.T) {
	t.Parallel()

	cfg := quietConfig()
	cfg.CleanupInterval = 5 * time.Millisecond
	l := NewLogger(NewMemoryStore(10), cfg)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := l.RunWithContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("RunWithContext = %v, want deadline exceeded", err)
	}
}
