// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package audit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func seed(t *testing.T, s *MemoryStore, base time.Time) {
	t.Helper()
	events := []Event{
		{ID: "1", Timestamp: base, Type: EventTypeSessionCreated, Outcome: OutcomeSuccess, Target: &Target{Type: "session", ID: "s1"}},
		{ID: "2", Timestamp: base.Add(time.Minute), Type: EventTypeSessionConfigured, Outcome: OutcomeFailure, Target: &Target{Type: "modality", ID: "s1"}},
		{ID: "3", Timestamp: base.Add(2 * time.Minute), Type: EventTypeDetectionToggled, Outcome: OutcomeSuccess, RequestID: "req-3"},
		{ID: "4", Timestamp: base.Add(3 * time.Minute), Type: EventTypeSessionDeleted, Outcome: OutcomeSuccess, Target: &Target{Type: "session", ID: "s2"}},
	}
	for i := range events {
		if err := s.Save(context.Background(), &events[i]); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
}

func ids(events []Event) string {
	out := ""
	for _, e := range events {
		out += e.ID
	}
	return out
}

func TestMemoryStore_Query(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	start := base.Add(90 * time.Second)

	tests := []struct {
		name   string
		filter QueryFilter
		want   string
	}{
		{"all newest first", QueryFilter{}, "4321"},
		{"by type", QueryFilter{Types: []EventType{EventTypeSessionCreated, EventTypeSessionDeleted}}, "41"},
		{"by outcome", QueryFilter{Outcome: OutcomeFailure}, "2"},
		{"by target", QueryFilter{TargetID: "s1"}, "21"},
		{"by request", QueryFilter{RequestID: "req-3"}, "3"},
		{"by start time", QueryFilter{StartTime: &start}, "43"},
		{"limit", QueryFilter{Limit: 2}, "43"},
		{"offset", QueryFilter{Offset: 1, Limit: 2}, "32"},
	}

	s := NewMemoryStore(100)
	seed(t, s, base)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := s.Query(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if ids(got) != tt.want {
				t.Errorf("ids = %q, want %q", ids(got), tt.want)
			}
		})
	}
}

func TestMemoryStore_GetCountDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(0)
	seed(t, s, base)

	ev, err := s.Get(ctx, "3")
	if err != nil || ev.Type != EventTypeDetectionToggled {
		t.Fatalf("Get = %+v, %v", ev, err)
	}
	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("Get(missing) err = %v, want ErrEventNotFound", err)
	}

	n, _ := s.Count(ctx, QueryFilter{Outcome: OutcomeSuccess})
	if n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}

	removed, _ := s.Delete(ctx, base.Add(2*time.Minute))
	if removed != 2 {
		t.Errorf("Delete removed %d, want 2", removed)
	}
	n, _ = s.Count(ctx, QueryFilter{})
	if n != 2 {
		t.Errorf("Count after delete = %d, want 2", n)
	}
}

func TestMemoryStore_DropsOldestWhenFull(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(10)
	for i := 0; i < 11; i++ {
		ev := Event{ID: fmt.Sprintf("e%d", i), Type: EventTypeSessionCreated}
		if err := s.Save(ctx, &ev); err != nil {
			t.Fatal(err)
		}
	}

	n, _ := s.Count(ctx, QueryFilter{})
	if n != 10 {
		t.Errorf("Count = %d, want 10", n)
	}
	if _, err := s.Get(ctx, "e0"); err == nil {
		t.Error("expected oldest event to be dropped")
	}
	if _, err := s.Get(ctx, "e10"); err != nil {
		t.Errorf("newest event missing: %v", err)
	}
}
