// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	m, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatal("observer is not a metric")
	}
	var pb io_prometheus_client.Metric
	if err := m.Write(&pb); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return pb.GetHistogram().GetSampleCount()
}

func TestRecordScore(t *testing.T) {
	before := testutil.ToFloat64(WindowsScored.WithLabelValues("keyboard", "rule"))
	hist := ScoreProbability.WithLabelValues("keyboard")
	countBefore := histogramCount(t, hist)

	RecordScore("keyboard", "rule", 0.8)

	if got := testutil.ToFloat64(WindowsScored.WithLabelValues("keyboard", "rule")); got != before+1 {
		t.Errorf("WindowsScored = %v, want %v", got, before+1)
	}
	if got := histogramCount(t, hist); got != countBefore+1 {
		t.Errorf("ScoreProbability count = %d, want %d", got, countBefore+1)
	}
}

func TestRecordSkip(t *testing.T) {
	before := testutil.ToFloat64(WindowsSkipped.WithLabelValues("pointer", "insufficient_data"))
	RecordSkip("pointer", "insufficient_data")
	if got := testutil.ToFloat64(WindowsSkipped.WithLabelValues("pointer", "insufficient_data")); got != before+1 {
		t.Errorf("WindowsSkipped = %v, want %v", got, before+1)
	}
}

func TestRecordInference(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		outcome string
	}{
		{"success", nil, "success"},
		{"failure", errors.New("backend down"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := InferenceDuration.WithLabelValues("http", tt.outcome)
			before := histogramCount(t, obs)
			RecordInference("http", 3*time.Millisecond, tt.err)
			if got := histogramCount(t, obs); got != before+1 {
				t.Errorf("count = %d, want %d", got, before+1)
			}
		})
	}
}

func TestSetBackendReady(t *testing.T) {
	SetBackendReady("wasm", true)
	if got := testutil.ToFloat64(InferenceBackendReady.WithLabelValues("wasm")); got != 1 {
		t.Errorf("ready gauge = %v, want 1", got)
	}
	SetBackendReady("wasm", false)
	if got := testutil.ToFloat64(InferenceBackendReady.WithLabelValues("wasm")); got != 0 {
		t.Errorf("ready gauge = %v, want 0", got)
	}
}

func TestRecordDelivery(t *testing.T) {
	delivered := testutil.ToFloat64(DetectionsDelivered.WithLabelValues("channel"))
	dropped := testutil.ToFloat64(DetectionsDropped.WithLabelValues("channel"))

	RecordDelivery("channel", true)
	RecordDelivery("channel", false)
	RecordDelivery("channel", false)

	if got := testutil.ToFloat64(DetectionsDelivered.WithLabelValues("channel")); got != delivered+1 {
		t.Errorf("delivered = %v, want %v", got, delivered+1)
	}
	if got := testutil.ToFloat64(DetectionsDropped.WithLabelValues("channel")); got != dropped+2 {
		t.Errorf("dropped = %v, want %v", got, dropped+2)
	}
}

func TestRecordDecision(t *testing.T) {
	before := testutil.ToFloat64(Decisions.WithLabelValues("pointer", "BLOCK"))
	RecordDecision("pointer", "BLOCK")
	if got := testutil.ToFloat64(Decisions.WithLabelValues("pointer", "BLOCK")); got != before+1 {
		t.Errorf("Decisions = %v, want %v", got, before+1)
	}
}
