// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion Metrics
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "macroguard_events_ingested_total",
			Help: "Total number of raw input events accepted into a pipeline buffer",
		},
		[]string{"modality"},
	)

	EventsIgnored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "macroguard_events_ignored_total",
			Help: "Total number of raw input events ignored before buffering",
		},
		[]string{"reason"}, // "disabled", "domain", "invalid", "modality_mismatch"
	)

	// Scoring Metrics
	WindowsScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "macroguard_windows_scored_total",
			Help: "Total number of windows that produced a score",
		},
		[]string{"modality", "method"},
	)

	WindowsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "macroguard_windows_skipped_total",
			Help: "Total number of windows that produced no score",
		},
		[]string{"modality", "reason"}, // "insufficient_data", "backend_not_ready", "timeout", "error", "reset", "canceled"
	)

	WindowsCoalesced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "macroguard_windows_coalesced_total",
			Help: "Total number of pending windows replaced by a newer window before scoring",
		},
		[]string{"modality"},
	)

	ScoringFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "macroguard_scoring_fallbacks_total",
			Help: "Total number of windows rescored by the rule strategy after an inference failure",
		},
		[]string{"modality"},
	)

	ScoreProbability = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "macroguard_score_probability",
			Help:    "Distribution of per-window macro probabilities",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
		[]string{"modality"},
	)

	// Inference Metrics
	InferenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "macroguard_inference_duration_seconds",
			Help:    "Duration of inference backend calls in seconds",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"backend", "outcome"},
	)

	InferenceBackendReady = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "macroguard_inference_backend_ready",
			Help: "Whether the inference backend is loaded (1) or not (0)",
		},
		[]string{"backend"},
	)

	InferenceCircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "macroguard_inference_circuit_state",
			Help: "Inference circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"backend"},
	)

	// Decision Metrics
	Decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "macroguard_decisions_total",
			Help: "Total number of ALERT and BLOCK decisions",
		},
		[]string{"modality", "kind"},
	)

	CooldownSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "macroguard_cooldown_suppressed_total",
			Help: "Total number of qualifying windows suppressed by a cooldown",
		},
		[]string{"modality", "kind"},
	)

	// Emitter Metrics
	DetectionsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "macroguard_detections_dropped_total",
			Help: "Total number of detections not delivered to a sink",
		},
		[]string{"sink"},
	)

	DetectionsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "macroguard_detections_delivered_total",
			Help: "Total number of detections delivered to a sink",
		},
		[]string{"sink"},
	)

	// Session Metrics
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "macroguard_active_sessions",
			Help: "Current number of detection sessions",
		},
	)

	SessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "macroguard_sessions_evicted_total",
			Help: "Total number of sessions evicted for inactivity",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "macroguard_websocket_connections",
			Help: "Current number of WebSocket connections",
		},
		[]string{"role"}, // "subscriber", "ingest"
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "macroguard_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "macroguard_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)

	// Configuration Metrics
	ConfigReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "macroguard_config_reloads_total",
			Help: "Total number of configuration reload attempts",
		},
		[]string{"result"}, // "applied", "rejected"
	)
)

// RecordScore records a successful window score.
func RecordScore(modality, method string, probability float64) {
	WindowsScored.WithLabelValues(modality, method).Inc()
	ScoreProbability.WithLabelValues(modality).Observe(probability)
}

// RecordSkip records a window that produced no score.
func RecordSkip(modality, reason string) {
	WindowsSkipped.WithLabelValues(modality, reason).Inc()
}

// RecordInference records one backend call.
func RecordInference(backend string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	InferenceDuration.WithLabelValues(backend, outcome).Observe(duration.Seconds())
}

// SetBackendReady updates the backend readiness gauge.
func SetBackendReady(backend string, ready bool) {
	v := 0.0
	if ready {
		v = 1
	}
	InferenceBackendReady.WithLabelValues(backend).Set(v)
}

// RecordDecision records an emitted ALERT or BLOCK.
func RecordDecision(modality, kind string) {
	Decisions.WithLabelValues(modality, kind).Inc()
}

// RecordDelivery records the outcome of handing a detection to a sink.
func RecordDelivery(sink string, delivered bool) {
	if delivered {
		DetectionsDelivered.WithLabelValues(sink).Inc()
		return
	}
	DetectionsDropped.WithLabelValues(sink).Inc()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
