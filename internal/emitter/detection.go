// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package emitter

import (
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/macroguard/internal/hysteresis"
	"github.com/tomtom215/macroguard/internal/input"
	"github.com/tomtom215/macroguard/internal/scorer"
)

// Detection is an ALERT or BLOCK decision ready for delivery.
type Detection struct {
	ID          string          `json:"id"`
	Kind        hysteresis.Kind `json:"kind"`
	Modality    input.Modality  `json:"modality"`
	Method      scorer.Method   `json:"method"`
	Probability float64         `json:"probability"`
	Confidence  float64         `json:"confidence"`
	Timestamp   time.Time       `json:"timestamp"`
	Domain      string          `json:"domain,omitempty"`

	SessionID      string   `json:"sessionId,omitempty"`
	HistoryAverage float64  `json:"historyAverage"`
	Diversity      *float64 `json:"diversity,omitempty"` // pointer only
}

// Metadata is the context attached to a detection by the pipeline.
type Metadata struct {
	SessionID string
	Domain    string
	Diversity *float64
}

// NewDetection packages a fired decision and the score that triggered it.
func NewDetection(modality input.Modality, d hysteresis.Decision, s scorer.Score, meta Metadata) Detection {
	return Detection{
		ID:             uuid.NewString(),
		Kind:           d.Kind,
		Modality:       modality,
		Method:         s.Method,
		Probability:    s.Probability,
		Confidence:     s.Confidence,
		Timestamp:      s.Timestamp,
		Domain:         meta.Domain,
		SessionID:      meta.SessionID,
		HistoryAverage: d.Average,
		Diversity:      meta.Diversity,
	}
}
