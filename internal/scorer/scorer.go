// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package scorer

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/tomtom215/macroguard/internal/features"
)

var (
	// ErrBackendNotReady means the model has not finished loading. The
	// window is skipped and the next one retries.
	ErrBackendNotReady = errors.New("inference backend not ready")

	// ErrInferenceFailure wraps any error raised while running the model.
	// The fallback decorator rescores the same window with rules.
	ErrInferenceFailure = errors.New("inference failure")
)

// Method identifies which strategy produced a score.
type Method string

const (
	MethodRule  Method = "rule"
	MethodModel Method = "model"
)

// Score is the result of scoring one window.
type Score struct {
	Probability float64   `json:"probability"`
	Confidence  float64   `json:"confidence"`
	Method      Method    `json:"method"`
	Timestamp   time.Time `json:"timestamp"`
}

// Scorer maps a feature vector to a macro probability.
type Scorer interface {
	Score(ctx context.Context, v features.Vector) (Score, error)
}

// Clock returns the current time. Scorers stamp results with it.
type Clock func() time.Time

// confidence is the distance from the decision boundary scaled to [0,1].
func confidence(p float64) float64 {
	return math.Abs(p-0.5) * 2
}

func clip01(p float64) float64 {
	switch {
	case math.IsNaN(p):
		return 0
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

func newScore(p float64, method Method, now Clock) Score {
	p = clip01(p)
	return Score{
		Probability: p,
		Confidence:  confidence(p),
		Method:      method,
		Timestamp:   now(),
	}
}
