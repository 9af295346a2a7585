// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package scorer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/macroguard/internal/features"
	"github.com/tomtom215/macroguard/internal/inference"
)

// MacroClass is the logit index of the "macro" class.
const MacroClass = 1

// ModelScorer delegates to an inference backend and converts its two-class
// logits to the macro-class probability with softmax.
type ModelScorer struct {
	backend inference.Backend
	now     Clock
}

// NewModelScorer creates a model-backed scorer.
func NewModelScorer(backend inference.Backend, now Clock) *ModelScorer {
	if now == nil {
		now = time.Now
	}
	return &ModelScorer{backend: backend, now: now}
}

// Backend returns the underlying backend.
func (m *ModelScorer) Backend() inference.Backend {
	return m.backend
}

// Score implements Scorer. A context that ends during inference yields the
// context error unwrapped so callers can tell a timeout from a failure.
func (m *ModelScorer) Score(ctx context.Context, v features.Vector) (Score, error) {
	if m.backend == nil || !m.backend.Ready() {
		return Score{}, ErrBackendNotReady
	}

	logits, err := m.backend.Run(ctx, inference.Tensor{Shape: v.Shape(), Data: v.Float32()})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Score{}, fmt.Errorf("inference interrupted: %w", ctxErr)
		}
		if errors.Is(err, inference.ErrNotLoaded) {
			return Score{}, ErrBackendNotReady
		}
		return Score{}, fmt.Errorf("%w: %w", ErrInferenceFailure, err)
	}

	p, err := macroProbability(logits)
	if err != nil {
		return Score{}, fmt.Errorf("%w: %w", ErrInferenceFailure, err)
	}
	return newScore(p, MethodModel, m.now), nil
}

// macroProbability applies a numerically stable softmax to two logits.
func macroProbability(logits []float32) (float64, error) {
	if len(logits) != 2 {
		return 0, fmt.Errorf("expected 2 logits, got %d", len(logits))
	}
	a, b := float64(logits[0]), float64(logits[1])
	for _, x := range []float64{a, b} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("non-finite logit %v", x)
		}
	}
	hi := math.Max(a, b)
	ea, eb := math.Exp(a-hi), math.Exp(b-hi)
	probs := [2]float64{ea / (ea + eb), eb / (ea + eb)}
	return probs[MacroClass], nil
}
