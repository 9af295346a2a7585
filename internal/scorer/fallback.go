// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package scorer

import (
	"context"
	"errors"

	"github.com/tomtom215/macroguard/internal/features"
	"github.com/tomtom215/macroguard/internal/logging"
	"github.com/tomtom215/macroguard/internal/metrics"
)

// FallbackScorer wraps a primary scorer and rescores a window with a
// fallback scorer when the primary reports ErrInferenceFailure. The next
// window goes to the primary again.
type FallbackScorer struct {
	primary  Scorer
	fallback Scorer

	// whenNotReady also routes ErrBackendNotReady windows to the fallback
	// instead of skipping them.
	whenNotReady bool
}

// NewFallbackScorer creates the decorator.
func NewFallbackScorer(primary, fallback Scorer, whenNotReady bool) *FallbackScorer {
	return &FallbackScorer{primary: primary, fallback: fallback, whenNotReady: whenNotReady}
}

// Primary returns the wrapped primary scorer.
func (f *FallbackScorer) Primary() Scorer {
	return f.primary
}

// Score implements Scorer.
func (f *FallbackScorer) Score(ctx context.Context, v features.Vector) (Score, error) {
	s, err := f.primary.Score(ctx, v)
	switch {
	case err == nil:
		return s, nil
	case errors.Is(err, ErrInferenceFailure):
		logging.Ctx(ctx).Warn().Err(err).
			Str("modality", string(v.Modality)).
			Msg("Inference failed, scoring window with rules")
		metrics.ScoringFallbacks.WithLabelValues(string(v.Modality)).Inc()
		return f.fallback.Score(ctx, v)
	case errors.Is(err, ErrBackendNotReady) && f.whenNotReady:
		return f.fallback.Score(ctx, v)
	default:
		return Score{}, err
	}
}
