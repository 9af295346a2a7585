// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package scorer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/macroguard/internal/features"
	"github.com/tomtom215/macroguard/internal/input"
)

// KeyboardRules holds the keyboard heuristic thresholds (seconds) and weights.
type KeyboardRules struct {
	P2PStdBelow    float64
	P2PStdWeight   float64
	P2PMeanBelow   float64
	P2PMeanWeight  float64
	DwellStdBelow  float64
	DwellStdWeight float64
	RangeBelow     float64
	RangeWeight    float64
}

// DefaultKeyboardRules returns the standard keyboard heuristic.
func DefaultKeyboardRules() KeyboardRules {
	return KeyboardRules{
		P2PStdBelow:    0.02,
		P2PStdWeight:   0.4,
		P2PMeanBelow:   0.1,
		P2PMeanWeight:  0.3,
		DwellStdBelow:  0.005,
		DwellStdWeight: 0.2,
		RangeBelow:     0.05,
		RangeWeight:    0.1,
	}
}

// PointerRules holds the pointer heuristic thresholds (normalized units) and weights.
type PointerRules struct {
	// StepStdBelow flags uniform step lengths.
	StepStdBelow  float64
	StepStdWeight float64
	// MoveRatioAbove flags windows that are almost entirely move events.
	MoveRatioAbove  float64
	MoveRatioWeight float64
	// DistinctRatioBelow flags motion that keeps revisiting the same points.
	DistinctRatioBelow  float64
	DistinctRatioWeight float64
}

// DefaultPointerRules returns the standard pointer heuristic.
func DefaultPointerRules() PointerRules {
	return PointerRules{
		StepStdBelow:        0.002,
		StepStdWeight:       0.5,
		MoveRatioAbove:      0.98,
		MoveRatioWeight:     0.3,
		DistinctRatioBelow:  0.05,
		DistinctRatioWeight: 0.2,
	}
}

// RuleScorer is the deterministic threshold heuristic. It never fails on a
// well-formed vector and is the fallback for model scoring.
type RuleScorer struct {
	keyboard KeyboardRules
	pointer  PointerRules
	now      Clock
}

// RuleOption configures a RuleScorer.
type RuleOption func(*RuleScorer)

// WithRuleClock sets the clock used to stamp scores.
func WithRuleClock(c Clock) RuleOption {
	return func(r *RuleScorer) { r.now = c }
}

// WithKeyboardRules overrides the keyboard thresholds.
func WithKeyboardRules(k KeyboardRules) RuleOption {
	return func(r *RuleScorer) { r.keyboard = k }
}

// WithPointerRules overrides the pointer thresholds.
func WithPointerRules(p PointerRules) RuleOption {
	return func(r *RuleScorer) { r.pointer = p }
}

// NewRuleScorer creates a rule scorer with default thresholds.
func NewRuleScorer(opts ...RuleOption) *RuleScorer {
	r := &RuleScorer{
		keyboard: DefaultKeyboardRules(),
		pointer:  DefaultPointerRules(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Score implements Scorer.
func (r *RuleScorer) Score(_ context.Context, v features.Vector) (Score, error) {
	switch v.Modality {
	case input.ModalityKeyboard:
		if len(v.Values) != features.KeyboardDim {
			return Score{}, fmt.Errorf("keyboard vector has %d values, want %d", len(v.Values), features.KeyboardDim)
		}
		return newScore(r.keyboardProbability(v.Values), MethodRule, r.now), nil
	case input.ModalityPointer:
		if v.Cols < 3 || len(v.Values) != v.Rows*v.Cols {
			return Score{}, fmt.Errorf("pointer vector shape %dx%d does not match %d values", v.Rows, v.Cols, len(v.Values))
		}
		return newScore(r.pointerProbability(v), MethodRule, r.now), nil
	default:
		return Score{}, fmt.Errorf("rule scorer: unsupported modality %q", v.Modality)
	}
}

func (r *RuleScorer) keyboardProbability(f []float64) float64 {
	k := r.keyboard
	p := 0.0
	if f[features.P2PStd] < k.P2PStdBelow {
		p += k.P2PStdWeight
	}
	if f[features.P2PMean] < k.P2PMeanBelow {
		p += k.P2PMeanWeight
	}
	if f[features.DwellStd] < k.DwellStdBelow {
		p += k.DwellStdWeight
	}
	if f[features.P2PMax]-f[features.P2PMin] < k.RangeBelow {
		p += k.RangeWeight
	}
	return p
}

func (r *RuleScorer) pointerProbability(v features.Vector) float64 {
	n := v.RealRows()
	first := v.Rows - n
	if n < 2 {
		return 0
	}

	steps := make([]float64, 0, n-1)
	distinct := make(map[[2]float64]struct{}, n)
	moves := 0
	for i := first; i < v.Rows; i++ {
		if v.At(i, features.ColEventCode) == features.CodeMove {
			moves++
		}
		x, y := v.At(i, features.ColX), v.At(i, features.ColY)
		distinct[[2]float64{x, y}] = struct{}{}
		if i > first {
			steps = append(steps, math.Hypot(x-v.At(i-1, features.ColX), y-v.At(i-1, features.ColY)))
		}
	}

	pr := r.pointer
	p := 0.0
	if stddev(steps) < pr.StepStdBelow {
		p += pr.StepStdWeight
	}
	if float64(moves)/float64(n) > pr.MoveRatioAbove {
		p += pr.MoveRatioWeight
	}
	if float64(len(distinct))/float64(n) < pr.DistinctRatioBelow {
		p += pr.DistinctRatioWeight
	}
	return p
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	m := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)))
}
