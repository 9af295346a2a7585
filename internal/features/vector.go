// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package features

import (
	"errors"

	"github.com/tomtom215/macroguard/internal/input"
)

// ErrInsufficientData is returned when a window is too short to produce a
// vector. Callers skip the window; no partial vector is ever returned.
var ErrInsufficientData = errors.New("insufficient data")

// Keyboard vector layout.
const (
	P2PMean = iota
	P2PStd
	P2PMin
	P2PMax
	DwellMean
	DwellStd

	KeyboardDim
)

// Pointer row layout. Speed and Accel are present only with kinematics.
const (
	ColEventCode = iota
	ColX
	ColY
	ColSpeed
	ColAccel
)

// Pointer event codes.
const (
	CodeMove   = 0
	CodeButton = 1
	CodeWheel  = 2
)

// Vector is a fixed-shape feature matrix stored row-major. Keyboard vectors
// have one row; pointer vectors have SeqLen rows.
type Vector struct {
	Modality input.Modality
	Rows     int
	Cols     int
	Values   []float64
	// Real is the number of rows built from events. The first Rows-Real
	// rows are left padding. Zero means every row is real.
	Real int
}

// RealRows returns the number of non-padding rows, clamped to Rows.
func (v Vector) RealRows() int {
	if v.Real <= 0 || v.Real > v.Rows {
		return v.Rows
	}
	return v.Real
}

// At returns the value at row r, column c.
func (v Vector) At(r, c int) float64 {
	return v.Values[r*v.Cols+c]
}

// Row returns a view of row r.
func (v Vector) Row(r int) []float64 {
	return v.Values[r*v.Cols : (r+1)*v.Cols]
}

// Shape returns the tensor shape with a leading batch dimension, e.g.
// [1, 6] for keyboard and [1, 200, 3] for pointer.
func (v Vector) Shape() []int64 {
	if v.Rows == 1 {
		return []int64{1, int64(v.Cols)}
	}
	return []int64{1, int64(v.Rows), int64(v.Cols)}
}

// Float32 returns the values converted for inference backends.
func (v Vector) Float32() []float32 {
	out := make([]float32, len(v.Values))
	for i, x := range v.Values {
		out[i] = float32(x)
	}
	return out
}
