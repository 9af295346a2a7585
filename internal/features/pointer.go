// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package features

import (
	"fmt"
	"math"

	"github.com/tomtom215/macroguard/internal/input"
)

// PointerOptions controls pointer extraction.
type PointerOptions struct {
	// MinEvents is the minimum number of buffered events.
	MinEvents int
	// SeqLen is the fixed number of output rows.
	SeqLen int
	// Kinematics appends normalized speed and acceleration columns.
	Kinematics bool
	// DefaultViewportWidth and DefaultViewportHeight normalize events that
	// carry no viewport dimensions.
	DefaultViewportWidth  float64
	DefaultViewportHeight float64
}

// DefaultPointerOptions returns the standard pointer extraction settings.
func DefaultPointerOptions() PointerOptions {
	return PointerOptions{
		MinEvents:             50,
		SeqLen:                200,
		DefaultViewportWidth:  1920,
		DefaultViewportHeight: 1080,
	}
}

// Cols returns the row width for these options.
func (o PointerOptions) Cols() int {
	if o.Kinematics {
		return 5
	}
	return 3
}

// ExtractPointer converts a pointer window into a SeqLen x Cols matrix of
// [event code, x/width, y/height (, speed, accel)] rows. Longer windows keep
// the most recent rows; shorter ones are left-padded with zero rows.
func ExtractPointer(events []input.RawEvent, opts PointerOptions) (Vector, error) {
	if len(events) < opts.MinEvents {
		return Vector{}, fmt.Errorf("pointer window has %d events, need %d: %w",
			len(events), opts.MinEvents, ErrInsufficientData)
	}
	if opts.SeqLen < 1 {
		return Vector{}, fmt.Errorf("pointer sequence length %d: %w", opts.SeqLen, ErrInsufficientData)
	}

	cols := opts.Cols()
	rows := make([][]float64, len(events))
	var prevX, prevY, prevSpeed float64
	seen := false
	for i, ev := range events {
		// Events without a position stay where the pointer last was.
		x, y, ok := normalize(ev, opts)
		if !ok {
			x, y = prevX, prevY
		}
		row := make([]float64, cols)
		row[ColEventCode] = float64(eventCode(ev.Kind))
		row[ColX] = x
		row[ColY] = y

		if opts.Kinematics && i > 0 {
			dt := ev.Timestamp.Sub(events[i-1].Timestamp).Seconds()
			if dt > 0 {
				var speed float64
				if seen && ok {
					speed = math.Hypot(x-prevX, y-prevY) / dt
				}
				row[ColSpeed] = speed
				row[ColAccel] = (speed - prevSpeed) / dt
			}
			prevSpeed = row[ColSpeed]
		}
		if ok {
			prevX, prevY = x, y
			seen = true
		}
		rows[i] = row
	}

	if len(rows) > opts.SeqLen {
		rows = rows[len(rows)-opts.SeqLen:]
	}

	values := make([]float64, opts.SeqLen*cols)
	offset := (opts.SeqLen - len(rows)) * cols
	for i, row := range rows {
		copy(values[offset+i*cols:], row)
	}

	return Vector{
		Modality: input.ModalityPointer,
		Rows:     opts.SeqLen,
		Cols:     cols,
		Values:   values,
		Real:     len(rows),
	}, nil
}

func eventCode(k input.Kind) int {
	switch k {
	case input.KindDown, input.KindUp, input.KindClick:
		return CodeButton
	case input.KindWheel:
		return CodeWheel
	default:
		return CodeMove
	}
}

func normalize(ev input.RawEvent, opts PointerOptions) (float64, float64, bool) {
	if !ev.HasPosition {
		return 0, 0, false
	}
	w, h := ev.ViewportWidth, ev.ViewportHeight
	if w <= 0 {
		w = opts.DefaultViewportWidth
	}
	if h <= 0 {
		h = opts.DefaultViewportHeight
	}
	if w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return ev.X / w, ev.Y / h, true
}
