// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package input

import (
	"fmt"
	"time"
)

// Modality identifies an input channel. Each modality runs its own pipeline.
type Modality string

const (
	ModalityKeyboard Modality = "keyboard"
	ModalityPointer  Modality = "pointer"
)

// Modalities lists every supported modality in a stable order.
var Modalities = []Modality{ModalityKeyboard, ModalityPointer}

// ParseModality converts a string to a Modality.
func ParseModality(s string) (Modality, error) {
	switch Modality(s) {
	case ModalityKeyboard, ModalityPointer:
		return Modality(s), nil
	default:
		return "", fmt.Errorf("unknown modality %q", s)
	}
}

// Kind is the type of a raw input event.
type Kind string

const (
	KindMove    Kind = "move"
	KindDown    Kind = "down"
	KindUp      Kind = "up"
	KindClick   Kind = "click"
	KindWheel   Kind = "wheel"
	KindKeyDown Kind = "keydown"
	KindKeyUp   Kind = "keyup"
)

// Valid reports whether k is a known event kind.
func (k Kind) Valid() bool {
	switch k {
	case KindMove, KindDown, KindUp, KindClick, KindWheel, KindKeyDown, KindKeyUp:
		return true
	}
	return false
}

// Modality returns the modality a kind belongs to.
func (k Kind) Modality() Modality {
	if k == KindKeyDown || k == KindKeyUp {
		return ModalityKeyboard
	}
	return ModalityPointer
}

// RawEvent is one captured input event. It is never mutated after creation.
type RawEvent struct {
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	// Pointer fields. HasPosition is false for events without coordinates.
	X           float64 `json:"x,omitempty"`
	Y           float64 `json:"y,omitempty"`
	HasPosition bool    `json:"has_position,omitempty"`

	// Viewport dimensions at capture time, used to normalize X and Y.
	ViewportWidth  float64 `json:"viewport_width,omitempty"`
	ViewportHeight float64 `json:"viewport_height,omitempty"`

	// Keyboard fields.
	Key  string `json:"key,omitempty"`
	Code string `json:"code,omitempty"`

	// Domain is the origin the event was captured on.
	Domain string `json:"domain,omitempty"`
}

// Modality returns the modality derived from the event kind.
func (e RawEvent) Modality() Modality {
	return e.Kind.Modality()
}
