// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package detector

import (
	"fmt"
	"time"

	"github.com/tomtom215/macroguard/internal/features"
	"github.com/tomtom215/macroguard/internal/hysteresis"
	"github.com/tomtom215/macroguard/internal/input"
)

// Config configures one modality pipeline.
type Config struct {
	Modality input.Modality

	// BufferSize is the ingestion ring capacity.
	BufferSize int

	// TriggerEvery schedules a window after this many new events once the
	// buffer holds enough for extraction.
	TriggerEvery int

	Keyboard   features.KeyboardOptions
	Pointer    features.PointerOptions
	Hysteresis hysteresis.Config

	// InferenceTimeout bounds one scoring pass; a window that exceeds it
	// is dropped.
	InferenceTimeout time.Duration
}

// DefaultKeyboardConfig returns the keyboard pipeline defaults.
func DefaultKeyboardConfig() Config {
	kb := features.DefaultKeyboardOptions()
	return Config{
		Modality:         input.ModalityKeyboard,
		BufferSize:       3 * kb.AnalysisWindow,
		TriggerEvery:     5,
		Keyboard:         kb,
		Pointer:          features.DefaultPointerOptions(),
		Hysteresis:       hysteresis.DefaultConfig(),
		InferenceTimeout: 2 * time.Second,
	}
}

// DefaultPointerConfig returns the pointer pipeline defaults.
func DefaultPointerConfig() Config {
	pt := features.DefaultPointerOptions()
	return Config{
		Modality:         input.ModalityPointer,
		BufferSize:       pt.SeqLen,
		TriggerEvery:     1,
		Keyboard:         features.DefaultKeyboardOptions(),
		Pointer:          pt,
		Hysteresis:       hysteresis.DefaultConfig(),
		InferenceTimeout: 2 * time.Second,
	}
}

// DefaultConfig returns the defaults for modality m.
func DefaultConfig(m input.Modality) Config {
	if m == input.ModalityPointer {
		return DefaultPointerConfig()
	}
	return DefaultKeyboardConfig()
}

// minEvents is the buffer length at which windows start being scheduled.
func (c Config) minEvents() int {
	if c.Modality == input.ModalityPointer {
		return c.Pointer.MinEvents
	}
	return c.Keyboard.MinEvents
}

// Validate checks the pipeline settings and the hysteresis thresholds.
func (c Config) Validate() error {
	if _, err := input.ParseModality(string(c.Modality)); err != nil {
		return err
	}
	if c.BufferSize < 1 {
		return fmt.Errorf("buffer size must be at least 1, got %d", c.BufferSize)
	}
	if c.TriggerEvery < 1 {
		return fmt.Errorf("trigger_every must be at least 1, got %d", c.TriggerEvery)
	}
	if c.InferenceTimeout <= 0 {
		return fmt.Errorf("inference timeout must be positive, got %s", c.InferenceTimeout)
	}
	if c.minEvents() > c.BufferSize {
		return fmt.Errorf("min events %d exceeds buffer size %d", c.minEvents(), c.BufferSize)
	}
	return c.Hysteresis.Validate()
}
