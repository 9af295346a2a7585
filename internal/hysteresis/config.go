// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package hysteresis

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by Configure and Config.Validate. The
// aggregator keeps its previous configuration when it is returned.
var ErrInvalidConfig = errors.New("invalid hysteresis configuration")

// Config holds the decision thresholds for one modality.
type Config struct {
	// HistorySize is K, the number of consecutive scores required before
	// any decision is made.
	HistorySize int `json:"history_size"`

	// IndividualThreshold is T_ind; every sample in the history must reach it.
	IndividualThreshold float64 `json:"individual_threshold"`

	// AlertThreshold is T_alert, compared against the history mean.
	AlertThreshold float64 `json:"alert_threshold"`

	// BlockThreshold is T_block, compared against the history mean.
	BlockThreshold float64 `json:"block_threshold"`

	AlertCooldown time.Duration `json:"alert_cooldown"`
	BlockCooldown time.Duration `json:"block_cooldown"`

	// RepetitivenessPx is the pattern diversity below which pointer motion
	// counts as repetitive. Ignored for keyboard.
	RepetitivenessPx float64 `json:"repetitiveness_px"`
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		HistorySize:         5,
		IndividualThreshold: 0.65,
		AlertThreshold:      0.70,
		BlockThreshold:      0.75,
		AlertCooldown:       10 * time.Second,
		BlockCooldown:       30 * time.Second,
		RepetitivenessPx:    5,
	}
}

// Validate reports whether c is usable. Errors wrap ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.HistorySize < 1:
		return fmt.Errorf("%w: history_size must be at least 1, got %d", ErrInvalidConfig, c.HistorySize)
	case !unit(c.IndividualThreshold):
		return fmt.Errorf("%w: individual_threshold %v outside [0,1]", ErrInvalidConfig, c.IndividualThreshold)
	case !unit(c.AlertThreshold):
		return fmt.Errorf("%w: alert_threshold %v outside [0,1]", ErrInvalidConfig, c.AlertThreshold)
	case !unit(c.BlockThreshold):
		return fmt.Errorf("%w: block_threshold %v outside [0,1]", ErrInvalidConfig, c.BlockThreshold)
	case c.BlockThreshold < c.AlertThreshold:
		return fmt.Errorf("%w: block_threshold %v below alert_threshold %v", ErrInvalidConfig, c.BlockThreshold, c.AlertThreshold)
	case c.AlertCooldown < 0 || c.BlockCooldown < 0:
		return fmt.Errorf("%w: cooldowns must not be negative", ErrInvalidConfig)
	case c.RepetitivenessPx < 0:
		return fmt.Errorf("%w: repetitiveness_px must not be negative", ErrInvalidConfig)
	}
	return nil
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}
