// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package config

import (
	"fmt"
	"net/url"

	"github.com/tomtom215/macroguard/internal/input"
	"github.com/tomtom215/macroguard/internal/validation"
)

// Validate checks struct tags first, then the rules that span fields.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	for _, m := range input.Modalities {
		if err := c.Pipeline(m).Validate(); err != nil {
			return fmt.Errorf("detection.%s: %w", m, err)
		}
	}

	return c.validateInference()
}

// validateInference checks that the selected backend has what it needs.
func (c *Config) validateInference() error {
	switch c.Inference.Backend {
	case "http":
		if c.Inference.URL == "" {
			return fmt.Errorf("INFERENCE_URL is required when INFERENCE_BACKEND=http")
		}
		u, err := url.Parse(c.Inference.URL)
		if err != nil {
			return fmt.Errorf("INFERENCE_URL is invalid: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("INFERENCE_URL must use http or https scheme, got %q", u.Scheme)
		}
	case "wasm":
		if c.Inference.WasmPath == "" {
			return fmt.Errorf("INFERENCE_WASM_PATH is required when INFERENCE_BACKEND=wasm")
		}
	}
	return nil
}
