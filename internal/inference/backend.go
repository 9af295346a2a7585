// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package inference

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotLoaded is returned by Run when the backend has not finished loading.
var ErrNotLoaded = errors.New("inference backend not loaded")

// Tensor is a dense float32 input with an explicit shape, batch dimension first.
type Tensor struct {
	Shape []int64   `json:"shape"`
	Data  []float32 `json:"data"`
}

// Validate checks that the shape accounts for every element.
func (t Tensor) Validate() error {
	if len(t.Shape) == 0 {
		return errors.New("tensor has no shape")
	}
	n := int64(1)
	for _, d := range t.Shape {
		if d <= 0 {
			return fmt.Errorf("tensor dimension %d is not positive", d)
		}
		n *= d
	}
	if n != int64(len(t.Data)) {
		return fmt.Errorf("tensor shape %v needs %d values, has %d", t.Shape, n, len(t.Data))
	}
	return nil
}

// ModelInfo describes the model served by a backend.
type ModelInfo struct {
	Name       string  `json:"name"`
	Version    string  `json:"version,omitempty"`
	Backend    string  `json:"backend"`
	InputShape []int64 `json:"input_shape,omitempty"`
	Classes    int     `json:"classes,omitempty"`
}

// Backend runs a pre-trained two-class classifier.
type Backend interface {
	// Ready reports whether the model has finished loading.
	Ready() bool

	// Run returns the raw class logits for one input tensor.
	Run(ctx context.Context, input Tensor) ([]float32, error)

	// Info describes the loaded model. Fields may be empty before loading.
	Info() ModelInfo

	// Close releases backend resources.
	Close(ctx context.Context) error
}
