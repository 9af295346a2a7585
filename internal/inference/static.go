// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package inference

import (
	"context"
	"sync"
)

// FuncBackend adapts a function to Backend. It is always ready unless
// SetReady(false) is called; tests and embedded models use it.
type FuncBackend struct {
	mu    sync.RWMutex
	fn    func(ctx context.Context, input Tensor) ([]float32, error)
	info  ModelInfo
	ready bool
}

// NewFuncBackend creates a ready backend calling fn for every Run.
func NewFuncBackend(info ModelInfo, fn func(ctx context.Context, input Tensor) ([]float32, error)) *FuncBackend {
	if info.Backend == "" {
		info.Backend = "func"
	}
	return &FuncBackend{fn: fn, info: info, ready: true}
}

// SetReady toggles readiness.
func (b *FuncBackend) SetReady(ready bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ready = ready
}

// Ready implements Backend.
func (b *FuncBackend) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ready
}

// Run implements Backend.
func (b *FuncBackend) Run(ctx context.Context, input Tensor) ([]float32, error) {
	if !b.Ready() {
		return nil, ErrNotLoaded
	}
	return b.fn(ctx, input)
}

// Info implements Backend.
func (b *FuncBackend) Info() ModelInfo {
	return b.info
}

// Close implements Backend.
func (b *FuncBackend) Close(context.Context) error {
	return nil
}
