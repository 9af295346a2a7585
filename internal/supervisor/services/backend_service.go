// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package services

import (
	"context"
	"fmt"

	"github.com/tomtom215/macroguard/internal/logging"
)

// Loader is a model backend that loads asynchronously.
// inference.HTTPBackend and inference.WasmBackend satisfy it.
type Loader interface {
	Load(ctx context.Context) error
	Ready() bool
}

// BackendLoaderService loads the inference model in the background so the
// server starts serving rule scores immediately. A failed load is returned
// to the supervisor, which retries after its failure backoff. Once loaded
// the service idles until shutdown.
type BackendLoaderService struct {
	loader Loader
	name   string
}

// NewBackendLoaderService wraps l.
func NewBackendLoaderService(l Loader) *BackendLoaderService {
	return &BackendLoaderService{loader: l, name: "inference-loader"}
}

// Serve implements suture.Service.
func (s *BackendLoaderService) Serve(ctx context.Context) error {
	if !s.loader.Ready() {
		if err := s.loader.Load(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("load inference backend: %w", err)
		}
	}
	logging.Debug().Msg("Inference backend loaded, loader idle")
	<-ctx.Done()
	return ctx.Err()
}

// String names the service in supervisor events.
func (s *BackendLoaderService) String() string {
	return s.name
}
