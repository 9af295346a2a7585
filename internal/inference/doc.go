// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

// Package inference provides the model backends consumed by the model-backed
// scorer. A Backend turns one input tensor into two-class logits.
//
// Implementations:
//
//   - HTTPBackend calls a model server, polling it for readiness at startup,
//     with a gobreaker circuit breaker and an x/time/rate limiter in front
//     of every call.
//   - WasmBackend runs a model compiled to WebAssembly in-process on wazero.
//   - FuncBackend adapts a Go function, for embedded models and tests.
//
// Backends report readiness rather than failing while loading; the scorer
// maps an unready backend to a skipped window.
package inference
