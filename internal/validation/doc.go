// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

// Package validation wraps go-playground/validator v10 behind a singleton
// instance with MacroGuard-specific tags (modality, eventkind,
// domainpattern). Field names in errors use the json (or koanf) tag so
// messages match what API clients and config files actually spell.
//
// Both the configuration loader and the HTTP request decoders validate
// through ValidateStruct; the API layer converts failures with ToAPIError.
package validation
