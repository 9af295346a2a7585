// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

// Package logging provides centralized zerolog-based logging for MacroGuard.
//
// A single global logger is configured once from main and used everywhere
// through package-level helpers:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("modality", "pointer").Msg("Pipeline started")
//	logging.Err(err).Msg("Inference failed")
//
// Context-aware logging attaches correlation and session IDs:
//
//	ctx = logging.ContextWithSessionID(ctx, sessionID)
//	logging.Ctx(ctx).Debug().Float64("probability", p).Msg("Window scored")
//
// # slog bridge
//
// Libraries that expect *slog.Logger (sutureslog, watermill) receive one
// from NewSlogLogger, which writes through the same zerolog instance.
//
// # Conventions
//
// Always terminate event chains with Msg or Send, and prefer structured
// fields over Msgf formatting.
package logging
