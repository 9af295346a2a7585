// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

//go:build !nats

package emitter

import (
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// NATSAvailable reports whether this binary was built with NATS support.
const NATSAvailable = false

// NewNATSPublisher returns an error in non-NATS builds.
// Build with -tags=nats to enable it.
func NewNATSPublisher(_ NATSConfig, _ watermill.LoggerAdapter) (message.Publisher, error) {
	return nil, errors.New("NATS publisher not available: build with -tags=nats")
}
