// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/macroguard/internal/hysteresis"
	"github.com/tomtom215/macroguard/internal/session"
	"github.com/tomtom215/macroguard/internal/validation"
)

// Error codes for API responses
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeSessionNotFound    = "SESSION_NOT_FOUND"
	ErrCodeInvalidModality    = "INVALID_MODALITY"
	ErrCodeInvalidConfig      = "INVALID_CONFIG"
	ErrCodeTooManySessions    = "TOO_MANY_SESSIONS"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// writeServiceError maps session and detection errors onto HTTP responses.
func writeServiceError(rw *ResponseWriter, err error) {
	var verr *validation.RequestValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(rw, verr)
	case errors.Is(err, session.ErrNotFound):
		rw.Error(http.StatusNotFound, ErrCodeSessionNotFound, err.Error())
	case errors.Is(err, session.ErrTooManySessions):
		rw.Error(http.StatusServiceUnavailable, ErrCodeTooManySessions, err.Error())
	case errors.Is(err, hysteresis.ErrInvalidConfig):
		rw.Error(http.StatusBadRequest, ErrCodeInvalidConfig, err.Error())
	default:
		rw.InternalError(err)
	}
}

func writeValidationError(rw *ResponseWriter, verr *validation.RequestValidationError) {
	apiErr := verr.ToAPIError()
	var details interface{}
	if apiErr.Details != nil {
		details = apiErr.Details
	}
	rw.ErrorWithDetails(http.StatusBadRequest, apiErr.Code, apiErr.Message, details)
}
