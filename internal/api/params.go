// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/macroguard/internal/input"
)

const (
	defaultDetectionLimit = 50
	maxDetectionLimit     = 1000
)

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// modalityParam parses the {modality} path segment, writing a 400 on failure.
func modalityParam(rw *ResponseWriter, r *http.Request) (input.Modality, bool) {
	m, err := input.ParseModality(chi.URLParam(r, "modality"))
	if err != nil {
		rw.Error(http.StatusBadRequest, ErrCodeInvalidModality, err.Error())
		return "", false
	}
	return m, true
}

// limitParam parses the optional ?limit= query value within [1, maxLimit].
func limitParam(rw *ResponseWriter, r *http.Request, def, maxLimit int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxLimit {
		rw.BadRequest("limit must be an integer between 1 and " + strconv.Itoa(maxLimit))
		return 0, false
	}
	return n, true
}
