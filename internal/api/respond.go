// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/spindeck/spindeck/internal/logging"
)

// apiResponse is the envelope every endpoint answers with.
type apiResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")

	body, err := json.Marshal(apiResponse{Status: "ok", Data: data})
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")

	body, err := json.Marshal(apiResponse{Status: "error", Error: &apiError{Code: code, Message: message}})
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal error response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Error().Err(err).Msg("Failed to write error response")
	}
}
