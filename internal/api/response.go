// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/BrianFlannery/mage-server-1/internal/attachment"
	"github.com/BrianFlannery/mage-server-1/internal/logging"
	"github.com/BrianFlannery/mage-server-1/internal/middleware"
	"github.com/BrianFlannery/mage-server-1/internal/models"
)

// Machine-readable error codes.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeInvalidFilter     = "INVALID_FILTER"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeRangeNotSatisfied = "RANGE_NOT_SATISFIABLE"
	ErrCodeDependencyFailure = "DEPENDENCY_FAILURE"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// apiError is the wire shape of an error response.
type apiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	Param     string `json:"param,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON writes v with the given status. Encoding failures are logged;
// the status line is already on the wire by then.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("Failed to encode response body")
	}
}

// writeError writes an error envelope.
func writeError(w http.ResponseWriter, r *http.Request, status int, apiErr apiError) {
	apiErr.RequestID = middleware.GetRequestID(r.Context())
	writeJSON(w, status, map[string]interface{}{"error": apiErr})
}

// respondDomainError maps a domain error to its HTTP status. Unrecognized
// errors become an opaque 500; the detail goes to the log, not the client.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var invalidInput *models.InvalidInputError
	if errors.As(err, &invalidInput) {
		writeError(w, r, http.StatusBadRequest, apiError{
			Code:    ErrCodeValidation,
			Message: invalidInput.Reason,
			Field:   invalidInput.Field,
		})
		return
	}

	var invalidFilter *models.InvalidFilterError
	if errors.As(err, &invalidFilter) {
		writeError(w, r, http.StatusBadRequest, apiError{
			Code:    ErrCodeInvalidFilter,
			Message: invalidFilter.Reason,
			Param:   invalidFilter.Param,
		})
		return
	}

	var rangeErr *attachment.RangeError
	if errors.As(err, &rangeErr) {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", rangeErr.Size))
		writeError(w, r, http.StatusRequestedRangeNotSatisfiable, apiError{
			Code:    ErrCodeRangeNotSatisfied,
			Message: rangeErr.Error(),
		})
		return
	}

	switch {
	case errors.Is(err, models.ErrNotFound):
		writeError(w, r, http.StatusNotFound, apiError{
			Code:    ErrCodeNotFound,
			Message: "resource not found",
		})
	case errors.Is(err, models.ErrPermissionDenied), errors.Is(err, models.ErrNotInEvent):
		writeError(w, r, http.StatusForbidden, apiError{
			Code:    ErrCodeForbidden,
			Message: err.Error(),
		})
	case errors.Is(err, models.ErrConflict):
		writeError(w, r, http.StatusConflict, apiError{
			Code:    ErrCodeConflict,
			Message: err.Error(),
		})
	case errors.Is(err, models.ErrRangeNotSatisfiable):
		writeError(w, r, http.StatusRequestedRangeNotSatisfiable, apiError{
			Code:    ErrCodeRangeNotSatisfied,
			Message: err.Error(),
		})
	case errors.Is(err, models.ErrDependency):
		writeError(w, r, http.StatusServiceUnavailable, apiError{
			Code:    ErrCodeDependencyFailure,
			Message: "a backing service is unavailable",
		})
	default:
		logging.Error().Err(err).Str("path", r.URL.Path).Msg("Unhandled error serving request")
		writeError(w, r, http.StatusInternalServerError, apiError{
			Code:    ErrCodeInternal,
			Message: "internal server error",
		})
	}
}
