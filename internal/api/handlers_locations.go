// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/BrianFlannery/mage-server-1/internal/location"
	"github.com/BrianFlannery/mage-server-1/internal/metrics"
	"github.com/BrianFlannery/mage-server-1/internal/models"
	"github.com/BrianFlannery/mage-server-1/internal/validation"
)

// CreateLocations handles POST /api/events/{eventID}/locations. The body
// is either a single position report or an array; a single report comes
// back as a single document, an array as an array.
func (h *Handler) CreateLocations(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	eventID := chi.URLParam(r, "eventID")

	var raw json.RawMessage
	if err := decodeBody(r, &raw); err != nil {
		respondDomainError(w, r, err)
		return
	}

	drafts, single, err := decodeLocationDrafts(raw)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	locations, err := h.locations.Create(r.Context(), user, eventID, drafts)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	metrics.RecordLocationBatch(len(locations))

	if single {
		writeJSON(w, http.StatusCreated, locations[0])
		return
	}
	writeJSON(w, http.StatusCreated, locations)
}

// decodeLocationDrafts accepts a bare report or an array of reports.
func decodeLocationDrafts(raw json.RawMessage) ([]location.Draft, bool, error) {
	trimmed := []byte(raw)
	for len(trimmed) > 0 && (trimmed[0] == ' ' || trimmed[0] == '\t' || trimmed[0] == '\n' || trimmed[0] == '\r') {
		trimmed = trimmed[1:]
	}
	if len(trimmed) == 0 {
		return nil, false, models.NewInvalidInput("body", "empty body")
	}

	if trimmed[0] == '[' {
		var drafts []location.Draft
		if err := json.Unmarshal(raw, &drafts); err != nil {
			return nil, false, models.NewInvalidInput("body", "malformed location array: %v", err)
		}
		return drafts, false, nil
	}

	var draft location.Draft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return nil, false, models.NewInvalidInput("body", "malformed location: %v", err)
	}
	return []location.Draft{draft}, true, nil
}

// GetLocationHistory handles GET /api/events/{eventID}/locations, reading
// the historical log newest first. userId scopes to one user;
// lastLocationId pages further back.
func (h *Handler) GetLocationHistory(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	eventID := chi.URLParam(r, "eventID")

	f, err := buildFilter(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	limit, err := parseLimit(r, h.historyMax)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	locations, err := h.locations.GetHistory(r.Context(), user, eventID, r.URL.Query().Get("userId"), f, limit)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, locations)
}

// GetCurrentPositions handles GET /api/events/{eventID}/locations/users,
// returning each user's current position keyed by user id.
func (h *Handler) GetCurrentPositions(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	eventID := chi.URLParam(r, "eventID")

	f, err := buildFilter(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	limit, err := parseLimit(r, h.historyMax)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	positions, err := h.locations.GetCurrentPositions(r.Context(), user, eventID, f, limit)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

// timestampRequest is the body of a current-position timestamp refresh.
type timestampRequest struct {
	Timestamp time.Time `json:"timestamp" validate:"required"`
}

// UpdateLocationTimestamp handles PUT .../locations/timestamp, refreshing
// the caller's own current-position record with the supplied instant. The
// historical log is untouched.
func (h *Handler) UpdateLocationTimestamp(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	eventID := chi.URLParam(r, "eventID")

	var req timestampRequest
	if err := decodeBody(r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		respondDomainError(w, r, err)
		return
	}

	loc, err := h.locations.UpdateTimestamp(r.Context(), user, eventID, req.Timestamp)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}
