// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BrianFlannery/mage-server-1/internal/metrics"
	"github.com/BrianFlannery/mage-server-1/internal/models"
	"github.com/BrianFlannery/mage-server-1/internal/observation"
	"github.com/BrianFlannery/mage-server-1/internal/validation"
)

// CreateObservation handles POST /api/events/{eventID}/observations.
func (h *Handler) CreateObservation(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	eventID := chi.URLParam(r, "eventID")

	var draft observation.Draft
	if err := decodeBody(r, &draft); err != nil {
		respondDomainError(w, r, err)
		return
	}

	obs, err := h.observations.Create(r.Context(), user, eventID, draft)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	metrics.ObservationOperations.WithLabelValues("create").Inc()
	writeJSON(w, http.StatusCreated, obs)
}

// ListObservations handles GET /api/events/{eventID}/observations.
func (h *Handler) ListObservations(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	eventID := chi.URLParam(r, "eventID")

	f, err := buildFilter(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	observations, err := h.observations.GetAll(r.Context(), user, eventID, f)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	if fields := parseFields(r); fields != nil {
		projected := make([]map[string]interface{}, 0, len(observations))
		for _, obs := range observations {
			p, err := observation.ProjectFields(obs, fields)
			if err != nil {
				respondDomainError(w, r, err)
				return
			}
			projected = append(projected, p)
		}
		writeJSON(w, http.StatusOK, projected)
		return
	}
	writeJSON(w, http.StatusOK, observations)
}

// GetObservation handles GET /api/events/{eventID}/observations/{observationID}.
func (h *Handler) GetObservation(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	eventID := chi.URLParam(r, "eventID")
	observationID := chi.URLParam(r, "observationID")

	obs, err := h.observations.Get(r.Context(), user, eventID, observationID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, obs)
}

// UpdateObservation handles PUT /api/events/{eventID}/observations/{observationID}.
func (h *Handler) UpdateObservation(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	eventID := chi.URLParam(r, "eventID")
	observationID := chi.URLParam(r, "observationID")

	var upd observation.Update
	if err := decodeBody(r, &upd); err != nil {
		respondDomainError(w, r, err)
		return
	}

	obs, err := h.observations.Update(r.Context(), user, eventID, observationID, upd)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	metrics.ObservationOperations.WithLabelValues("update").Inc()
	writeJSON(w, http.StatusOK, obs)
}

// stateRequest is the body of a state transition.
type stateRequest struct {
	Name string `json:"name" validate:"required,oneof=active complete archive"`
}

// TransitionObservationState handles POST .../observations/{observationID}/states.
func (h *Handler) TransitionObservationState(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	eventID := chi.URLParam(r, "eventID")
	observationID := chi.URLParam(r, "observationID")

	var req stateRequest
	if err := decodeBody(r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		respondDomainError(w, r, err)
		return
	}

	obs, err := h.observations.TransitionState(r.Context(), user, eventID, observationID, models.StateName(req.Name))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	metrics.ObservationOperations.WithLabelValues("state").Inc()
	writeJSON(w, http.StatusCreated, obs)
}

// DeleteObservation handles DELETE .../observations/{observationID}.
func (h *Handler) DeleteObservation(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	eventID := chi.URLParam(r, "eventID")
	observationID := chi.URLParam(r, "observationID")

	if err := h.observations.Delete(r.Context(), user, eventID, observationID); err != nil {
		respondDomainError(w, r, err)
		return
	}
	metrics.ObservationOperations.WithLabelValues("delete").Inc()
	w.WriteHeader(http.StatusNoContent)
}
