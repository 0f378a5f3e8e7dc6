// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BrianFlannery/mage-server-1/internal/authz"
	"github.com/BrianFlannery/mage-server-1/internal/logging"
	"github.com/BrianFlannery/mage-server-1/internal/websocket"
)

// WatchEvent handles GET /api/events/{eventID}/ws, upgrading to a
// websocket that streams the event's observation and location changes.
// Read permission on the event is checked before the upgrade.
func (h *Handler) WatchEvent(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	eventID := chi.URLParam(r, "eventID")

	if err := h.gate.Authorize(r.Context(), user, eventID, authz.PermReadObservationEvent); err != nil {
		respondDomainError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the failure response.
		logging.Debug().Err(err).Str("event_id", eventID).Msg("Websocket upgrade failed")
		return
	}
	websocket.NewClient(h.hub, conn, eventID, user.ID).Start()
}
