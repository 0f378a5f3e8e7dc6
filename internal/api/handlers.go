// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

// Package api is the HTTP transport: chi routing, JWT-guarded handlers
// over the observation and location engines, attachment streaming with
// byte-range support, and the websocket upgrade endpoint.
package api

import (
	"context"
	"net/http"
	"time"

	gorilla "github.com/gorilla/websocket"

	"github.com/BrianFlannery/mage-server-1/internal/auth"
	"github.com/BrianFlannery/mage-server-1/internal/authz"
	"github.com/BrianFlannery/mage-server-1/internal/location"
	"github.com/BrianFlannery/mage-server-1/internal/models"
	"github.com/BrianFlannery/mage-server-1/internal/observation"
	"github.com/BrianFlannery/mage-server-1/internal/websocket"
)

// Authorizer gates the endpoints that sit outside an engine operation,
// like the websocket upgrade.
type Authorizer interface {
	Authorize(ctx context.Context, user models.User, eventID string, perm authz.Permission) error
}

// Handler carries the engines the routes dispatch into.
type Handler struct {
	observations *observation.Engine
	locations    *location.Engine
	hub          *websocket.Hub
	gate         Authorizer
	historyMax   int
	started      time.Time
	upgrader     gorilla.Upgrader
}

// NewHandler builds the handler set. historyMax caps the location history
// page size a caller may request.
func NewHandler(observations *observation.Engine, locations *location.Engine, hub *websocket.Hub, gate Authorizer, historyMax int) *Handler {
	if historyMax < 1 {
		historyMax = 10000
	}
	return &Handler{
		observations: observations,
		locations:    locations,
		hub:          hub,
		gate:         gate,
		historyMax:   historyMax,
		started:      time.Now(),
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

// currentUser pulls the authenticated user from the request context. The
// auth middleware guarantees presence on guarded routes.
func currentUser(r *http.Request) (models.User, bool) {
	return auth.UserFromContext(r.Context())
}
