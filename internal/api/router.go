// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BrianFlannery/mage-server-1/internal/auth"
	"github.com/BrianFlannery/mage-server-1/internal/middleware"
)

// RouterConfig tunes the transport-level middleware.
type RouterConfig struct {
	CORSOrigins     []string
	RateLimitReqs   int
	RateLimitWindow time.Duration
}

// NewRouter assembles the route tree. Everything under /api/events
// requires a valid bearer token; /api/health and /metrics stay open for
// probes and scrapers.
func NewRouter(handler *Handler, tokens *auth.TokenService, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Range", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Range", "Accept-Ranges", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/api/health", handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/events/{eventID}", func(r chi.Router) {
		if cfg.RateLimitReqs > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))
		}
		r.Use(middleware.PrometheusMetrics)
		r.Use(tokens.Authenticate)

		r.Route("/observations", func(r chi.Router) {
			r.Post("/", handler.CreateObservation)
			r.Get("/", handler.ListObservations)

			r.Route("/{observationID}", func(r chi.Router) {
				r.Get("/", handler.GetObservation)
				r.Put("/", handler.UpdateObservation)
				r.Delete("/", handler.DeleteObservation)
				r.Post("/states", handler.TransitionObservationState)

				r.Route("/attachments", func(r chi.Router) {
					r.Post("/", handler.AddAttachment)
					r.Get("/{attachmentID}", handler.GetAttachment)
					r.Put("/{attachmentID}", handler.UpdateAttachment)
					r.Delete("/{attachmentID}", handler.DeleteAttachment)
				})
			})
		})

		r.Route("/locations", func(r chi.Router) {
			r.Post("/", handler.CreateLocations)
			r.Get("/", handler.GetLocationHistory)
			r.Get("/users", handler.GetCurrentPositions)
			r.Put("/timestamp", handler.UpdateLocationTimestamp)
		})

		r.Get("/ws", handler.WatchEvent)
	})

	return r
}
