// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

// Package main is the entry point for the MAGE observation server.
//
// The server tracks field observations and user locations scoped to
// events. Observations live in BadgerDB; location history appends to a
// DuckDB log while a capped per-user buffer answers "where is everyone
// now" without scanning history. Changes fan out to websocket watchers
// through an in-process bus.
//
// # Startup order
//
//  1. Configuration (koanf: defaults, YAML file, environment)
//  2. Logging (zerolog)
//  3. Stores: BadgerDB, DuckDB location log, attachment blob root
//  4. Authorization: casbin enforcer over the membership store
//  5. Engines, event bus, websocket hub
//  6. Supervisor tree: data / messaging / api layers
//
// # Shutdown
//
// SIGINT and SIGTERM cancel the root context; the supervisor tree drains
// the HTTP server, stops the hub, and halts badger GC before exit.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/BrianFlannery/mage-server-1/internal/api"
	"github.com/BrianFlannery/mage-server-1/internal/attachment"
	"github.com/BrianFlannery/mage-server-1/internal/auth"
	"github.com/BrianFlannery/mage-server-1/internal/authz"
	"github.com/BrianFlannery/mage-server-1/internal/blob"
	"github.com/BrianFlannery/mage-server-1/internal/config"
	"github.com/BrianFlannery/mage-server-1/internal/database"
	"github.com/BrianFlannery/mage-server-1/internal/eventbus"
	"github.com/BrianFlannery/mage-server-1/internal/location"
	"github.com/BrianFlannery/mage-server-1/internal/logging"
	"github.com/BrianFlannery/mage-server-1/internal/membership"
	"github.com/BrianFlannery/mage-server-1/internal/observation"
	"github.com/BrianFlannery/mage-server-1/internal/store"
	"github.com/BrianFlannery/mage-server-1/internal/supervisor"
	"github.com/BrianFlannery/mage-server-1/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("badger_dir", cfg.Storage.BadgerDir).
		Str("location_log", cfg.Database.Path).
		Str("addr", cfg.Server.Addr()).
		Msg("Starting MAGE server")

	db, err := store.Open(cfg.Storage.BadgerDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open document store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing document store")
		}
	}()

	history, err := database.New(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open location log")
	}
	defer func() {
		if err := history.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing location log")
		}
	}()

	blobs, err := blob.NewStore(cfg.Storage.BlobDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open attachment storage")
	}

	// Membership lookups go through a circuit breaker so a struggling
	// store degrades authorization to fail-fast dependency errors.
	members := membership.NewBreaker(membership.NewStore(db), membership.DefaultBreakerConfig())

	enforcer, err := authz.NewEnforcer(nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build policy enforcer")
	}
	gate, err := authz.NewGate(enforcer, members)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build authorization gate")
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build token service")
	}

	bus := eventbus.New()
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	attachments := attachment.NewService(store.NewAttachments(db), blobs)
	observations := observation.NewEngine(store.NewObservations(db), attachments, gate, bus)
	locations := location.NewEngine(history, store.NewCappedBuffer(db), gate, bus)
	hub := websocket.NewHub(bus)

	handler := api.NewHandler(observations, locations, hub, gate, cfg.Locations.HistoryMaxLimit)
	router := api.NewRouter(handler, tokens, api.RouterConfig{
		CORSOrigins:     cfg.Server.CORSOrigins,
		RateLimitReqs:   cfg.Server.RateLimitReqs,
		RateLimitWindow: cfg.Server.RateLimitWindow,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDataService(store.NewGC(db, cfg.Storage.GCInterval))
	tree.AddMessagingService(hub)
	tree.AddAPIService(supervisor.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited with error")
		os.Exit(1)
	}
	logging.Info().Msg("Server stopped")
}
