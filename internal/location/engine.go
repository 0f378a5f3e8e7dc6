// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

// Package location implements position-report ingestion and its two read
// paths: the unbounded historical log and the capped per-(event,user)
// current-position buffer. Ingest dual-writes both; the log write decides
// the call's outcome while the capped write is a best-effort side channel
// whose failures are metered, never surfaced to the caller.
package location

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/BrianFlannery/mage-server-1/internal/authz"
	"github.com/BrianFlannery/mage-server-1/internal/database"
	"github.com/BrianFlannery/mage-server-1/internal/filter"
	"github.com/BrianFlannery/mage-server-1/internal/logging"
	"github.com/BrianFlannery/mage-server-1/internal/models"
	"github.com/BrianFlannery/mage-server-1/internal/store"
)

// DefaultHistoryLimit bounds history queries when the caller does not ask
// for a larger page explicitly.
const DefaultHistoryLimit = 1

var cappedWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "mage_capped_buffer_write_failures_total",
	Help: "Current-position buffer writes that failed during location ingest",
})

// Authorizer is the authorization collaborator.
type Authorizer interface {
	Authorize(ctx context.Context, user models.User, eventID string, perm authz.Permission) error
	TeamsForSubmission(ctx context.Context, user models.User, eventID string) ([]string, error)
}

// Publisher announces accepted position reports, best effort.
type Publisher interface {
	PublishLocations(eventID string, locations []*models.Location) error
}

// Engine coordinates location operations.
type Engine struct {
	log    *database.DB
	capped *store.CappedBuffer
	gate   Authorizer
	bus    Publisher
}

// NewEngine builds the location engine.
func NewEngine(log *database.DB, capped *store.CappedBuffer, gate Authorizer, bus Publisher) *Engine {
	return &Engine{log: log, capped: capped, gate: gate, bus: bus}
}

// Draft is one submitted position report before validation.
type Draft struct {
	Geometry   models.Geometry           `json:"geometry"`
	Properties models.LocationProperties `json:"properties"`
}

// validateBatch checks every report before anything persists. The first
// offending report fails the whole batch; the index keeps the error
// actionable for batch submitters.
func validateBatch(drafts []Draft) error {
	if len(drafts) == 0 {
		return models.NewInvalidInput("locations", "at least one report is required")
	}
	for i, d := range drafts {
		if d.Geometry.IsZero() {
			return models.NewInvalidInput(field(i, "geometry"), "geometry is required")
		}
		if err := d.Geometry.Validate(); err != nil {
			return models.NewInvalidInput(field(i, "geometry"), "invalid geometry: %v", err)
		}
		if d.Properties.Timestamp.IsZero() {
			return models.NewInvalidInput(field(i, "properties.timestamp"), "timestamp is required")
		}
	}
	return nil
}

func field(i int, name string) string {
	return fmt.Sprintf("locations[%d].%s", i, name)
}

// Create validates and ingests a batch of position reports. The batch is
// atomic in the log: one bad report persists nothing. Capped-buffer upserts
// follow per report and are best effort.
func (e *Engine) Create(ctx context.Context, user models.User, eventID string, drafts []Draft) ([]*models.Location, error) {
	if err := validateBatch(drafts); err != nil {
		return nil, err
	}
	if err := e.gate.Authorize(ctx, user, eventID, authz.PermCreateLocation); err != nil {
		return nil, err
	}
	teams, err := e.gate.TeamsForSubmission(ctx, user, eventID)
	if err != nil {
		return nil, err
	}

	locations := make([]*models.Location, len(drafts))
	for i, d := range drafts {
		id, err := uuid.NewV7()
		if err != nil {
			id = uuid.New()
		}
		locations[i] = &models.Location{
			ID:         id.String(),
			EventID:    eventID,
			UserID:     user.ID,
			DeviceID:   d.Properties.DeviceID,
			Type:       models.FeatureType,
			Geometry:   d.Geometry,
			Properties: d.Properties,
			TeamIDs:    teams,
		}
	}

	if err := e.log.InsertLocations(ctx, locations); err != nil {
		return nil, err
	}

	for _, loc := range locations {
		if err := e.capped.Upsert(ctx, loc); err != nil {
			cappedWriteFailures.Inc()
			logging.Error().Err(err).Str("event_id", eventID).Str("user_id", user.ID).
				Str("location_id", loc.ID).Msg("Current-position buffer write failed")
		}
	}

	if e.bus != nil {
		if err := e.bus.PublishLocations(eventID, locations); err != nil {
			logging.Warn().Err(err).Str("event_id", eventID).Msg("Failed to publish location batch")
		}
	}
	logging.Debug().Str("event_id", eventID).Str("user_id", user.ID).
		Int("count", len(locations)).Msg("Location batch ingested")
	return locations, nil
}

// GetHistory returns reports from the historical log, newest first. An empty
// userID spans all users; limit defaults to DefaultHistoryLimit so callers
// opt into large pages explicitly.
func (e *Engine) GetHistory(ctx context.Context, user models.User, eventID, userID string, f filter.Filter, limit int) ([]*models.Location, error) {
	if err := e.gate.Authorize(ctx, user, eventID, authz.PermReadLocationEvent); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return e.log.GetLocations(ctx, eventID, userID, f, limit)
}

// GetCurrentPositions returns each user's current position in the event,
// keyed by user id. Cost is proportional to the number of users with a
// position, never to history depth.
func (e *Engine) GetCurrentPositions(ctx context.Context, user models.User, eventID string, f filter.Filter, limit int) (map[string]*models.Location, error) {
	if err := e.gate.Authorize(ctx, user, eventID, authz.PermReadLocationEvent); err != nil {
		return nil, err
	}
	positions, err := e.capped.CurrentPositions(ctx, eventID, f, limit)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*models.Location, len(positions))
	for _, loc := range positions {
		out[loc.UserID] = loc
	}
	return out, nil
}

// UpdateTimestamp refreshes the timestamp of the caller's own current
// position record, applying the supplied instant as given. Only the capped
// buffer changes; the historical log keeps the original report.
func (e *Engine) UpdateTimestamp(ctx context.Context, user models.User, eventID string, timestamp time.Time) (*models.Location, error) {
	if timestamp.IsZero() {
		return nil, models.NewInvalidInput("timestamp", "timestamp is required")
	}
	if err := e.gate.Authorize(ctx, user, eventID, authz.PermCreateLocation); err != nil {
		return nil, err
	}

	loc, err := e.capped.Current(ctx, eventID, user.ID)
	if err != nil {
		return nil, err
	}
	loc.Properties.Timestamp = timestamp.UTC()
	if err := e.capped.SetCurrent(ctx, loc); err != nil {
		return nil, err
	}
	return loc, nil
}
