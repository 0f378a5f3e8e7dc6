// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

// Package observation implements the observation lifecycle: creation,
// retrieval, update, state transitions, deletion, and attachment ownership.
// Structural validation runs before authorization so a malformed submission
// is reported as such even to callers who would be denied anyway.
package observation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/BrianFlannery/mage-server-1/internal/attachment"
	"github.com/BrianFlannery/mage-server-1/internal/authz"
	"github.com/BrianFlannery/mage-server-1/internal/eventbus"
	"github.com/BrianFlannery/mage-server-1/internal/filter"
	"github.com/BrianFlannery/mage-server-1/internal/logging"
	"github.com/BrianFlannery/mage-server-1/internal/models"
	"github.com/BrianFlannery/mage-server-1/internal/store"
)

// Authorizer is the authorization collaborator.
type Authorizer interface {
	Authorize(ctx context.Context, user models.User, eventID string, perm authz.Permission) error
	TeamsForSubmission(ctx context.Context, user models.User, eventID string) ([]string, error)
}

// Publisher announces observation changes. Publishing is best effort; a
// failed announcement never fails the operation that caused it.
type Publisher interface {
	PublishObservation(action string, obs *models.Observation) error
}

// Engine coordinates observation operations.
type Engine struct {
	store       *store.Observations
	attachments *attachment.Service
	gate        Authorizer
	bus         Publisher
}

// NewEngine builds the observation engine.
func NewEngine(s *store.Observations, attachments *attachment.Service, gate Authorizer, bus Publisher) *Engine {
	return &Engine{store: s, attachments: attachments, gate: gate, bus: bus}
}

// Draft is a submitted observation document before validation.
type Draft struct {
	Type       string                       `json:"type"`
	Geometry   models.Geometry              `json:"geometry"`
	Properties models.ObservationProperties `json:"properties"`
	DeviceID   string                       `json:"deviceId,omitempty"`
}

// Update carries a partial observation update. Nil sections are left alone;
// a supplied properties section must be complete, fixed fields included.
type Update struct {
	Geometry   *models.Geometry              `json:"geometry,omitempty"`
	Properties *models.ObservationProperties `json:"properties,omitempty"`
}

func validateDraft(d Draft) error {
	if d.Type != models.FeatureType {
		return models.NewInvalidInput("type", "type must be %q", models.FeatureType)
	}
	if d.Geometry.IsZero() {
		return models.NewInvalidInput("geometry", "geometry is required")
	}
	if err := d.Geometry.Validate(); err != nil {
		return err
	}
	return validateProperties(d.Properties)
}

func validateProperties(p models.ObservationProperties) error {
	if p.Timestamp.IsZero() {
		return models.NewInvalidInput("properties.timestamp", "timestamp is required")
	}
	if p.Type == "" {
		return models.NewInvalidInput("properties.type", "type is required")
	}
	return nil
}

// Create validates and stores a new observation. The submitter's current
// team memberships are snapshotted onto the observation and never
// recomputed; the initial state is active.
func (e *Engine) Create(ctx context.Context, user models.User, eventID string, draft Draft) (*models.Observation, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}
	if err := e.gate.Authorize(ctx, user, eventID, authz.PermCreateObservation); err != nil {
		return nil, err
	}
	teams, err := e.gate.TeamsForSubmission(ctx, user, eventID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	obs := &models.Observation{
		ID:         uuid.New().String(),
		EventID:    eventID,
		UserID:     user.ID,
		DeviceID:   draft.DeviceID,
		Type:       models.FeatureType,
		Geometry:   draft.Geometry,
		Properties: draft.Properties,
		TeamIDs:    teams,
		States: []models.State{
			{Name: models.StateActive, UserID: user.ID, Timestamp: now},
		},
		LastModified: now,
	}
	if err := e.store.Put(ctx, obs); err != nil {
		return nil, err
	}

	e.publish(eventbus.ActionCreate, obs)
	logging.Info().Str("observation_id", obs.ID).Str("event_id", eventID).
		Str("user_id", user.ID).Msg("Observation created")
	return obs, nil
}

// Get returns one observation the user is allowed to read.
func (e *Engine) Get(ctx context.Context, user models.User, eventID, id string) (*models.Observation, error) {
	if err := e.gate.Authorize(ctx, user, eventID, authz.PermReadObservationEvent); err != nil {
		return nil, err
	}
	return e.store.Get(ctx, eventID, id)
}

// GetAll returns the event's observations that pass the filter.
func (e *Engine) GetAll(ctx context.Context, user models.User, eventID string, f filter.Filter) ([]*models.Observation, error) {
	if err := e.gate.Authorize(ctx, user, eventID, authz.PermReadObservationEvent); err != nil {
		return nil, err
	}
	return e.store.GetAll(ctx, eventID, f)
}

// Update applies a partial update. A supplied properties section replaces
// the stored one wholesale and must therefore carry the fixed timestamp and
// type fields itself.
func (e *Engine) Update(ctx context.Context, user models.User, eventID, id string, upd Update) (*models.Observation, error) {
	if upd.Geometry != nil {
		if err := upd.Geometry.Validate(); err != nil {
			return nil, err
		}
	}
	if upd.Properties != nil {
		if err := validateProperties(*upd.Properties); err != nil {
			return nil, err
		}
	}
	if err := e.gate.Authorize(ctx, user, eventID, authz.PermUpdateObservationEvent); err != nil {
		return nil, err
	}

	obs, err := e.store.Mutate(ctx, eventID, id, func(obs *models.Observation) error {
		if upd.Geometry != nil {
			obs.Geometry = *upd.Geometry
		}
		if upd.Properties != nil {
			obs.Properties = *upd.Properties
		}
		obs.LastModified = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(eventbus.ActionUpdate, obs)
	return obs, nil
}

// TransitionState appends a lifecycle transition. Re-asserting the current
// state fails with models.ErrConflict; the history is append-only and every
// entry records an actual change.
func (e *Engine) TransitionState(ctx context.Context, user models.User, eventID, id string, name models.StateName) (*models.Observation, error) {
	if !name.Valid() {
		return nil, models.NewInvalidInput("state.name", "unknown state %q", name)
	}
	if err := e.gate.Authorize(ctx, user, eventID, authz.PermUpdateObservationEvent); err != nil {
		return nil, err
	}

	obs, err := e.store.Mutate(ctx, eventID, id, func(obs *models.Observation) error {
		if obs.CurrentState().Name == name {
			return fmt.Errorf("%w: observation %s is already %s", models.ErrConflict, id, name)
		}
		now := time.Now().UTC()
		obs.States = append(obs.States, models.State{Name: name, UserID: user.ID, Timestamp: now})
		obs.LastModified = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(eventbus.ActionUpdate, obs)
	logging.Info().Str("observation_id", id).Str("state", string(name)).
		Str("user_id", user.ID).Msg("Observation state changed")
	return obs, nil
}

// Delete physically removes the observation and all of its attachments.
func (e *Engine) Delete(ctx context.Context, user models.User, eventID, id string) error {
	if err := e.gate.Authorize(ctx, user, eventID, authz.PermDeleteObservation); err != nil {
		return err
	}

	obs, err := e.store.Get(ctx, eventID, id)
	if err != nil {
		return err
	}
	if err := e.store.Delete(ctx, eventID, id); err != nil {
		return err
	}
	for _, att := range obs.Attachments {
		if err := e.attachments.Delete(ctx, att.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
			logging.Warn().Err(err).Str("attachment_id", att.ID).
				Str("observation_id", id).Msg("Failed to remove attachment of deleted observation")
		}
	}

	e.publish(eventbus.ActionDelete, obs)
	logging.Info().Str("observation_id", id).Str("event_id", eventID).
		Str("user_id", user.ID).Msg("Observation deleted")
	return nil
}

func (e *Engine) publish(action string, obs *models.Observation) {
	if e.bus == nil {
		return
	}
	if err := e.bus.PublishObservation(action, obs); err != nil {
		logging.Warn().Err(err).Str("observation_id", obs.ID).
			Str("action", action).Msg("Failed to publish observation change")
	}
}

// ProjectFields reduces the observation's wire form to the named top-level
// fields. The id is always included. Unknown field names are ignored rather
// than rejected, matching lenient query semantics.
func ProjectFields(obs *models.Observation, fields []string) (map[string]interface{}, error) {
	data, err := json.Marshal(obs)
	if err != nil {
		return nil, fmt.Errorf("encode observation %s: %w", obs.ID, err)
	}
	var full map[string]interface{}
	if err := json.Unmarshal(data, &full); err != nil {
		return nil, fmt.Errorf("decode observation %s: %w", obs.ID, err)
	}

	out := map[string]interface{}{"id": full["id"]}
	for _, f := range fields {
		if v, ok := full[f]; ok {
			out[f] = v
		}
	}
	return out, nil
}
