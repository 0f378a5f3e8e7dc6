// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

// Package membership provides the event/team membership lookup collaborator
// backed by BadgerDB, plus a circuit-breaker wrapper for consumers that must
// degrade cleanly when the store misbehaves.
//
// The engines only read memberships; event and team administration is out of
// scope and happens through direct store writes (seeding, ops tooling).
package membership

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/BrianFlannery/mage-server-1/internal/models"
)

// Key prefixes for BadgerDB storage.
const (
	eventKeyPrefix = "event:"
	teamKeyPrefix  = "team:"
)

// Store is a BadgerDB-backed membership store.
type Store struct {
	db *badger.DB
}

// NewStore creates a membership store on an open Badger database.
func NewStore(db *badger.DB) *Store {
	return &Store{db: db}
}

// PutEvent stores an event.
func (s *Store) PutEvent(_ context.Context, event *models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(eventKeyPrefix+event.ID), data)
	})
}

// PutTeam stores a team.
func (s *Store) PutTeam(_ context.Context, team *models.Team) error {
	data, err := json.Marshal(team)
	if err != nil {
		return fmt.Errorf("marshal team: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(teamKeyPrefix+team.ID), data)
	})
}

// GetEvent retrieves an event by id.
func (s *Store) GetEvent(_ context.Context, eventID string) (*models.Event, error) {
	var event models.Event
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(eventKeyPrefix + eventID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &event)
		})
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// getTeam retrieves a team inside an open read transaction.
func getTeam(txn *badger.Txn, teamID string) (*models.Team, error) {
	item, err := txn.Get([]byte(teamKeyPrefix + teamID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get team: %w", err)
	}
	var team models.Team
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &team)
	}); err != nil {
		return nil, err
	}
	return &team, nil
}

// TeamsForUserInEvent returns the ids of the event's teams the user belongs
// to. A missing event yields models.ErrNotFound; an existing event the user
// is no part of yields an empty slice, which callers treat as "no standing".
func (s *Store) TeamsForUserInEvent(ctx context.Context, userID, eventID string) ([]string, error) {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	var teamIDs []string
	err = s.db.View(func(txn *badger.Txn) error {
		for _, teamID := range event.TeamIDs {
			team, err := getTeam(txn, teamID)
			if errors.Is(err, models.ErrNotFound) {
				// Dangling team reference; membership reads stay permissive
				// about references, strict about answers.
				continue
			}
			if err != nil {
				return err
			}
			if team.HasUser(userID) {
				teamIDs = append(teamIDs, team.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return teamIDs, nil
}

// EventHasUser reports whether the user belongs to at least one team within
// the event.
func (s *Store) EventHasUser(ctx context.Context, eventID, userID string) (bool, error) {
	teams, err := s.TeamsForUserInEvent(ctx, userID, eventID)
	if err != nil {
		return false, err
	}
	return len(teams) > 0, nil
}
