// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/BrianFlannery/mage-server-1/internal/filter"
	"github.com/BrianFlannery/mage-server-1/internal/models"
)

const observationKeyPrefix = "observation:"

func observationKey(eventID, id string) []byte {
	return []byte(observationKeyPrefix + eventID + ":" + id)
}

func observationEventPrefix(eventID string) []byte {
	return []byte(observationKeyPrefix + eventID + ":")
}

// Observations persists observation documents keyed by (event, id). All
// read-modify-write cycles on a single observation go through Mutate, which
// serializes them per key.
type Observations struct {
	db    *badger.DB
	locks keyLocks
}

// NewObservations builds an observation store over db.
func NewObservations(db *badger.DB) *Observations {
	return &Observations{db: db}
}

// Put writes the observation unconditionally. Callers that derive the new
// value from the stored one must use Mutate instead.
func (s *Observations) Put(ctx context.Context, obs *models.Observation) error {
	data, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("encode observation %s: %w", obs.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(observationKey(obs.EventID, obs.ID), data)
	})
	if err != nil {
		return fmt.Errorf("store observation %s: %w", obs.ID, err)
	}
	return nil
}

// Get returns the observation with the given id within the event, or
// models.ErrNotFound.
func (s *Observations) Get(ctx context.Context, eventID, id string) (*models.Observation, error) {
	var obs *models.Observation
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(observationKey(eventID, id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return models.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			obs = &models.Observation{}
			return json.Unmarshal(val, obs)
		})
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("load observation %s: %w", id, err)
	}
	return obs, nil
}

// GetAll returns the event's observations that pass the filter, ordered by
// the filter's sort specification. With no sort the iteration order (key
// order, i.e. observation id) applies.
func (s *Observations) GetAll(ctx context.Context, eventID string, f filter.Filter) ([]*models.Observation, error) {
	var results []*models.Observation
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := observationEventPrefix(eventID)
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				obs := &models.Observation{}
				if err := json.Unmarshal(val, obs); err != nil {
					return err
				}
				if !matchesObservation(f, obs) {
					return nil
				}
				results = append(results, obs)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan observations for event %s: %w", eventID, err)
	}

	sortObservations(results, f.Sort)
	return results, nil
}

// Mutate loads the observation, applies fn, and writes the result back,
// holding the per-key lock across the whole cycle so concurrent mutations of
// the same observation never interleave. fn may change everything except
// identity; an error from fn aborts the write and is returned as-is.
func (s *Observations) Mutate(ctx context.Context, eventID, id string, fn func(*models.Observation) error) (*models.Observation, error) {
	mu := s.locks.acquire(string(observationKey(eventID, id)))
	defer s.locks.release(mu)

	obs, err := s.Get(ctx, eventID, id)
	if err != nil {
		return nil, err
	}
	if err := fn(obs); err != nil {
		return nil, err
	}
	if err := s.Put(ctx, obs); err != nil {
		return nil, err
	}
	return obs, nil
}

// Delete physically removes the observation. The normal lifecycle soft
// deletes through the archive state; this backs the hard-delete permission.
func (s *Observations) Delete(ctx context.Context, eventID, id string) error {
	mu := s.locks.acquire(string(observationKey(eventID, id)))
	defer s.locks.release(mu)

	err := s.db.Update(func(txn *badger.Txn) error {
		key := observationKey(eventID, id)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return models.ErrNotFound
			}
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		return fmt.Errorf("delete observation %s: %w", id, err)
	}
	return nil
}

func matchesObservation(f filter.Filter, obs *models.Observation) bool {
	if !f.MatchesState(obs.CurrentState().Name) {
		return false
	}
	if !f.InRange(obs.LastModified) {
		return false
	}
	if !f.InObservationRange(obs.Properties.Timestamp) {
		return false
	}
	return f.MatchesGeometry(obs.Geometry)
}

func sortObservations(list []*models.Observation, fields []filter.SortField) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(list, func(i, j int) bool {
		for _, field := range fields {
			var a, b int64
			switch field.Column {
			case "lastModified":
				a, b = list[i].LastModified.UnixNano(), list[j].LastModified.UnixNano()
			case "timestamp":
				a, b = list[i].Properties.Timestamp.UnixNano(), list[j].Properties.Timestamp.UnixNano()
			default:
				continue
			}
			if a == b {
				continue
			}
			if field.Direction == filter.Descending {
				return a > b
			}
			return a < b
		}
		return false
	})
}
