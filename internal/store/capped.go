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

const cappedKeyPrefix = "location:current:"

func cappedKey(eventID, userID string) []byte {
	return []byte(cappedKeyPrefix + eventID + ":" + userID)
}

func cappedEventPrefix(eventID string) []byte {
	return []byte(cappedKeyPrefix + eventID + ":")
}

// CappedBuffer keeps exactly one location per (event, user): the report with
// the latest timestamp seen so far. It answers "where is everyone right now"
// without touching the historical log.
type CappedBuffer struct {
	db    *badger.DB
	locks keyLocks
}

// NewCappedBuffer builds a capped buffer over db.
func NewCappedBuffer(db *badger.DB) *CappedBuffer {
	return &CappedBuffer{db: db}
}

// Upsert installs loc as the user's current position unless the stored entry
// carries a strictly later timestamp. Last writer by report time wins, not by
// arrival order; ties go to the newest arrival so a resubmitted report still
// lands. The read-compare-write cycle holds the per-key lock.
func (s *CappedBuffer) Upsert(ctx context.Context, loc *models.Location) error {
	key := cappedKey(loc.EventID, loc.UserID)
	mu := s.locks.acquire(string(key))
	defer s.locks.release(mu)

	current, err := s.get(key)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	if current != nil && current.Properties.Timestamp.After(loc.Properties.Timestamp) {
		return nil
	}

	data, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("encode location %s: %w", loc.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("store current position for user %s: %w", loc.UserID, err)
	}
	return nil
}

// SetCurrent installs loc as the user's current position unconditionally,
// bypassing the timestamp comparison. The direct timestamp-refresh operation
// uses this; ingest goes through Upsert.
func (s *CappedBuffer) SetCurrent(ctx context.Context, loc *models.Location) error {
	key := cappedKey(loc.EventID, loc.UserID)
	mu := s.locks.acquire(string(key))
	defer s.locks.release(mu)

	data, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("encode location %s: %w", loc.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("store current position for user %s: %w", loc.UserID, err)
	}
	return nil
}

// Current returns the user's current position in the event, or
// models.ErrNotFound when the user has never reported one.
func (s *CappedBuffer) Current(ctx context.Context, eventID, userID string) (*models.Location, error) {
	return s.get(cappedKey(eventID, userID))
}

// CurrentPositions returns the event's per-user current positions that pass
// the filter, newest report first. A positive limit caps the result.
func (s *CappedBuffer) CurrentPositions(ctx context.Context, eventID string, f filter.Filter, limit int) ([]*models.Location, error) {
	var results []*models.Location
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := cappedEventPrefix(eventID)
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				loc := &models.Location{}
				if err := json.Unmarshal(val, loc); err != nil {
					return err
				}
				if !f.InRange(loc.Properties.Timestamp) {
					return nil
				}
				if !f.MatchesGeometry(loc.Geometry) {
					return nil
				}
				results = append(results, loc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan current positions for event %s: %w", eventID, err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Properties.Timestamp.After(results[j].Properties.Timestamp)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *CappedBuffer) get(key []byte) (*models.Location, error) {
	var loc *models.Location
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return models.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			loc = &models.Location{}
			return json.Unmarshal(val, loc)
		})
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("load current position: %w", err)
	}
	return loc, nil
}
