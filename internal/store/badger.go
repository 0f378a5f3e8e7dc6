// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/BrianFlannery/mage-server-1/internal/logging"
)

// Open opens the BadgerDB instance at dir. Badger's own logger is silenced;
// storage events go through the server's structured log instead.
func Open(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	logging.Info().Str("dir", dir).Msg("Opened badger store")
	return db, nil
}

// gcDiscardRatio is the value-log rewrite threshold for garbage collection.
const gcDiscardRatio = 0.5

// GC periodically reclaims BadgerDB value-log space. It implements
// suture.Service and runs under the supervision tree.
type GC struct {
	db       *badger.DB
	interval time.Duration
}

// NewGC builds a garbage collection loop over db.
func NewGC(db *badger.DB, interval time.Duration) *GC {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &GC{db: db, interval: interval}
}

// Serve runs value-log garbage collection on each tick until the context is
// canceled. Badger returns ErrNoRewrite when nothing was reclaimed, which is
// the normal idle case.
func (g *GC) Serve(ctx context.Context) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			reclaimed := 0
			for {
				if err := g.db.RunValueLogGC(gcDiscardRatio); err != nil {
					break
				}
				reclaimed++
			}
			if reclaimed > 0 {
				logging.Debug().Int("files", reclaimed).Msg("Badger value log GC reclaimed space")
			}
		}
	}
}

func (g *GC) String() string {
	return "badger-gc"
}
