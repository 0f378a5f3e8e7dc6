// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package database

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/BrianFlannery/mage-server-1/internal/logging"
)

// Config holds DuckDB connection settings.
type Config struct {
	// Path is the database file, or ":memory:" for an ephemeral instance.
	Path string `koanf:"path"`

	// MaxMemory caps DuckDB's memory use, e.g. "512MB".
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB worker thread count; zero means NumCPU.
	Threads int `koanf:"threads"`
}

// DefaultConfig returns the connection settings used when none are supplied.
func DefaultConfig() Config {
	return Config{
		Path:      "data/locations.db",
		MaxMemory: "512MB",
	}
}

// DB wraps the DuckDB connection for the location log.
type DB struct {
	conn *sql.DB
}

// New opens the database, verifies the connection, and ensures the schema.
func New(cfg Config) (*DB, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "512MB"
	}
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, threads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.createTables(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logging.Info().Str("path", cfg.Path).Msg("Opened location log database")
	return db, nil
}

// Close releases the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables ensures the location log table and its indexes exist.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS locations (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			device_id TEXT,
			timestamp TIMESTAMP NOT NULL,
			geometry_type TEXT NOT NULL,
			coordinates TEXT NOT NULL,
			min_lon DOUBLE NOT NULL,
			min_lat DOUBLE NOT NULL,
			max_lon DOUBLE NOT NULL,
			max_lat DOUBLE NOT NULL,
			properties TEXT NOT NULL,
			team_ids TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_locations_event_time ON locations(event_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_locations_event_user ON locations(event_id, user_id)`,
	}
	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
