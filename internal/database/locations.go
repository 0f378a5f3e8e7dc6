// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/BrianFlannery/mage-server-1/internal/filter"
	"github.com/BrianFlannery/mage-server-1/internal/models"
)

const insertLocationQuery = `INSERT INTO locations (
	id, event_id, user_id, device_id, timestamp,
	geometry_type, coordinates, min_lon, min_lat, max_lon, max_lat,
	properties, team_ids, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertLocations appends the batch to the log inside a single transaction:
// either every report lands or none does. The caller has already validated
// and identified each location.
func (db *DB) InsertLocations(ctx context.Context, locations []*models.Location) error {
	if len(locations) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin location insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertLocationQuery)
	if err != nil {
		return fmt.Errorf("prepare location insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for _, loc := range locations {
		env, err := loc.Geometry.Envelope()
		if err != nil {
			return fmt.Errorf("location %s geometry: %w", loc.ID, err)
		}
		props, err := json.Marshal(loc.Properties)
		if err != nil {
			return fmt.Errorf("encode location %s properties: %w", loc.ID, err)
		}
		teams, err := json.Marshal(loc.TeamIDs)
		if err != nil {
			return fmt.Errorf("encode location %s teams: %w", loc.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			loc.ID, loc.EventID, loc.UserID, loc.DeviceID, loc.Properties.Timestamp.UTC(),
			loc.Geometry.Type, string(loc.Geometry.Coordinates),
			env.MinLon, env.MinLat, env.MaxLon, env.MaxLat,
			string(props), string(teams), now,
		)
		if err != nil {
			return fmt.Errorf("insert location %s: %w", loc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit location insert: %w", err)
	}
	return nil
}

// GetLocations returns up to limit reports from the event's history, newest
// first. Ids are time-ordered, so descending id order is reverse arrival
// order and the filter's LastLocationID cursor resumes the scan below the
// previous page's oldest entry. An empty userID spans all users.
func (db *DB) GetLocations(ctx context.Context, eventID, userID string, f filter.Filter, limit int) ([]*models.Location, error) {
	query, args := buildLocationQuery(eventID, userID, f, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query location history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*models.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate location history: %w", err)
	}
	return results, nil
}

// CountLocations returns the total number of reports logged for the event.
func (db *DB) CountLocations(ctx context.Context, eventID string) (int64, error) {
	var count int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM locations WHERE event_id = ?`, eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count locations: %w", err)
	}
	return count, nil
}

// buildLocationQuery assembles the parameterized history query from the
// filter. Only placeholders carry caller data.
func buildLocationQuery(eventID, userID string, f filter.Filter, limit int) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, event_id, user_id, device_id, geometry_type, coordinates, properties, team_ids
		FROM locations WHERE event_id = ?`)
	args := []interface{}{eventID}

	if userID != "" {
		sb.WriteString(" AND user_id = ?")
		args = append(args, userID)
	}
	if f.StartDate != nil {
		sb.WriteString(" AND timestamp >= ?")
		args = append(args, f.StartDate.UTC())
	}
	if f.EndDate != nil {
		sb.WriteString(" AND timestamp <= ?")
		args = append(args, f.EndDate.UTC())
	}
	if f.LastLocationID != "" {
		sb.WriteString(" AND id < ?")
		args = append(args, f.LastLocationID)
	}
	if len(f.Geometries) > 0 {
		var clauses []string
		for _, g := range f.Geometries {
			env, err := g.Envelope()
			if err != nil {
				continue
			}
			clauses = append(clauses, "(min_lon <= ? AND max_lon >= ? AND min_lat <= ? AND max_lat >= ?)")
			args = append(args, env.MaxLon, env.MinLon, env.MaxLat, env.MinLat)
		}
		if len(clauses) > 0 {
			sb.WriteString(" AND (" + strings.Join(clauses, " OR ") + ")")
		}
	}

	sb.WriteString(" ORDER BY id DESC")
	if limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	return sb.String(), args
}

// rowScanner abstracts *sql.Rows for scanning a single location row.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLocation(row rowScanner) (*models.Location, error) {
	var (
		loc         models.Location
		deviceID    *string
		coordinates string
		props       string
		teams       string
	)
	err := row.Scan(&loc.ID, &loc.EventID, &loc.UserID, &deviceID,
		&loc.Geometry.Type, &coordinates, &props, &teams)
	if err != nil {
		return nil, fmt.Errorf("scan location row: %w", err)
	}
	loc.Type = models.FeatureType
	loc.Geometry.Coordinates = json.RawMessage(coordinates)
	if deviceID != nil {
		loc.DeviceID = *deviceID
	}
	if err := json.Unmarshal([]byte(props), &loc.Properties); err != nil {
		return nil, fmt.Errorf("decode location %s properties: %w", loc.ID, err)
	}
	if err := json.Unmarshal([]byte(teams), &loc.TeamIDs); err != nil {
		return nil, fmt.Errorf("decode location %s teams: %w", loc.ID, err)
	}
	return &loc, nil
}
