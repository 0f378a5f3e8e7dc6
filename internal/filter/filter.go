// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

// Package filter turns caller-supplied query parameters into a validated
// predicate over observations and locations. Building a filter performs no
// I/O; the stores interpret the resulting value.
//
// Absent parameters impose no constraint: the zero Filter matches everything.
package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/BrianFlannery/mage-server-1/internal/models"
)

// Direction is a sort direction. Ascending is the default; only an explicit
// DESC marker in the sort parameter reverses it.
type Direction int

// Sort directions.
const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// SortField is one (column, direction) pair of a sort specification.
type SortField struct {
	Column    string
	Direction Direction
}

// sortColumns is the fixed whitelist of sortable columns.
var sortColumns = map[string]struct{}{
	"lastModified": {},
	"timestamp":    {},
}

// descMarker is the only token that reverses sort order.
const descMarker = "DESC"

// Params carries the raw, untrusted query parameters handed in by the
// transport layer.
type Params struct {
	// StartDate / EndDate bound the record-modification time.
	StartDate *time.Time
	EndDate   *time.Time

	// ObservationStartDate / ObservationEndDate bound the observation's own
	// properties.timestamp, distinct from record-modification time.
	ObservationStartDate *time.Time
	ObservationEndDate   *time.Time

	// BBox is a "minLon,minLat,maxLon,maxLat" bounding box.
	BBox string

	// Geometry is a raw GeoJSON geometry description.
	Geometry json.RawMessage

	// States is a set of lifecycle state names.
	States []string

	// Sort is a comma-separated list of column[+DESC] entries.
	Sort string

	// LastLocationID is a pagination cursor for the location history.
	LastLocationID string
}

// Filter is a validated, immutable query predicate. It is safe for
// concurrent use; callers must not mutate it after Build returns.
type Filter struct {
	StartDate            *time.Time
	EndDate              *time.Time
	ObservationStartDate *time.Time
	ObservationEndDate   *time.Time
	Geometries           []models.Geometry
	States               []models.StateName
	Sort                 []SortField
	LastLocationID       string
}

// Build validates the raw parameters and produces a Filter. The first
// offending parameter fails the build with *models.InvalidFilterError.
func Build(p Params) (Filter, error) {
	f := Filter{
		StartDate:            p.StartDate,
		EndDate:              p.EndDate,
		ObservationStartDate: p.ObservationStartDate,
		ObservationEndDate:   p.ObservationEndDate,
		LastLocationID:       p.LastLocationID,
	}

	if p.BBox != "" {
		geom, err := parseBBox(p.BBox)
		if err != nil {
			return Filter{}, &models.InvalidFilterError{Param: "bbox", Reason: err.Error()}
		}
		f.Geometries = append(f.Geometries, geom)
	}

	if len(p.Geometry) > 0 {
		var geom models.Geometry
		if err := json.Unmarshal(p.Geometry, &geom); err != nil {
			return Filter{}, &models.InvalidFilterError{Param: "geometry", Reason: "malformed geometry"}
		}
		if err := geom.Validate(); err != nil {
			return Filter{}, &models.InvalidFilterError{Param: "geometry", Reason: err.Error()}
		}
		f.Geometries = append(f.Geometries, geom)
	}

	for _, s := range p.States {
		name := models.StateName(s)
		if !name.Valid() {
			return Filter{}, &models.InvalidFilterError{
				Param:  "states",
				Reason: fmt.Sprintf("unknown state %q", s),
			}
		}
		f.States = append(f.States, name)
	}

	if p.Sort != "" {
		sort, err := parseSort(p.Sort)
		if err != nil {
			return Filter{}, err
		}
		f.Sort = sort
	}

	return f, nil
}

// parseSort parses "column[+DESC],column2[+DESC]" against the whitelist.
func parseSort(raw string) ([]SortField, error) {
	var fields []SortField
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.Split(entry, "+")
		column := parts[0]
		if _, ok := sortColumns[column]; !ok {
			return nil, &models.InvalidFilterError{
				Param:  "sort",
				Reason: fmt.Sprintf("cannot sort on column %q", column),
			}
		}
		direction := Ascending
		if len(parts) > 1 && parts[1] == descMarker {
			direction = Descending
		}
		fields = append(fields, SortField{Column: column, Direction: direction})
	}
	return fields, nil
}

// parseBBox converts "minLon,minLat,maxLon,maxLat" into a Polygon geometry.
func parseBBox(raw string) (models.Geometry, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return models.Geometry{}, fmt.Errorf("bbox needs 4 comma-separated values, got %d", len(parts))
	}
	coords := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return models.Geometry{}, fmt.Errorf("bbox value %q is not a number", part)
		}
		coords[i] = v
	}
	minLon, minLat, maxLon, maxLat := coords[0], coords[1], coords[2], coords[3]
	if minLon > maxLon || minLat > maxLat {
		return models.Geometry{}, fmt.Errorf("bbox min exceeds max")
	}

	ring := [][][2]float64{{
		{minLon, minLat},
		{maxLon, minLat},
		{maxLon, maxLat},
		{minLon, maxLat},
		{minLon, minLat},
	}}
	coordsJSON, err := json.Marshal(ring)
	if err != nil {
		return models.Geometry{}, fmt.Errorf("encode bbox polygon: %w", err)
	}
	return models.Geometry{Type: models.GeometryPolygon, Coordinates: coordsJSON}, nil
}

// Open reports whether the filter imposes no constraints at all.
func (f Filter) Open() bool {
	return f.StartDate == nil && f.EndDate == nil &&
		f.ObservationStartDate == nil && f.ObservationEndDate == nil &&
		len(f.Geometries) == 0 && len(f.States) == 0 && len(f.Sort) == 0 &&
		f.LastLocationID == ""
}

// MatchesState reports whether the given state passes the state-set
// constraint. An empty set imposes no constraint.
func (f Filter) MatchesState(s models.StateName) bool {
	if len(f.States) == 0 {
		return true
	}
	for _, want := range f.States {
		if want == s {
			return true
		}
	}
	return false
}

// MatchesGeometry reports whether a record geometry intersects at least one
// of the bounding geometries, by envelope. An empty set imposes no
// constraint; a geometry whose envelope cannot be computed matches nothing.
func (f Filter) MatchesGeometry(g models.Geometry) bool {
	if len(f.Geometries) == 0 {
		return true
	}
	env, err := g.Envelope()
	if err != nil {
		return false
	}
	for _, bound := range f.Geometries {
		boundEnv, err := bound.Envelope()
		if err != nil {
			continue
		}
		if boundEnv.Intersects(env) {
			return true
		}
	}
	return false
}

// InRange reports whether a record instant passes the StartDate/EndDate
// bounds. For observations this is the lastModified instant; for locations
// it is the report timestamp.
func (f Filter) InRange(t time.Time) bool {
	if f.StartDate != nil && t.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && t.After(*f.EndDate) {
		return false
	}
	return true
}

// InObservationRange reports whether an observation timestamp passes the
// ObservationStartDate/ObservationEndDate bounds.
func (f Filter) InObservationRange(t time.Time) bool {
	if f.ObservationStartDate != nil && t.Before(*f.ObservationStartDate) {
		return false
	}
	if f.ObservationEndDate != nil && t.After(*f.ObservationEndDate) {
		return false
	}
	return true
}
