// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package models

import (
	"fmt"

	"github.com/goccy/go-json"
)

// GeoJSON geometry type names accepted by the server.
const (
	GeometryPoint           = "Point"
	GeometryMultiPoint      = "MultiPoint"
	GeometryLineString      = "LineString"
	GeometryMultiLineString = "MultiLineString"
	GeometryPolygon         = "Polygon"
	GeometryMultiPolygon    = "MultiPolygon"
)

var geometryTypes = map[string]struct{}{
	GeometryPoint:           {},
	GeometryMultiPoint:      {},
	GeometryLineString:      {},
	GeometryMultiLineString: {},
	GeometryPolygon:         {},
	GeometryMultiPolygon:    {},
}

// Geometry is a GeoJSON-like geometry. Coordinates are kept as raw JSON so
// the server can round-trip arbitrary nesting without interpreting it; the
// engines forward bounding geometries to the store and perform no geometry
// math themselves.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Validate checks that the geometry names a known type and carries
// coordinates. It does not validate coordinate structure beyond presence.
func (g Geometry) Validate() error {
	if _, ok := geometryTypes[g.Type]; !ok {
		return NewInvalidInput("geometry.type", "unknown geometry type %q", g.Type)
	}
	if len(g.Coordinates) == 0 || string(g.Coordinates) == "null" {
		return NewInvalidInput("geometry.coordinates", "coordinates are required")
	}
	return nil
}

// IsZero reports whether the geometry is absent.
func (g Geometry) IsZero() bool {
	return g.Type == "" && len(g.Coordinates) == 0
}

// NewPoint builds a Point geometry from longitude and latitude.
func NewPoint(lon, lat float64) Geometry {
	coords, err := json.Marshal([2]float64{lon, lat})
	if err != nil {
		// Marshalling two floats cannot fail; keep the geometry well-formed anyway.
		coords = json.RawMessage("[0,0]")
	}
	return Geometry{Type: GeometryPoint, Coordinates: coords}
}

// Envelope is a lon/lat bounding box.
type Envelope struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// Intersects reports whether two envelopes overlap, boundaries included.
func (e Envelope) Intersects(o Envelope) bool {
	return e.MinLon <= o.MaxLon && o.MinLon <= e.MaxLon &&
		e.MinLat <= o.MaxLat && o.MinLat <= e.MaxLat
}

// Envelope computes the bounding box of the geometry by walking its
// coordinate nesting, whatever the depth. Spatial matching is envelope
// intersection only; exact polygon containment is out of scope.
func (g Geometry) Envelope() (Envelope, error) {
	var raw interface{}
	if err := json.Unmarshal(g.Coordinates, &raw); err != nil {
		return Envelope{}, fmt.Errorf("decode coordinates: %w", err)
	}
	env := Envelope{}
	found := false
	if err := walkPositions(raw, &env, &found); err != nil {
		return Envelope{}, err
	}
	if !found {
		return Envelope{}, fmt.Errorf("geometry has no positions")
	}
	return env, nil
}

func walkPositions(node interface{}, env *Envelope, found *bool) error {
	arr, ok := node.([]interface{})
	if !ok {
		return fmt.Errorf("coordinates contain a non-array node")
	}
	if len(arr) == 0 {
		return nil
	}
	if lon, ok := arr[0].(float64); ok {
		// A position: [lon, lat, ...].
		if len(arr) < 2 {
			return fmt.Errorf("position has %d values, need at least 2", len(arr))
		}
		lat, ok := arr[1].(float64)
		if !ok {
			return fmt.Errorf("position latitude is not a number")
		}
		if !*found {
			*env = Envelope{MinLon: lon, MinLat: lat, MaxLon: lon, MaxLat: lat}
			*found = true
			return nil
		}
		if lon < env.MinLon {
			env.MinLon = lon
		}
		if lon > env.MaxLon {
			env.MaxLon = lon
		}
		if lat < env.MinLat {
			env.MinLat = lat
		}
		if lat > env.MaxLat {
			env.MaxLat = lat
		}
		return nil
	}
	for _, child := range arr {
		if err := walkPositions(child, env, found); err != nil {
			return err
		}
	}
	return nil
}

// PointCoordinates returns the longitude and latitude of a Point geometry.
func (g Geometry) PointCoordinates() (lon, lat float64, err error) {
	if g.Type != GeometryPoint {
		return 0, 0, fmt.Errorf("geometry type %q is not a point", g.Type)
	}
	var coords []float64
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
		return 0, 0, fmt.Errorf("decode point coordinates: %w", err)
	}
	if len(coords) < 2 {
		return 0, 0, fmt.Errorf("point has %d coordinates, need at least 2", len(coords))
	}
	return coords[0], coords[1], nil
}
