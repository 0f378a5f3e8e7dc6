// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package models

import (
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestGeometryValidate(t *testing.T) {
	tests := []struct {
		name    string
		geom    Geometry
		wantErr bool
	}{
		{"valid point", NewPoint(-104.9, 39.7), false},
		{"valid polygon", Geometry{Type: GeometryPolygon, Coordinates: json.RawMessage(`[[[0,0],[1,0],[1,1],[0,0]]]`)}, false},
		{"unknown type", Geometry{Type: "Circle", Coordinates: json.RawMessage(`[0,0]`)}, true},
		{"missing coordinates", Geometry{Type: GeometryPoint}, true},
		{"null coordinates", Geometry{Type: GeometryPoint, Coordinates: json.RawMessage("null")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.geom.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var invalid *InvalidInputError
				if !errors.As(err, &invalid) {
					t.Errorf("Validate() error type = %T, want *InvalidInputError", err)
				}
			}
		})
	}
}

func TestPointCoordinates(t *testing.T) {
	g := NewPoint(-104.9, 39.7)
	lon, lat, err := g.PointCoordinates()
	if err != nil {
		t.Fatalf("PointCoordinates() error = %v", err)
	}
	if lon != -104.9 || lat != 39.7 {
		t.Errorf("PointCoordinates() = (%v, %v), want (-104.9, 39.7)", lon, lat)
	}

	poly := Geometry{Type: GeometryPolygon, Coordinates: json.RawMessage(`[[[0,0],[1,1],[0,0]]]`)}
	if _, _, err := poly.PointCoordinates(); err == nil {
		t.Error("PointCoordinates() on polygon should fail")
	}
}

func TestObservationPropertiesJSON(t *testing.T) {
	in := []byte(`{"timestamp":"2026-03-01T12:00:00Z","type":"Sighting","severity":"high","count":3}`)

	var props ObservationProperties
	if err := json.Unmarshal(in, &props); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if props.Type != "Sighting" {
		t.Errorf("Type = %q, want %q", props.Type, "Sighting")
	}
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if !props.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", props.Timestamp, want)
	}
	if props.Extra["severity"] != "high" {
		t.Errorf("Extra[severity] = %v, want high", props.Extra["severity"])
	}
	if _, ok := props.Extra["timestamp"]; ok {
		t.Error("timestamp should not leak into Extra")
	}

	out, err := json.Marshal(props)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	roundTrip := map[string]interface{}{}
	if err := json.Unmarshal(out, &roundTrip); err != nil {
		t.Fatalf("Unmarshal(round trip) error = %v", err)
	}
	if roundTrip["type"] != "Sighting" || roundTrip["severity"] != "high" {
		t.Errorf("round trip lost fields: %v", roundTrip)
	}
}

func TestObservationPropertiesMissingTimestamp(t *testing.T) {
	var props ObservationProperties
	if err := json.Unmarshal([]byte(`{"type":"Sighting"}`), &props); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !props.Timestamp.IsZero() {
		t.Errorf("Timestamp = %v, want zero", props.Timestamp)
	}
}

func TestCurrentState(t *testing.T) {
	obs := &Observation{
		States: []State{
			{Name: StateActive, Timestamp: time.Now().Add(-time.Hour)},
			{Name: StateArchive, Timestamp: time.Now()},
		},
	}
	if got := obs.CurrentState().Name; got != StateArchive {
		t.Errorf("CurrentState().Name = %q, want %q", got, StateArchive)
	}

	empty := &Observation{}
	if got := empty.CurrentState(); got.Name != "" {
		t.Errorf("CurrentState() on empty history = %v, want zero State", got)
	}
}

func TestStateNameValid(t *testing.T) {
	for _, s := range []StateName{StateActive, StateComplete, StateArchive} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if StateName("deleted").Valid() {
		t.Error("unknown state name should be invalid")
	}
}

func TestAttachmentVariant(t *testing.T) {
	att := &Attachment{
		ContentType: "image/jpeg",
		Size:        5000,
		Path:        "orig/abc",
		Variants: map[string]SizeVariant{
			"thumbnail": {Name: "thumbnail", ContentType: "image/png", Size: 120, Path: "thumb/abc"},
		},
	}

	ct, size, path := att.Variant("thumbnail")
	if ct != "image/png" || size != 120 || path != "thumb/abc" {
		t.Errorf("Variant(thumbnail) = (%s, %d, %s)", ct, size, path)
	}

	ct, size, path = att.Variant("")
	if ct != "image/jpeg" || size != 5000 || path != "orig/abc" {
		t.Errorf("Variant(\"\") = (%s, %d, %s), want original", ct, size, path)
	}

	// Unknown variants fall back to the original content.
	_, size, _ = att.Variant("huge")
	if size != 5000 {
		t.Errorf("Variant(huge) size = %d, want original 5000", size)
	}
}
