// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// FeatureType is the only accepted value for an observation's top-level type.
const FeatureType = "Feature"

// StateName is an observation lifecycle state.
type StateName string

// The three fixed lifecycle states. "archive" models soft deletion:
// observations are never physically removed through the normal flow.
const (
	StateActive   StateName = "active"
	StateComplete StateName = "complete"
	StateArchive  StateName = "archive"
)

// Valid reports whether the state name is one of the three fixed values.
func (s StateName) Valid() bool {
	switch s {
	case StateActive, StateComplete, StateArchive:
		return true
	}
	return false
}

// State is one entry in an observation's lifecycle history. UserID records
// who made the transition and may be empty for device-only submissions.
type State struct {
	Name      StateName `json:"name"`
	UserID    string    `json:"userId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ObservationProperties carries the fixed timestamp and category fields plus
// arbitrary additional key/value pairs. The extras are flattened into the
// same JSON object as the fixed fields on the wire.
type ObservationProperties struct {
	Timestamp time.Time
	Type      string
	Extra     map[string]interface{}
}

// reserved property keys handled outside the Extra map.
const (
	propTimestamp = "timestamp"
	propType      = "type"
)

// MarshalJSON flattens the fixed fields and extras into a single object.
func (p ObservationProperties) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(p.Extra)+2)
	for k, v := range p.Extra {
		if k == propTimestamp || k == propType {
			continue
		}
		out[k] = v
	}
	out[propTimestamp] = p.Timestamp.UTC().Format(time.RFC3339Nano)
	out[propType] = p.Type
	return json.Marshal(out)
}

// UnmarshalJSON splits the fixed fields out of the flattened object. A
// missing or malformed timestamp leaves Timestamp zero; the engines reject
// zero timestamps during structural validation.
func (p *ObservationProperties) UnmarshalJSON(data []byte) error {
	raw := map[string]interface{}{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if ts, ok := raw[propTimestamp].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			p.Timestamp = parsed.UTC()
		}
	}
	if t, ok := raw[propType].(string); ok {
		p.Type = t
	}
	delete(raw, propTimestamp)
	delete(raw, propType)
	if len(raw) > 0 {
		p.Extra = raw
	} else {
		p.Extra = nil
	}
	return nil
}

// Observation is a user-submitted feature within an event.
//
// TeamIDs is computed once at creation from the submitter's team memberships
// and never recomputed afterwards. States is append-only; the current state
// is always the last element and is exposed only through CurrentState, never
// stored redundantly.
type Observation struct {
	ID           string                `json:"id"`
	EventID      string                `json:"eventId"`
	UserID       string                `json:"userId,omitempty"`
	DeviceID     string                `json:"deviceId,omitempty"`
	Type         string                `json:"type"`
	Geometry     Geometry              `json:"geometry"`
	Properties   ObservationProperties `json:"properties"`
	TeamIDs      []string              `json:"teamIds"`
	States       []State               `json:"states"`
	Attachments  []Attachment          `json:"attachments,omitempty"`
	LastModified time.Time             `json:"lastModified"`
}

// CurrentState returns the last entry of the state history. An observation
// always has at least one state; the zero State is returned only for a value
// that never went through the engine.
func (o *Observation) CurrentState() State {
	if len(o.States) == 0 {
		return State{}
	}
	return o.States[len(o.States)-1]
}

// AttachmentByID returns the attachment reference with the given id.
func (o *Observation) AttachmentByID(id string) (Attachment, bool) {
	for _, a := range o.Attachments {
		if a.ID == id {
			return a, true
		}
	}
	return Attachment{}, false
}
