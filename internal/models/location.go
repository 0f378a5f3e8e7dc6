// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// LocationProperties carries the report timestamp, the provisioning device id
// when present, and arbitrary extras flattened into the same JSON object.
type LocationProperties struct {
	Timestamp time.Time
	DeviceID  string
	Extra     map[string]interface{}
}

const propDeviceID = "deviceId"

// MarshalJSON flattens the fixed fields and extras into a single object.
func (p LocationProperties) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(p.Extra)+2)
	for k, v := range p.Extra {
		if k == propTimestamp || k == propDeviceID {
			continue
		}
		out[k] = v
	}
	out[propTimestamp] = p.Timestamp.UTC().Format(time.RFC3339Nano)
	if p.DeviceID != "" {
		out[propDeviceID] = p.DeviceID
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits the fixed fields out of the flattened object.
func (p *LocationProperties) UnmarshalJSON(data []byte) error {
	raw := map[string]interface{}{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if ts, ok := raw[propTimestamp].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			p.Timestamp = parsed.UTC()
		}
	}
	if d, ok := raw[propDeviceID].(string); ok {
		p.DeviceID = d
	}
	delete(raw, propTimestamp)
	delete(raw, propDeviceID)
	if len(raw) > 0 {
		p.Extra = raw
	} else {
		p.Extra = nil
	}
	return nil
}

// Location is a single position report within an event. TeamIDs is a snapshot
// of the submitter's memberships at write time, same rule as observations.
//
// The same entity backs two storage views: the unbounded historical log and
// the per-(event,user) capped buffer that holds only the most recent report.
type Location struct {
	ID         string             `json:"id"`
	EventID    string             `json:"eventId"`
	UserID     string             `json:"userId"`
	DeviceID   string             `json:"deviceId,omitempty"`
	Type       string             `json:"type"`
	Geometry   Geometry           `json:"geometry"`
	Properties LocationProperties `json:"properties"`
	TeamIDs    []string           `json:"teamIds"`
}
