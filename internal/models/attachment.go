// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package models

import "time"

// SizeVariant is an alternate rendition of an attachment (e.g. a thumbnail).
// Each variant is a fully independent blob with its own size, content type
// and locator; byte-range requests apply to whichever variant was selected.
type SizeVariant struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Path        string `json:"-"`
}

// Attachment is binary content owned by exactly one observation. Path is an
// opaque blob-storage locator and never leaves the server.
type Attachment struct {
	ID            string                 `json:"id"`
	ObservationID string                 `json:"observationId"`
	EventID       string                 `json:"eventId"`
	Name          string                 `json:"name"`
	ContentType   string                 `json:"contentType"`
	Size          int64                  `json:"size"`
	Path          string                 `json:"-"`
	Variants      map[string]SizeVariant `json:"variants,omitempty"`
	LastModified  time.Time              `json:"lastModified"`
}

// Variant resolves a size variant by name. An empty name or an unknown
// variant selects the original content.
func (a *Attachment) Variant(name string) (contentType string, size int64, path string) {
	if name != "" {
		if v, ok := a.Variants[name]; ok {
			return v.ContentType, v.Size, v.Path
		}
	}
	return a.ContentType, a.Size, a.Path
}
