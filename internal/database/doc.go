// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

/*
Package database manages the DuckDB-backed historical location log.

The log is append-only: every accepted position report lands here forever,
while the capped buffer (internal/store) keeps only the newest report per
(event, user). History queries page by location id; ids are time-ordered
UUIDv7 values, so ascending id order is chronological arrival order and the
lastLocationId cursor resumes a scan without offset arithmetic.

Spatial filtering is envelope-based. Each row stores the geometry's bounding
box alongside the raw coordinates so bounding-geometry filters become simple
range comparisons in SQL.
*/
package database
