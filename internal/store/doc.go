// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

/*
Package store provides the BadgerDB-backed keyed storage for observations,
the capped location buffer, and attachment metadata.

Key layout:

	observation:<eventId>:<id>        observation documents
	location:current:<eventId>:<uid>  capped buffer, one slot per (event,user)
	attachment:<id>                   attachment metadata

Serialization is scoped to single keys: observation mutation and capped
upserts take a striped per-key mutex so concurrent writers to the same key
never produce a lossy overwrite, while writers to different keys proceed in
parallel. No lock spans more than one key.

The historical location log does not live here; it is an append-only DuckDB
table (see internal/database).
*/
package store
