// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

/*
Package models defines the shared domain types for the MAGE server.

The core entities are:

  - Observation: a user-submitted GeoJSON feature scoped to an event, carrying
    an append-only lifecycle state history and a set of binary attachments.
  - Location: a periodic position report scoped to an event, stored both in an
    unbounded historical log and in a per-(event,user) capped buffer holding
    only the most recent position.
  - Attachment: binary content owned by exactly one observation, with optional
    derived size variants (e.g. thumbnail).
  - Event / Team: the scoping entities that partition data and determine
    read/write eligibility for event-scoped permissions.

The package also defines the error taxonomy shared by all engines. Sentinel
errors classify failures for the transport layer; typed errors carry the
offending field for structural validation failures.

Types in this package are plain data carriers plus derived accessors. They
perform no I/O and hold no references to storage.
*/
package models
