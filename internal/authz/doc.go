// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

/*
Package authz implements the authorization gate for engine operations.

Role-to-permission policy is evaluated by Casbin using an embedded model and
policy. On top of that, the Gate applies the two-tier event check:

 1. The blanket ("ALL") variant of a permission allows unconditionally.
 2. The event-scoped variant allows only when the membership lookup confirms
    the user belongs to at least one team within the event.
 3. Anything else is denied.

The same decision function is composed explicitly by every engine operation;
there is no middleware chain threading authorization through shared request
state. A failing membership lookup is reported as a dependency failure,
never conflated with a deny.
*/
package authz
