// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package authz

// Permission names an action a role may hold. Event-scoped permissions
// additionally require team membership in the target event; blanket ("ALL")
// variants do not.
type Permission string

// Observation and location permissions.
const (
	PermReadObservationAll     Permission = "READ_OBSERVATION_ALL"
	PermReadObservationEvent   Permission = "READ_OBSERVATION_EVENT"
	PermCreateObservation      Permission = "CREATE_OBSERVATION"
	PermUpdateObservationEvent Permission = "UPDATE_OBSERVATION_EVENT"
	PermDeleteObservation      Permission = "DELETE_OBSERVATION"

	PermReadLocationAll   Permission = "READ_LOCATION_ALL"
	PermReadLocationEvent Permission = "READ_LOCATION_EVENT"
	PermCreateLocation    Permission = "CREATE_LOCATION"
)

// Built-in role names referenced by the embedded policy.
const (
	RoleAdmin = "ADMIN_ROLE"
	RoleUser  = "USER_ROLE"
)

// blanketVariants maps an event-scoped permission to its event-independent
// form. Holding the blanket form short-circuits the membership check.
var blanketVariants = map[Permission]Permission{
	PermReadObservationEvent: PermReadObservationAll,
	PermReadLocationEvent:    PermReadLocationAll,
}

// eventScoped marks permissions whose grant is only valid inside events the
// user belongs to.
var eventScoped = map[Permission]struct{}{
	PermReadObservationEvent:   {},
	PermReadLocationEvent:      {},
	PermUpdateObservationEvent: {},
}

// BlanketVariant returns the event-independent form of an event-scoped
// permission, if one exists.
func (p Permission) BlanketVariant() (Permission, bool) {
	v, ok := blanketVariants[p]
	return v, ok
}

// EventScoped reports whether the permission requires team membership in the
// target event.
func (p Permission) EventScoped() bool {
	_, ok := eventScoped[p]
	return ok
}
