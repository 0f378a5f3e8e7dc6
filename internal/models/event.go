// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package models

// Event is a scoping context partitioning observations, locations and team
// memberships. The engines read events and teams; they never manage them.
type Event struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	TeamIDs []string `json:"teamIds"`
}

// Team is a named group of users within an event. Team membership determines
// write and read eligibility for event-scoped permissions.
type Team struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	UserIDs []string `json:"userIds"`
}

// HasUser reports whether the team contains the given user.
func (t *Team) HasUser(userID string) bool {
	for _, id := range t.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// User identifies an actor. Role resolution and user management live outside
// the engines; the RoleID is only consulted by the authorization gate.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	RoleID   string `json:"roleId"`
}
