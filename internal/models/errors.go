// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package models

import (
	"errors"
	"fmt"
)

// Domain error taxonomy. Engines return these (possibly wrapped); the
// transport layer maps them to status codes with errors.Is / errors.As.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied indicates the actor lacks the required permission.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotInEvent indicates the actor has no team standing in the event.
	// Submissions are team-attributed, so a user with zero team memberships
	// cannot write into an event even when otherwise permitted.
	ErrNotInEvent = errors.New("user is not part of this event")

	// ErrConflict indicates a rejected state-transition no-op or a lost
	// write race on a concurrently mutated entity.
	ErrConflict = errors.New("conflict")

	// ErrRangeNotSatisfiable indicates a byte range outside the content bounds.
	ErrRangeNotSatisfiable = errors.New("requested range not satisfiable")

	// ErrDependency indicates a collaborator (membership lookup, store,
	// blob storage) failed. Distinct from a deny decision.
	ErrDependency = errors.New("dependency failure")
)

// InvalidInputError reports a structural validation failure. Validation runs
// before authorization and storage, so an invalid submission never consumes a
// membership lookup or touches the store.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %s: %s", e.Field, e.Reason)
}

// NewInvalidInput builds an InvalidInputError for the given field.
func NewInvalidInput(field, format string, args ...interface{}) *InvalidInputError {
	return &InvalidInputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InvalidFilterError reports a rejected filter parameter, e.g. a sort column
// outside the whitelist or a malformed bounding geometry.
type InvalidFilterError struct {
	Param  string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter %s: %s", e.Param, e.Reason)
}

// IsInvalidInput reports whether err is a structural validation failure of
// either kind (input or filter).
func IsInvalidInput(err error) bool {
	var in *InvalidInputError
	var fl *InvalidFilterError
	return errors.As(err, &in) || errors.As(err, &fl)
}
