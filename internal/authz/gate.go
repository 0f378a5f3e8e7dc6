// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/BrianFlannery/mage-server-1/internal/models"
)

// MembershipProvider is the event/team membership lookup collaborator. The
// gate treats "teams for user in event" as a single atomic lookup.
type MembershipProvider interface {
	TeamsForUserInEvent(ctx context.Context, userID, eventID string) ([]string, error)
	EventHasUser(ctx context.Context, eventID, userID string) (bool, error)
}

// Gate decides allow/deny for engine operations.
type Gate struct {
	enforcer   *Enforcer
	membership MembershipProvider
}

// NewGate creates an authorization gate.
func NewGate(enforcer *Enforcer, membership MembershipProvider) (*Gate, error) {
	if enforcer == nil {
		return nil, errors.New("enforcer is required")
	}
	if membership == nil {
		return nil, errors.New("membership provider is required")
	}
	return &Gate{enforcer: enforcer, membership: membership}, nil
}

// Authorize applies the two-tier check for perm:
//
//  1. If the user's role holds the blanket variant, allow unconditionally.
//  2. If the role holds perm itself and perm is event-scoped, allow only
//     when the user belongs to at least one team within the event.
//  3. Otherwise deny with models.ErrPermissionDenied.
//
// A missing event keeps models.ErrNotFound from the membership lookup; any
// other lookup failure wraps models.ErrDependency so callers can distinguish
// collaborator outage from a deny.
func (g *Gate) Authorize(ctx context.Context, user models.User, eventID string, perm Permission) error {
	if blanket, ok := perm.BlanketVariant(); ok {
		held, err := g.enforcer.HasPermission(user.RoleID, blanket)
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrDependency, err)
		}
		if held {
			recordDecision(blanket, decisionAllow)
			return nil
		}
	}

	held, err := g.enforcer.HasPermission(user.RoleID, perm)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDependency, err)
	}
	if !held {
		recordDecision(perm, decisionDeny)
		return fmt.Errorf("%w: user %s lacks %s", models.ErrPermissionDenied, user.ID, perm)
	}

	if perm.EventScoped() {
		inEvent, err := g.membership.EventHasUser(ctx, eventID, user.ID)
		if errors.Is(err, models.ErrNotFound) {
			recordDecision(perm, decisionDeny)
			return fmt.Errorf("event %s: %w", eventID, err)
		}
		if err != nil {
			recordDecision(perm, decisionError)
			return fmt.Errorf("%w: membership lookup: %v", models.ErrDependency, err)
		}
		if !inEvent {
			recordDecision(perm, decisionDeny)
			return fmt.Errorf("%w: user %s has no team in event %s", models.ErrPermissionDenied, user.ID, eventID)
		}
	}

	recordDecision(perm, decisionAllow)
	return nil
}

// TeamsForSubmission returns the submitter's current team ids in the event,
// failing with models.ErrNotInEvent when there are none. Create operations
// call this because submissions are team-attributed: zero memberships means
// no standing to write, regardless of held permissions.
func (g *Gate) TeamsForSubmission(ctx context.Context, user models.User, eventID string) ([]string, error) {
	teams, err := g.membership.TeamsForUserInEvent(ctx, user.ID, eventID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("event %s: %w", eventID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: membership lookup: %v", models.ErrDependency, err)
	}
	if len(teams) == 0 {
		return nil, fmt.Errorf("%w: user %s in event %s", models.ErrNotInEvent, user.ID, eventID)
	}
	return teams, nil
}
