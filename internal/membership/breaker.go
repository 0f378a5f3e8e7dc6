// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package membership

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/BrianFlannery/mage-server-1/internal/logging"
	"github.com/BrianFlannery/mage-server-1/internal/models"
)

// Lookup is the read-only membership interface the breaker decorates. It
// matches the consumer-side interfaces declared by the engines and the gate.
type Lookup interface {
	TeamsForUserInEvent(ctx context.Context, userID, eventID string) ([]string, error)
	EventHasUser(ctx context.Context, eventID, userID string) (bool, error)
}

// BreakerConfig tunes the circuit breaker around membership lookups.
type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker once exceeded.
	ConsecutiveFailures uint32

	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
	}
}

// Breaker wraps a Lookup with a circuit breaker. When the breaker is open,
// lookups fail fast with models.ErrDependency instead of piling onto a
// struggling store. Not-found answers are decisions, not failures, and do
// not count against the breaker.
type Breaker struct {
	next    Lookup
	teams   *gobreaker.CircuitBreaker[[]string]
	hasUser *gobreaker.CircuitBreaker[bool]
}

// NewBreaker decorates a Lookup with circuit breaking.
func NewBreaker(next Lookup, cfg BreakerConfig) *Breaker {
	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:    name,
			Timeout: cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > cfg.ConsecutiveFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("membership breaker state change")
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, models.ErrNotFound)
			},
		}
	}

	return &Breaker{
		next:    next,
		teams:   gobreaker.NewCircuitBreaker[[]string](settings("membership_teams")),
		hasUser: gobreaker.NewCircuitBreaker[bool](settings("membership_has_user")),
	}
}

// TeamsForUserInEvent delegates through the breaker.
func (b *Breaker) TeamsForUserInEvent(ctx context.Context, userID, eventID string) ([]string, error) {
	teams, err := b.teams.Execute(func() ([]string, error) {
		return b.next.TeamsForUserInEvent(ctx, userID, eventID)
	})
	if err != nil {
		return nil, breakerError(err)
	}
	return teams, nil
}

// EventHasUser delegates through the breaker.
func (b *Breaker) EventHasUser(ctx context.Context, eventID, userID string) (bool, error) {
	ok, err := b.hasUser.Execute(func() (bool, error) {
		return b.next.EventHasUser(ctx, eventID, userID)
	})
	if err != nil {
		return false, breakerError(err)
	}
	return ok, nil
}

// breakerError maps open-circuit rejections to the dependency failure class
// and passes everything else through untouched.
func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Join(models.ErrDependency, err)
	}
	return err
}
