// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package authz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	decisionAllow = "allow"
	decisionDeny  = "deny"
	decisionError = "error"
)

var authzDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mage_authz_decisions_total",
		Help: "Authorization decisions by permission and outcome",
	},
	[]string{"permission", "decision"},
)

// recordDecision increments the decision counter.
func recordDecision(perm Permission, decision string) {
	authzDecisions.WithLabelValues(string(perm), decision).Inc()
}
