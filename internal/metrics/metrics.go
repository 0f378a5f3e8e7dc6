// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

// Package metrics exposes the server's Prometheus instrumentation:
// API latency and throughput, domain operation counters, and websocket
// connection gauges. Store-local metrics (authorization decisions,
// capped-buffer write failures) register next to the code they measure.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mage_api_requests_total",
			Help: "Total API requests by method, route pattern, and status code",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mage_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mage_api_active_requests",
			Help: "Requests currently being served",
		},
	)

	// Observation metrics
	ObservationOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mage_observation_operations_total",
			Help: "Observation mutations by action (create, update, state, delete)",
		},
		[]string{"action"},
	)

	// Location metrics
	LocationsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mage_locations_ingested_total",
			Help: "Position reports accepted into the historical log",
		},
	)

	LocationBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mage_location_batch_size",
			Help:    "Reports per accepted location batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	// Attachment metrics
	AttachmentBytesStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mage_attachment_bytes_stored_total",
			Help: "Attachment content bytes written to blob storage",
		},
	)

	AttachmentRangeRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mage_attachment_range_requests_total",
			Help: "Attachment reads served as partial content",
		},
	)

	// WebSocket metrics
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mage_websocket_clients",
			Help: "Currently connected websocket clients",
		},
	)
)

// RecordAPIRequest records one finished HTTP request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordLocationBatch records one accepted batch of position reports.
func RecordLocationBatch(count int) {
	LocationsIngested.Add(float64(count))
	LocationBatchSize.Observe(float64(count))
}
