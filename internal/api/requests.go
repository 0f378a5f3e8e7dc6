// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/BrianFlannery/mage-server-1/internal/filter"
	"github.com/BrianFlannery/mage-server-1/internal/models"
)

// maxBodyBytes caps JSON request bodies. Attachment uploads stream past
// this through their own limit.
const maxBodyBytes = 5 << 20

// decodeBody decodes a JSON request body into v, rejecting trailing
// garbage after the document.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return models.NewInvalidInput("body", "malformed JSON: %v", err)
	}
	if dec.More() {
		return models.NewInvalidInput("body", "unexpected trailing data")
	}
	return nil
}

// buildFilter converts the request's query parameters into a validated
// filter. Unknown parameters are ignored; malformed ones fail the request.
func buildFilter(r *http.Request) (filter.Filter, error) {
	q := r.URL.Query()
	p := filter.Params{
		BBox:           q.Get("bbox"),
		Sort:           q.Get("sort"),
		LastLocationID: q.Get("lastLocationId"),
	}

	if raw := q.Get("geometry"); raw != "" {
		p.Geometry = json.RawMessage(raw)
	}
	if states := q.Get("states"); states != "" {
		p.States = strings.Split(states, ",")
	}

	var err error
	if p.StartDate, err = parseTimeParam(q.Get("startDate"), "startDate"); err != nil {
		return filter.Filter{}, err
	}
	if p.EndDate, err = parseTimeParam(q.Get("endDate"), "endDate"); err != nil {
		return filter.Filter{}, err
	}
	if p.ObservationStartDate, err = parseTimeParam(q.Get("observationStartDate"), "observationStartDate"); err != nil {
		return filter.Filter{}, err
	}
	if p.ObservationEndDate, err = parseTimeParam(q.Get("observationEndDate"), "observationEndDate"); err != nil {
		return filter.Filter{}, err
	}

	return filter.Build(p)
}

func parseTimeParam(raw, name string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, &models.InvalidFilterError{Param: name, Reason: "must be an RFC3339 timestamp"}
	}
	return &t, nil
}

// parseLimit reads a positive integer limit, capped at max. Zero means the
// caller did not ask, leaving the default to the engine.
func parseLimit(r *http.Request, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, &models.InvalidFilterError{Param: "limit", Reason: "must be a positive integer"}
	}
	if limit > max {
		limit = max
	}
	return limit, nil
}

// parseFields reads the comma-separated fields projection parameter.
func parseFields(r *http.Request) []string {
	raw := r.URL.Query().Get("fields")
	if raw == "" {
		return nil
	}
	fields := strings.Split(raw, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}
