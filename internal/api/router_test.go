// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/BrianFlannery/mage-server-1/internal/attachment"
	"github.com/BrianFlannery/mage-server-1/internal/auth"
	"github.com/BrianFlannery/mage-server-1/internal/authz"
	"github.com/BrianFlannery/mage-server-1/internal/blob"
	"github.com/BrianFlannery/mage-server-1/internal/database"
	"github.com/BrianFlannery/mage-server-1/internal/eventbus"
	"github.com/BrianFlannery/mage-server-1/internal/location"
	"github.com/BrianFlannery/mage-server-1/internal/membership"
	"github.com/BrianFlannery/mage-server-1/internal/models"
	"github.com/BrianFlannery/mage-server-1/internal/observation"
	"github.com/BrianFlannery/mage-server-1/internal/store"
	"github.com/BrianFlannery/mage-server-1/internal/websocket"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testServer struct {
	server *httptest.Server
	tokens *auth.TokenService
}

// newTestServer wires the full stack: badger, duckdb, casbin gate,
// membership, engines, and the chi router.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	history, err := database.New(database.Config{Path: ":memory:", MaxMemory: "256MB", Threads: 1})
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	t.Cleanup(func() { history.Close() })

	blobs, err := blob.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}

	members := membership.NewStore(db)
	ctx := context.Background()
	if err := members.PutTeam(ctx, &models.Team{ID: "t1", Name: "alpha", UserIDs: []string{"u1", "admin1"}}); err != nil {
		t.Fatal(err)
	}
	if err := members.PutEvent(ctx, &models.Event{ID: "e1", Name: "exercise", TeamIDs: []string{"t1"}}); err != nil {
		t.Fatal(err)
	}

	enforcer, err := authz.NewEnforcer(nil)
	if err != nil {
		t.Fatalf("new enforcer: %v", err)
	}
	gate, err := authz.NewGate(enforcer, members)
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}

	bus := eventbus.New()
	t.Cleanup(func() { bus.Close() })

	attachments := attachment.NewService(store.NewAttachments(db), blobs)
	observations := observation.NewEngine(store.NewObservations(db), attachments, gate, bus)
	locations := location.NewEngine(history, store.NewCappedBuffer(db), gate, bus)

	hub := websocket.NewHub(bus)
	hubCtx, cancelHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		_ = hub.Serve(hubCtx)
	}()
	t.Cleanup(func() {
		cancelHub()
		<-hubDone
	})

	tokens, err := auth.NewTokenService(testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	handler := NewHandler(observations, locations, hub, gate, 1000)
	router := NewRouter(handler, tokens, RouterConfig{
		CORSOrigins:     []string{"*"},
		RateLimitWindow: time.Minute,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testServer{server: server, tokens: tokens}
}

func (ts *testServer) token(t *testing.T, user models.User) string {
	t.Helper()
	token, err := ts.tokens.Issue(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}, extra ...func(*http.Request)) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, ts.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, fn := range extra {
		fn(req)
	}
	resp, err := ts.server.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

var memberUser = models.User{ID: "u1", Username: "flannery", RoleID: authz.RoleUser}
var adminUser = models.User{ID: "admin1", Username: "ops", RoleID: authz.RoleAdmin}
var strangerUser = models.User{ID: "u9", Username: "drifter", RoleID: authz.RoleUser}

func observationBody(ts time.Time) map[string]interface{} {
	return map[string]interface{}{
		"type": "Feature",
		"geometry": map[string]interface{}{
			"type":        "Point",
			"coordinates": []float64{-104.8, 39.7},
		},
		"properties": map[string]interface{}{
			"timestamp": ts.Format(time.RFC3339),
			"type":      "sighting",
		},
	}
}

func TestObservationLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, memberUser)

	resp := ts.do(t, http.MethodPost, "/api/events/e1/observations", token, observationBody(time.Now()))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created models.Observation
	decodeInto(t, resp, &created)
	if created.ID == "" || created.EventID != "e1" {
		t.Fatalf("created = %+v", created)
	}
	if created.CurrentState().Name != models.StateActive {
		t.Errorf("initial state = %q", created.CurrentState().Name)
	}

	resp = ts.do(t, http.MethodGet, "/api/events/e1/observations/"+created.ID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodGet, "/api/events/e1/observations", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var listed []models.Observation
	decodeInto(t, resp, &listed)
	if len(listed) != 1 {
		t.Errorf("listed %d observations, want 1", len(listed))
	}

	resp = ts.do(t, http.MethodPost, "/api/events/e1/observations/"+created.ID+"/states", token,
		map[string]string{"name": "archive"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("transition status = %d", resp.StatusCode)
	}

	// Repeating the same transition is a conflict.
	resp = ts.do(t, http.MethodPost, "/api/events/e1/observations/"+created.ID+"/states", token,
		map[string]string{"name": "archive"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("repeat transition status = %d, want 409", resp.StatusCode)
	}

	// Members cannot delete; admins can.
	resp = ts.do(t, http.MethodDelete, "/api/events/e1/observations/"+created.ID, token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("member delete status = %d, want 403", resp.StatusCode)
	}
	resp = ts.do(t, http.MethodDelete, "/api/events/e1/observations/"+created.ID, ts.token(t, adminUser), nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("admin delete status = %d, want 204", resp.StatusCode)
	}
}

func TestObservationValidationAndAuth(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, memberUser)

	t.Run("missing token", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/api/events/e1/observations", "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("invalid draft cites field", func(t *testing.T) {
		body := observationBody(time.Now())
		delete(body, "geometry")
		resp := ts.do(t, http.MethodPost, "/api/events/e1/observations", token, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
		var envelope struct {
			Error apiError `json:"error"`
		}
		decodeInto(t, resp, &envelope)
		if envelope.Error.Field != "geometry" {
			t.Errorf("error field = %q, want geometry", envelope.Error.Field)
		}
	})

	t.Run("stranger is denied", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/api/events/e1/observations", ts.token(t, strangerUser),
			observationBody(time.Now()))
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("unknown state name", func(t *testing.T) {
		created := ts.createObservation(t, token)
		resp := ts.do(t, http.MethodPost, "/api/events/e1/observations/"+created+"/states", token,
			map[string]string{"name": "tombstoned"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("bad filter parameter", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/api/events/e1/observations?sort=favorite", token, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})
}

func (ts *testServer) createObservation(t *testing.T, token string) string {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/api/events/e1/observations", token, observationBody(time.Now()))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created models.Observation
	decodeInto(t, resp, &created)
	return created.ID
}

func TestFieldsProjection(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, memberUser)
	ts.createObservation(t, token)

	resp := ts.do(t, http.MethodGet, "/api/events/e1/observations?fields=geometry", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var projected []map[string]interface{}
	decodeInto(t, resp, &projected)
	if len(projected) != 1 {
		t.Fatalf("projected %d entries", len(projected))
	}
	if _, ok := projected[0]["id"]; !ok {
		t.Error("projection dropped id")
	}
	if _, ok := projected[0]["geometry"]; !ok {
		t.Error("projection dropped requested geometry")
	}
	if _, ok := projected[0]["properties"]; ok {
		t.Error("projection kept unrequested properties")
	}
}

func TestAttachmentRoundTripOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, memberUser)
	obsID := ts.createObservation(t, token)
	base := "/api/events/e1/observations/" + obsID + "/attachments"

	upload := func(t *testing.T) models.Attachment {
		t.Helper()
		req, err := http.NewRequest(http.MethodPost, ts.server.URL+base+"?name=photo.jpg",
			strings.NewReader("jpegbytes"))
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "image/jpeg")
		resp, err := ts.server.Client().Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("upload status = %d", resp.StatusCode)
		}
		var att models.Attachment
		if err := json.NewDecoder(resp.Body).Decode(&att); err != nil {
			t.Fatal(err)
		}
		return att
	}

	att := upload(t)
	if att.Size != int64(len("jpegbytes")) {
		t.Errorf("attachment size = %d", att.Size)
	}

	t.Run("full content", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, base+"/"+att.ID, token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if got := resp.Header.Get("Accept-Ranges"); got != "bytes" {
			t.Errorf("Accept-Ranges = %q", got)
		}
		data, _ := io.ReadAll(resp.Body)
		if string(data) != "jpegbytes" {
			t.Errorf("body = %q", data)
		}
	})

	t.Run("partial content", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, base+"/"+att.ID, token, nil, func(r *http.Request) {
			r.Header.Set("Range", "bytes=1-3")
		})
		if resp.StatusCode != http.StatusPartialContent {
			t.Fatalf("status = %d, want 206", resp.StatusCode)
		}
		want := fmt.Sprintf("bytes 1-3/%d", att.Size)
		if got := resp.Header.Get("Content-Range"); got != want {
			t.Errorf("Content-Range = %q, want %q", got, want)
		}
		data, _ := io.ReadAll(resp.Body)
		if string(data) != "peg" {
			t.Errorf("body = %q, want peg", data)
		}
	})

	t.Run("range past content", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, base+"/"+att.ID, token, nil, func(r *http.Request) {
			r.Header.Set("Range", "bytes=500-")
		})
		if resp.StatusCode != http.StatusRequestedRangeNotSatisfiable {
			t.Fatalf("status = %d, want 416", resp.StatusCode)
		}
		want := fmt.Sprintf("bytes */%d", att.Size)
		if got := resp.Header.Get("Content-Range"); got != want {
			t.Errorf("Content-Range = %q, want %q", got, want)
		}
	})

	t.Run("delete", func(t *testing.T) {
		resp := ts.do(t, http.MethodDelete, base+"/"+att.ID, token, nil)
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("delete status = %d", resp.StatusCode)
		}
		resp = ts.do(t, http.MethodGet, base+"/"+att.ID, token, nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("get after delete status = %d, want 404", resp.StatusCode)
		}
	})
}

func locationBody(ts time.Time, lon, lat float64) map[string]interface{} {
	return map[string]interface{}{
		"geometry": map[string]interface{}{
			"type":        "Point",
			"coordinates": []float64{lon, lat},
		},
		"properties": map[string]interface{}{
			"timestamp": ts.Format(time.RFC3339),
		},
	}
}

func TestLocationIngestAndReads(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, memberUser)
	base := time.Now().UTC().Truncate(time.Second)

	t.Run("single report", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/api/events/e1/locations", token, locationBody(base, -104.8, 39.7))
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var loc models.Location
		decodeInto(t, resp, &loc)
		if loc.UserID != "u1" {
			t.Errorf("user = %q", loc.UserID)
		}
	})

	t.Run("batch", func(t *testing.T) {
		body := []map[string]interface{}{
			locationBody(base.Add(time.Minute), -104.9, 39.8),
			locationBody(base.Add(2*time.Minute), -105.0, 39.9),
		}
		resp := ts.do(t, http.MethodPost, "/api/events/e1/locations", token, body)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var locs []models.Location
		decodeInto(t, resp, &locs)
		if len(locs) != 2 {
			t.Errorf("created %d reports, want 2", len(locs))
		}
	})

	t.Run("history defaults to most recent", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/api/events/e1/locations", token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var locs []models.Location
		decodeInto(t, resp, &locs)
		if len(locs) != 1 {
			t.Fatalf("history returned %d, want the default single report", len(locs))
		}
		if !locs[0].Properties.Timestamp.Equal(base.Add(2 * time.Minute)) {
			t.Errorf("newest timestamp = %v", locs[0].Properties.Timestamp)
		}
	})

	t.Run("history with limit", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/api/events/e1/locations?limit=10", token, nil)
		var locs []models.Location
		decodeInto(t, resp, &locs)
		if len(locs) != 3 {
			t.Errorf("history returned %d, want 3", len(locs))
		}
	})

	t.Run("current positions", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/api/events/e1/locations/users", token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var positions map[string]models.Location
		decodeInto(t, resp, &positions)
		if len(positions) != 1 {
			t.Fatalf("positions for %d users, want 1", len(positions))
		}
		current := positions["u1"]
		if !current.Properties.Timestamp.Equal(base.Add(2 * time.Minute)) {
			t.Errorf("current timestamp = %v", current.Properties.Timestamp)
		}
	})

	t.Run("timestamp refresh", func(t *testing.T) {
		refreshed := base.Add(30 * time.Minute)
		resp := ts.do(t, http.MethodPut, "/api/events/e1/locations/timestamp", token,
			map[string]string{"timestamp": refreshed.Format(time.RFC3339)})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var loc models.Location
		decodeInto(t, resp, &loc)
		if !loc.Properties.Timestamp.Equal(refreshed) {
			t.Errorf("refreshed timestamp = %v, want %v", loc.Properties.Timestamp, refreshed)
		}
	})

	t.Run("invalid report in batch rejects all", func(t *testing.T) {
		body := []map[string]interface{}{
			locationBody(base.Add(time.Hour), -104.8, 39.7),
			{"properties": map[string]interface{}{"timestamp": base.Format(time.RFC3339)}},
		}
		resp := ts.do(t, http.MethodPost, "/api/events/e1/locations", token, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
		var envelope struct {
			Error apiError `json:"error"`
		}
		decodeInto(t, resp, &envelope)
		if envelope.Error.Field != "locations[1].geometry" {
			t.Errorf("error field = %q", envelope.Error.Field)
		}
	})
}

func TestHealthAndMetricsOpen(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodGet, "/metrics", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", resp.StatusCode)
	}
}
