// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/BrianFlannery/mage-server-1/internal/eventbus"
	"github.com/BrianFlannery/mage-server-1/internal/models"
)

func startTestHub(t *testing.T) (*Hub, *eventbus.Bus) {
	t.Helper()
	bus := eventbus.New()
	hub := NewHub(bus)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("hub did not stop")
		}
		if err := bus.Close(); err != nil {
			t.Errorf("close bus: %v", err)
		}
	})
	return hub, bus
}

// register a pump-less client directly; only the send channel matters here.
func registerTestClient(t *testing.T, hub *Hub, eventID string) *Client {
	t.Helper()
	client := NewClient(hub, nil, eventID, "u1")
	select {
	case hub.Register <- client:
	case <-time.After(time.Second):
		t.Fatal("hub never accepted the client")
	}
	return client
}

func expectFrame(t *testing.T, client *Client, msgType string) Message {
	t.Helper()
	select {
	case msg := <-client.send:
		if msg.Type != msgType {
			t.Errorf("frame type = %q, want %q", msg.Type, msgType)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("no %s frame delivered", msgType)
		return Message{}
	}
}

func expectNoFrame(t *testing.T, client *Client) {
	t.Helper()
	select {
	case msg := <-client.send:
		t.Errorf("unexpected frame %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubForwardsObservationToEventWatchers(t *testing.T) {
	hub, bus := startTestHub(t)
	watcher := registerTestClient(t, hub, "e1")
	bystander := registerTestClient(t, hub, "e2")

	obs := &models.Observation{ID: "o1", EventID: "e1", Type: models.FeatureType}
	if err := bus.PublishObservation(eventbus.ActionCreate, obs); err != nil {
		t.Fatalf("PublishObservation() error = %v", err)
	}

	msg := expectFrame(t, watcher, MessageTypeObservation)
	if msg.EventID != "e1" {
		t.Errorf("frame event = %q, want e1", msg.EventID)
	}
	expectNoFrame(t, bystander)
}

func TestHubForwardsLocations(t *testing.T) {
	hub, bus := startTestHub(t)
	watcher := registerTestClient(t, hub, "e1")

	locs := []*models.Location{{ID: "l1", EventID: "e1", UserID: "u2", Type: models.FeatureType}}
	if err := bus.PublishLocations("e1", locs); err != nil {
		t.Fatalf("PublishLocations() error = %v", err)
	}

	expectFrame(t, watcher, MessageTypeLocation)
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub, _ := startTestHub(t)
	client := registerTestClient(t, hub, "e1")

	select {
	case hub.Unregister <- client:
	case <-time.After(time.Second):
		t.Fatal("hub never accepted the unregister")
	}

	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("send channel should be closed, not delivering")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send channel never closed")
	}
}
