// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

// Package eventbus fans observation and location changes out to in-process
// subscribers, primarily the websocket hub. Publishing is fire-and-forget:
// a slow subscriber never blocks or fails the write path.
package eventbus

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/BrianFlannery/mage-server-1/internal/models"
)

// Topics carried by the bus.
const (
	TopicObservations = "observations"
	TopicLocations    = "locations"
)

// Change actions attached to published messages.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// metadata keys on published messages.
const (
	MetaAction  = "action"
	MetaEventID = "eventId"
)

// ObservationChange is the payload published on TopicObservations.
type ObservationChange struct {
	Action      string              `json:"action"`
	Observation *models.Observation `json:"observation"`
}

// LocationChange is the payload published on TopicLocations.
type LocationChange struct {
	Action    string             `json:"action"`
	EventID   string             `json:"eventId"`
	Locations []*models.Location `json:"locations"`
}

// Bus is an in-process publish/subscribe channel over watermill's gochannel
// transport.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// New builds the bus. Buffered output channels absorb subscriber hiccups
// without backpressuring publishers.
func New() *Bus {
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, watermill.NopLogger{})
	return &Bus{pubsub: pubsub}
}

// PublishObservation announces an observation change.
func (b *Bus) PublishObservation(action string, obs *models.Observation) error {
	payload, err := json.Marshal(ObservationChange{Action: action, Observation: obs})
	if err != nil {
		return fmt.Errorf("encode observation change: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetaAction, action)
	msg.Metadata.Set(MetaEventID, obs.EventID)
	if err := b.pubsub.Publish(TopicObservations, msg); err != nil {
		return fmt.Errorf("publish observation change: %w", err)
	}
	return nil
}

// PublishLocations announces a batch of accepted position reports.
func (b *Bus) PublishLocations(eventID string, locations []*models.Location) error {
	payload, err := json.Marshal(LocationChange{
		Action:    ActionCreate,
		EventID:   eventID,
		Locations: locations,
	})
	if err != nil {
		return fmt.Errorf("encode location change: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetaAction, ActionCreate)
	msg.Metadata.Set(MetaEventID, eventID)
	if err := b.pubsub.Publish(TopicLocations, msg); err != nil {
		return fmt.Errorf("publish location change: %w", err)
	}
	return nil
}

// SubscribeObservations delivers observation changes until ctx is canceled.
func (b *Bus) SubscribeObservations(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, TopicObservations)
}

// SubscribeLocations delivers location changes until ctx is canceled.
func (b *Bus) SubscribeLocations(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, TopicLocations)
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
