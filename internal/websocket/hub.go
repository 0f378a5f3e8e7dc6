// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

// Package websocket pushes live observation and location changes to
// connected clients. Each connection is scoped to a single event; the hub
// fans bus messages out to the connections watching that event.
package websocket

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/BrianFlannery/mage-server-1/internal/eventbus"
	"github.com/BrianFlannery/mage-server-1/internal/logging"
	"github.com/BrianFlannery/mage-server-1/internal/metrics"
)

// Message types pushed to clients.
const (
	MessageTypeObservation = "observation"
	MessageTypeLocation    = "location"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
)

// Message is one frame on the wire.
type Message struct {
	Type    string      `json:"type"`
	EventID string      `json:"eventId,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Hub tracks connected clients and fans event-scoped changes out to them.
type Hub struct {
	bus        *eventbus.Bus
	clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	broadcast  chan Message
	mu         sync.RWMutex
}

// NewHub builds a hub fed by the event bus.
func NewHub(bus *eventbus.Bus) *Hub {
	return &Hub{
		bus:        bus,
		clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan Message, 256),
	}
}

// Serve runs the hub until ctx is canceled. It implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	observations, err := h.bus.SubscribeObservations(ctx)
	if err != nil {
		return err
	}
	locations, err := h.bus.SubscribeLocations(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()

		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebsocketClients.Set(float64(total))
			logging.Info().Int("total_clients", total).Str("event_id", client.eventID).
				Msg("Websocket client connected")

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebsocketClients.Set(float64(total))
			logging.Info().Int("total_clients", total).Msg("Websocket client disconnected")

		case msg, ok := <-observations:
			if !ok {
				h.closeAll()
				return nil
			}
			h.forward(msg, MessageTypeObservation)

		case msg, ok := <-locations:
			if !ok {
				h.closeAll()
				return nil
			}
			h.forward(msg, MessageTypeLocation)

		case out := <-h.broadcast:
			h.send(out)
		}
	}
}

func (h *Hub) String() string {
	return "websocket-hub"
}

// forward turns a bus message into a client frame and delivers it to the
// connections watching the event.
func (h *Hub) forward(msg *message.Message, msgType string) {
	defer msg.Ack()

	var data interface{}
	if err := json.Unmarshal(msg.Payload, &data); err != nil {
		logging.Warn().Err(err).Str("type", msgType).Msg("Dropped undecodable bus message")
		return
	}
	h.send(Message{
		Type:    msgType,
		EventID: msg.Metadata.Get(eventbus.MetaEventID),
		Data:    data,
	})
}

// send delivers the frame to matching clients, dropping it for any client
// whose buffer is full. A slow consumer loses frames, never stalls the hub.
func (h *Hub) send(out Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if out.EventID != "" && client.eventID != out.EventID {
			continue
		}
		select {
		case client.send <- out:
		default:
			logging.Debug().Str("event_id", client.eventID).Msg("Dropped frame for slow websocket client")
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WebsocketClients.Set(0)
}
