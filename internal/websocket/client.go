// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/BrianFlannery/mage-server-1/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// inbound frames allowed per client; anything beyond is dropped.
const (
	inboundRate  = rate.Limit(5)
	inboundBurst = 10
)

// Client is one websocket connection, scoped to a single event.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	eventID string
	userID  string
	send    chan Message
	limiter *rate.Limiter
}

// NewClient wraps an upgraded connection for the given event watcher.
func NewClient(hub *Hub, conn *websocket.Conn, eventID, userID string) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		eventID: eventID,
		userID:  userID,
		send:    make(chan Message, 64),
		limiter: rate.NewLimiter(inboundRate, inboundBurst),
	}
}

// Start registers the client and runs its pumps. It returns immediately;
// the pumps unregister the client when the connection drops.
func (c *Client) Start() {
	c.hub.Register <- c
	go c.writePump()
	go c.readPump()
}

// readPump consumes inbound frames. Clients only ever send pings; anything
// else is ignored. The rate limiter keeps a misbehaving client from
// monopolizing the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("Failed to set websocket read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Str("user_id", c.userID).Msg("Unexpected websocket close")
			}
			return
		}
		if !c.limiter.Allow() {
			continue
		}
		if msg.Type == MessageTypePing {
			select {
			case c.send <- Message{Type: MessageTypePong}:
			default:
			}
		}
	}
}

// writePump delivers frames to the connection and keeps it alive with
// protocol pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
