// Copyright (C) 2025 Jobathon
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Munzer2/Jobathon/backend/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Inbound frames are small JSON events; 4000-char content fits with
	// room for the envelope.
	maxEventSize = 32 * 1024

	// Outbound buffer per connection. When it fills, frames for that
	// connection are dropped rather than stalling the broadcast.
	sendBuffer = 64

	// Per-event budget for store work triggered by a socket event.
	eventTimeout = 5 * time.Second
)

// Client is one live connection of one authenticated user. The write pump
// is the only goroutine that writes to the socket.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, sendBuffer),
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
		c.hub.log.Info("websocket disconnected", "user_id", c.userID)
	}()

	c.conn.SetReadLimit(maxEventSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var ev ClientEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.sendError(models.E(models.KindInvalidContent, "malformed event"))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		c.hub.handleEvent(ctx, c, ev)
		cancel()
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue hands a frame to the write pump without blocking. Frames for a
// connection that is already shutting down are discarded.
func (c *Client) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.log.Warn("send buffer full, dropping frame", "user_id", c.userID)
	}
}

// shutdown releases the send channel exactly once, which stops the write
// pump after it drains.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) sendEvent(ev ServerEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		c.hub.log.Error("marshal server event", "error", err)
		return
	}
	c.enqueue(data)
}

// sendError reports a failure to this connection only. The connection
// stays open and usable for subsequent events.
func (c *Client) sendError(err error) {
	kind := models.ErrorKind(err)
	message := err.Error()
	if kind == models.KindServerError {
		c.hub.log.Error("socket event failed", "user_id", c.userID, "error", err)
		message = "Server error"
	}
	c.sendEvent(ServerEvent{
		Type:  EventMessageError,
		Error: models.E(kind, message),
	})
}
