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

// Package ws is the live delivery channel: an authenticated websocket
// endpoint whose connections join per-conversation broadcast groups and
// receive newly persisted messages in real time. Group membership is
// process-local and does not survive reconnect; the durable store is the
// source of truth, and clients re-fetch history after reconnecting.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Munzer2/Jobathon/backend/conversation"
	"github.com/Munzer2/Jobathon/backend/middleware"
	"github.com/Munzer2/Jobathon/backend/models"
	"github.com/Munzer2/Jobathon/backend/storage"
)

// Bridge fans broadcasts out across server instances. Implemented by the
// Redis broadcaster; nil means single-instance, local-only delivery.
type Bridge interface {
	Publish(ctx context.Context, conversationKey string, msg *models.Message) error
	Subscribe(ctx context.Context, handle func(conversationKey string, msg *models.Message))
}

// Hub is the in-process registry of live connections, grouped by
// conversation key. All mutation happens under one lock; the broadcast
// path takes a snapshot so a slow socket never holds the registry.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	store    storage.MessageStore
	bridge   Bridge
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewHub(store storage.MessageStore, allowedOrigins []string, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		store:   store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log,
	}
}

// SetBridge wires a cross-instance fan-out transport. Must be called
// before Run.
func (h *Hub) SetBridge(b Bridge) {
	h.bridge = b
}

// Run starts the bridge subscription, if any. Delivery to local rooms
// happens on the subscriber goroutine.
func (h *Hub) Run(ctx context.Context) {
	if h.bridge != nil {
		h.bridge.Subscribe(ctx, h.deliverLocal)
	}
}

// HandleConnection upgrades an authenticated request to a websocket and
// starts the connection's pumps. The auth middleware has already verified
// the handshake credential; unauthenticated requests never reach here.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	client := newClient(h, conn, userID)
	h.register(client)
	h.log.Info("websocket connected", "user_id", userID)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// unregister removes the connection from every group and releases its send
// channel. Disconnection is passive: no persisted state changes.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for key, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, key)
		}
	}
	c.shutdown()
}

// join adds the connection to the broadcast group for a conversation. A
// connection may be in several groups at once.
func (h *Hub) join(c *Client, conversationKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	members, ok := h.rooms[conversationKey]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[conversationKey] = members
	}
	members[c] = struct{}{}
}

// Broadcast delivers a persisted message to every connection joined to its
// conversation. With a bridge configured, delivery goes through it so every
// instance (including this one) fans out to its own local members.
func (h *Hub) Broadcast(ctx context.Context, conversationKey string, msg *models.Message) {
	if h.bridge != nil {
		err := h.bridge.Publish(ctx, conversationKey, msg)
		if err == nil {
			return
		}
		h.log.Error("bridge publish failed, delivering locally", "conversation_key", conversationKey, "error", err)
	}
	h.deliverLocal(conversationKey, msg)
}

func (h *Hub) deliverLocal(conversationKey string, msg *models.Message) {
	event, err := json.Marshal(ServerEvent{
		Type:            EventReceiveMessage,
		ConversationKey: conversationKey,
		Message:         msg,
	})
	if err != nil {
		h.log.Error("marshal broadcast event", "error", err)
		return
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[conversationKey]))
	for c := range h.rooms[conversationKey] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	// Fan-out with no atomicity across recipients: a full send buffer on
	// one connection drops the frame there and moves on.
	for _, c := range members {
		c.enqueue(event)
	}
}

// handleEvent dispatches one client event. Event-level failures are
// reported back on the same connection and never tear it down.
func (h *Hub) handleEvent(ctx context.Context, c *Client, ev ClientEvent) {
	switch ev.Type {
	case EventJoinConversation:
		if ev.ConversationKey == "" || !conversation.Participant(ev.ConversationKey, c.userID) {
			c.sendError(models.E(models.KindUnauthorized, "not a participant of that conversation"))
			return
		}
		h.join(c, ev.ConversationKey)
		c.sendEvent(ServerEvent{Type: EventJoined, ConversationKey: ev.ConversationKey})

	case EventSendMessage:
		if ev.ReceiverID == c.userID {
			c.sendError(models.E(models.KindInvalidParticipants, "you cannot send a message to yourself"))
			return
		}
		msg, err := h.store.Append(ctx, c.userID, ev.ReceiverID, ev.Content)
		if err != nil {
			c.sendError(err)
			return
		}
		h.Broadcast(ctx, msg.ConversationKey, msg)

	default:
		c.sendError(models.E(models.KindInvalidContent, "unknown event type"))
	}
}

func originChecker(allowedOrigins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowedOrigins) == 0 {
			return true
		}
		for _, allowed := range allowedOrigins {
			if origin == allowed {
				return true
			}
		}
		return false
	}
}
