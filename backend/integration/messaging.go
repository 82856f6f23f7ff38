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

// Package integration bundles the messaging core so it can be embedded
// into the Jobathon platform server or run standalone (cmd/server).
package integration

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/Munzer2/Jobathon/backend/handlers"
	"github.com/Munzer2/Jobathon/backend/identity"
	"github.com/Munzer2/Jobathon/backend/middleware"
	"github.com/Munzer2/Jobathon/backend/readstate"
	"github.com/Munzer2/Jobathon/backend/storage"
	"github.com/Munzer2/Jobathon/backend/storage/memory"
	"github.com/Munzer2/Jobathon/backend/storage/postgres"
	redisbridge "github.com/Munzer2/Jobathon/backend/storage/redis"
	"github.com/Munzer2/Jobathon/backend/ws"
)

// Config holds everything the messaging core borrows from its host.
// DB nil selects the in-memory store (local mode and tests). Redis nil
// disables cross-instance fan-out.
type Config struct {
	DB             *sql.DB
	Redis          *redis.Client
	Directory      identity.Directory
	JWTSecret      string
	JWTIssuer      string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Messaging owns the store, the REST handlers, and the live delivery hub.
type Messaging struct {
	store     storage.MessageStore
	tracker   *readstate.Tracker
	handler   *handlers.MessageHandler
	hub       *ws.Hub
	jwtSecret string
	jwtIssuer string
	log       *slog.Logger
}

func New(cfg *Config) (*Messaging, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	var store storage.MessageStore
	if cfg.DB != nil {
		pg := postgres.NewStore(cfg.DB)
		if err := pg.Migrate(); err != nil {
			return nil, err
		}
		store = pg
	} else {
		store = memory.NewStore()
	}

	hub := ws.NewHub(store, cfg.AllowedOrigins, log)
	if cfg.Redis != nil {
		hub.SetBridge(redisbridge.NewBroadcaster(cfg.Redis, log))
	}

	directory := cfg.Directory
	if directory == nil {
		directory = identity.NewStaticDirectory()
	}

	tracker := readstate.NewTracker(store, log)
	handler := handlers.NewMessageHandler(store, directory, tracker, hub.Broadcast, log)

	return &Messaging{
		store:     store,
		tracker:   tracker,
		handler:   handler,
		hub:       hub,
		jwtSecret: cfg.JWTSecret,
		jwtIssuer: cfg.JWTIssuer,
		log:       log,
	}, nil
}

// Start launches background work (the fan-out bridge subscription). The
// context bounds the lifetime of everything started here.
func (m *Messaging) Start(ctx context.Context) {
	m.hub.Run(ctx)
}

// RegisterRoutes mounts the REST surface and the socket endpoint on an
// existing router. Pass a host auth middleware to share the platform's
// session handling, or nil to use the built-in JWT verification.
func (m *Messaging) RegisterRoutes(router *mux.Router, authMiddleware func(http.Handler) http.Handler) {
	if authMiddleware == nil {
		authMiddleware = middleware.NewAuthMiddleware(m.jwtSecret, m.jwtIssuer)
	}

	api := router.PathPrefix("/api/messages").Subrouter()
	api.Use(authMiddleware)

	api.HandleFunc("/conversations", m.handler.ListConversations).Methods("GET", "OPTIONS")
	api.HandleFunc("/unread/count", m.handler.GetUnreadCount).Methods("GET", "OPTIONS")
	api.HandleFunc("/with/{userId}", m.handler.GetThread).Methods("GET", "OPTIONS")
	api.HandleFunc("/with/{userId}/read", m.handler.MarkThreadRead).Methods("POST", "OPTIONS")
	api.HandleFunc("/{messageId}/read", m.handler.MarkRead).Methods("POST", "OPTIONS")
	api.HandleFunc("/{receiverId}", m.handler.SendMessage).Methods("POST", "OPTIONS")

	// The handshake carries the credential as a query parameter; the same
	// middleware verifies it before the upgrade.
	router.Handle("/ws", authMiddleware(http.HandlerFunc(m.hub.HandleConnection)))
}

// Store exposes the underlying message store to the host.
func (m *Messaging) Store() storage.MessageStore {
	return m.store
}
