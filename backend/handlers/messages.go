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

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/Munzer2/Jobathon/backend/identity"
	"github.com/Munzer2/Jobathon/backend/middleware"
	"github.com/Munzer2/Jobathon/backend/models"
	"github.com/Munzer2/Jobathon/backend/readstate"
	"github.com/Munzer2/Jobathon/backend/storage"
)

// Broadcaster pushes a freshly persisted message to live viewers of its
// conversation. May be nil when no push channel is wired.
type Broadcaster func(ctx context.Context, conversationKey string, msg *models.Message)

type MessageHandler struct {
	store     storage.MessageStore
	directory identity.Directory
	tracker   *readstate.Tracker
	broadcast Broadcaster
	validate  *validator.Validate
	log       *slog.Logger
}

func NewMessageHandler(store storage.MessageStore, directory identity.Directory, tracker *readstate.Tracker, broadcast Broadcaster, log *slog.Logger) *MessageHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MessageHandler{
		store:     store,
		directory: directory,
		tracker:   tracker,
		broadcast: broadcast,
		validate:  validator.New(),
		log:       log,
	}
}

// ListConversations returns the authenticated user's conversations, newest
// activity first, with the other party resolved through the directory.
func (h *MessageHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		h.respondError(w, models.ErrUnauthenticated)
		return
	}

	summaries, err := h.store.ListConversations(r.Context(), userID, storage.DefaultConversationLimit)
	if err != nil {
		h.respondError(w, err)
		return
	}

	for _, summary := range summaries {
		user, err := h.directory.Lookup(r.Context(), summary.OtherUser.ID)
		switch {
		case err == nil:
			summary.OtherUser = user
		case errors.Is(err, models.ErrNotFound):
			// Deleted account; keep the bare ID so the thread stays listed.
		default:
			h.log.Warn("directory lookup failed", "user_id", summary.OtherUser.ID, "error", err)
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    summaries,
	})
}

// GetThread returns one page of the conversation with the user in the path,
// ascending, with a cursor for older history.
func (h *MessageHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		h.respondError(w, models.ErrUnauthenticated)
		return
	}
	otherID := mux.Vars(r)["userId"]

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	var before time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			h.respondError(w, models.E(models.KindInvalidContent, "before must be an RFC 3339 timestamp"))
			return
		}
		before = parsed
	}

	page, err := h.store.FetchThread(r.Context(), userID, otherID, limit, before)
	if err != nil {
		h.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    page.Messages,
		"pagination": map[string]interface{}{
			"fetched":      page.Fetched,
			"older_before": page.OldestFetchedAt,
		},
	})
}

// GetUnreadCount returns the user's global unread badge count.
func (h *MessageHandler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		h.respondError(w, models.ErrUnauthenticated)
		return
	}

	count, err := h.tracker.UnreadCount(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Unread count fetched",
		"data":    count,
	})
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// SendMessage persists a new message to the receiver in the path and
// notifies live viewers of the conversation.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		h.respondError(w, models.ErrUnauthenticated)
		return
	}
	receiverID := mux.Vars(r)["receiverId"]

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, models.E(models.KindInvalidContent, "invalid request body"))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.respondError(w, models.E(models.KindInvalidContent, "message content is required"))
		return
	}
	if receiverID == userID {
		h.respondError(w, models.E(models.KindInvalidParticipants, "you cannot send a message to yourself"))
		return
	}

	if _, err := h.directory.Lookup(r.Context(), receiverID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			h.respondError(w, models.E(models.KindNotFound, "receiver not found"))
			return
		}
		h.respondError(w, err)
		return
	}

	msg, err := h.store.Append(r.Context(), userID, receiverID, req.Content)
	if err != nil {
		h.respondError(w, err)
		return
	}

	if h.broadcast != nil {
		h.broadcast(r.Context(), msg.ConversationKey, msg)
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Message sent",
		"data":    msg,
	})
}

// MarkRead conditionally marks a single message as read by its receiver.
// An ineligible message (wrong user, already read, unknown ID) is a 404.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		h.respondError(w, models.ErrUnauthenticated)
		return
	}
	messageID := mux.Vars(r)["messageId"]

	msg, err := h.store.MarkRead(r.Context(), messageID, userID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Message marked as read",
		"data":    msg,
	})
}

// MarkThreadRead marks the most recent page of a thread as read, best
// effort, and reports how many messages it marked.
func (h *MessageHandler) MarkThreadRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		h.respondError(w, models.ErrUnauthenticated)
		return
	}
	otherID := mux.Vars(r)["userId"]

	page, err := h.store.FetchThread(r.Context(), userID, otherID, storage.MaxThreadLimit, time.Time{})
	if err != nil {
		h.respondError(w, err)
		return
	}
	marked := h.tracker.MarkThreadRead(r.Context(), userID, page.Messages)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Thread marked as read",
		"data":    map[string]int{"marked": marked},
	})
}

func (h *MessageHandler) respondError(w http.ResponseWriter, err error) {
	kind := models.ErrorKind(err)
	message := err.Error()
	if kind == models.KindServerError {
		h.log.Error("request failed", "error", err)
		message = "Server error"
	}
	respondJSON(w, statusForKind(kind), map[string]interface{}{
		"success": false,
		"message": message,
		"error":   models.E(kind, message),
	})
}

func statusForKind(kind models.Kind) int {
	switch kind {
	case models.KindInvalidParticipants, models.KindInvalidContent:
		return http.StatusBadRequest
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindUnauthenticated:
		return http.StatusUnauthorized
	case models.KindUnauthorized:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
