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

package storage

import (
	"context"
	"time"

	"github.com/Munzer2/Jobathon/backend/models"
)

const (
	// MaxContentLength bounds message bodies to prevent unbounded growth.
	MaxContentLength = 4000

	DefaultThreadLimit       = 40
	MaxThreadLimit           = 100
	DefaultConversationLimit = 100
)

// MessageStore is the durable, append-only record of messages. The REST
// handlers and the push channel both operate through this interface, so no
// invariant is path-specific. Append is a single atomic insert with a
// server-assigned timestamp; the store is the sole arbiter of ordering.
type MessageStore interface {
	// Append validates the participants and content, derives the
	// conversation key, and persists a new unread message.
	Append(ctx context.Context, sender, receiver, content string) (*models.Message, error)

	// MarkRead conditionally sets read_at on a message. It succeeds only
	// when user is the receiver and the message is still unread; anything
	// else is models.ErrNotFound.
	MarkRead(ctx context.Context, messageID, user string) (*models.Message, error)

	// ListConversations returns the user's conversations, newest activity
	// first, each with its last message and unread count. OtherUser carries
	// only the ID; callers enrich it through the identity directory.
	ListConversations(ctx context.Context, user string, limit int) ([]*models.ConversationSummary, error)

	// FetchThread returns one page of the conversation between user and
	// otherUser: messages created strictly before the cursor, ascending.
	// A zero cursor means "now".
	FetchThread(ctx context.Context, user, otherUser string, limit int, before time.Time) (*models.ThreadPage, error)

	// UnreadCount is the user's global unread badge count, across every
	// conversation.
	UnreadCount(ctx context.Context, user string) (int, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
