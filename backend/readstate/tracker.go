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

package readstate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Munzer2/Jobathon/backend/models"
	"github.com/Munzer2/Jobathon/backend/storage"
)

// Tracker maintains read/unread state on top of the message store. The
// read-state signal is best-effort, not transactional: batch operations
// tolerate individual failures.
type Tracker struct {
	store storage.MessageStore
	log   *slog.Logger
}

func NewTracker(store storage.MessageStore, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{store: store, log: log}
}

// MarkThreadRead marks every unread message addressed to user within the
// given batch. Messages the user sent, or already read, are skipped. A
// failure on one message never aborts the rest; it is logged and the loop
// moves on. Returns how many messages were actually marked.
func (t *Tracker) MarkThreadRead(ctx context.Context, user string, msgs []*models.Message) int {
	marked := 0
	for _, msg := range msgs {
		if msg.ReceiverID != user || msg.ReadAt != nil {
			continue
		}
		if _, err := t.store.MarkRead(ctx, msg.ID, user); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				// Lost a race with another device of the same user.
				continue
			}
			t.log.Warn("mark read failed", "message_id", msg.ID, "user_id", user, "error", err)
			continue
		}
		marked++
	}
	return marked
}

// UnreadCount is the user's global unread total, used for the badge.
func (t *Tracker) UnreadCount(ctx context.Context, user string) (int, error) {
	return t.store.UnreadCount(ctx, user)
}
