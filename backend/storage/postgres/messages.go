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

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/Munzer2/Jobathon/backend/conversation"
	"github.com/Munzer2/Jobathon/backend/models"
	"github.com/Munzer2/Jobathon/backend/storage"
)

const messageColumns = `message_id, conversation_key, sender_id, receiver_id, participants, content, created_at, read_at`

func (s *Store) Append(ctx context.Context, sender, receiver, content string) (*models.Message, error) {
	key, err := conversation.Key(sender, receiver)
	if err != nil {
		return nil, err
	}
	content, err = storage.NormalizeContent(content)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:              uuid.New().String(),
		ConversationKey: key,
		SenderID:        sender,
		ReceiverID:      receiver,
		Participants:    []string{sender, receiver},
		Content:         content,
		CreatedAt:       time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (message_id, conversation_key, sender_id, receiver_id, participants, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.ConversationKey, msg.SenderID, msg.ReceiverID,
		pq.Array(msg.Participants), msg.Content, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (s *Store) MarkRead(ctx context.Context, messageID, user string) (*models.Message, error) {
	// Conditional update: the filter enforces both "receiver only" and
	// "set at most once" in a single atomic statement.
	row := s.db.QueryRowContext(ctx, `
		UPDATE messages SET read_at = $1
		WHERE message_id = $2 AND receiver_id = $3 AND read_at IS NULL
		RETURNING `+messageColumns,
		time.Now().UTC(), messageID, user)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	return msg, nil
}

func (s *Store) ListConversations(ctx context.Context, user string, limit int) ([]*models.ConversationSummary, error) {
	limit = storage.ClampConversationLimit(limit)

	// Most recent message per conversation the user participates in.
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (conversation_key) `+messageColumns+`
		FROM messages
		WHERE $1 = ANY(participants)
		ORDER BY conversation_key, created_at DESC`,
		user)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var summaries []*models.ConversationSummary
	for rows.Next() {
		last, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan last message: %w", err)
		}
		summaries = append(summaries, &models.ConversationSummary{
			ConversationKey: last.ConversationKey,
			OtherUser:       &models.User{ID: last.OtherParticipant(user)},
			LastMessage:     last,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	unread, err := s.unreadByConversation(ctx, user)
	if err != nil {
		return nil, err
	}
	for _, summary := range summaries {
		summary.UnreadCount = unread[summary.ConversationKey]
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastMessage.CreatedAt.After(summaries[j].LastMessage.CreatedAt)
	})
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

func (s *Store) unreadByConversation(ctx context.Context, user string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_key, COUNT(*)
		FROM messages
		WHERE receiver_id = $1 AND read_at IS NULL
		GROUP BY conversation_key`,
		user)
	if err != nil {
		return nil, fmt.Errorf("unread by conversation: %w", err)
	}
	defer rows.Close()

	unread := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan unread count: %w", err)
		}
		unread[key] = count
	}
	return unread, rows.Err()
}

func (s *Store) FetchThread(ctx context.Context, user, otherUser string, limit int, before time.Time) (*models.ThreadPage, error) {
	key, err := conversation.Key(user, otherUser)
	if err != nil {
		return nil, err
	}
	limit = storage.ClampThreadLimit(limit)
	if before.IsZero() {
		before = time.Now().UTC()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_key = $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3`,
		key, before, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch thread: %w", err)
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch thread: %w", err)
	}

	// Query order is newest-first; pages are served ascending for display.
	msgs = lo.Reverse(msgs)

	page := &models.ThreadPage{Messages: msgs, Fetched: len(msgs)}
	if len(msgs) > 0 {
		oldest := msgs[0].CreatedAt
		page.OldestFetchedAt = &oldest
	}
	return page, nil
}

func (s *Store) UnreadCount(ctx context.Context, user string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE receiver_id = $1 AND read_at IS NULL`,
		user).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var msg models.Message
	var readAt sql.NullTime
	err := row.Scan(&msg.ID, &msg.ConversationKey, &msg.SenderID, &msg.ReceiverID,
		pq.Array(&msg.Participants), &msg.Content, &msg.CreatedAt, &readAt)
	if err != nil {
		return nil, err
	}
	if readAt.Valid {
		at := readAt.Time.UTC()
		msg.ReadAt = &at
	}
	return &msg, nil
}
