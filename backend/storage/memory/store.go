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

// Package memory is an in-process MessageStore used in local mode and in
// tests. It implements the same semantics as the Postgres store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/Munzer2/Jobathon/backend/conversation"
	"github.com/Munzer2/Jobathon/backend/models"
	"github.com/Munzer2/Jobathon/backend/storage"
)

type Store struct {
	mu             sync.RWMutex
	byConversation map[string][]*models.Message
	byID           map[string]*models.Message

	// now is stubbed in tests that need a deterministic clock.
	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		byConversation: make(map[string][]*models.Message),
		byID:           make(map[string]*models.Message),
		now:            time.Now,
	}
}

func (s *Store) Append(ctx context.Context, sender, receiver, content string) (*models.Message, error) {
	key, err := conversation.Key(sender, receiver)
	if err != nil {
		return nil, err
	}
	content, err = storage.NormalizeContent(content)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg := &models.Message{
		ID:              uuid.New().String(),
		ConversationKey: key,
		SenderID:        sender,
		ReceiverID:      receiver,
		Participants:    []string{sender, receiver},
		Content:         content,
		CreatedAt:       s.now().UTC(),
	}
	s.byConversation[key] = append(s.byConversation[key], msg)
	s.byID[msg.ID] = msg
	return copyMessage(msg), nil
}

func (s *Store) MarkRead(ctx context.Context, messageID, user string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.byID[messageID]
	if !ok || msg.ReceiverID != user || msg.ReadAt != nil {
		return nil, models.ErrNotFound
	}
	at := s.now().UTC()
	msg.ReadAt = &at
	return copyMessage(msg), nil
}

func (s *Store) ListConversations(ctx context.Context, user string, limit int) ([]*models.ConversationSummary, error) {
	limit = storage.ClampConversationLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var summaries []*models.ConversationSummary
	for key, msgs := range s.byConversation {
		if len(msgs) == 0 || !lo.Contains(msgs[0].Participants, user) {
			continue
		}
		last := msgs[0]
		unread := 0
		for _, m := range msgs {
			if m.CreatedAt.After(last.CreatedAt) {
				last = m
			}
			if m.ReceiverID == user && m.ReadAt == nil {
				unread++
			}
		}
		summaries = append(summaries, &models.ConversationSummary{
			ConversationKey: key,
			OtherUser:       &models.User{ID: last.OtherParticipant(user)},
			LastMessage:     copyMessage(last),
			UnreadCount:     unread,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastMessage.CreatedAt.After(summaries[j].LastMessage.CreatedAt)
	})
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

func (s *Store) FetchThread(ctx context.Context, user, otherUser string, limit int, before time.Time) (*models.ThreadPage, error) {
	key, err := conversation.Key(user, otherUser)
	if err != nil {
		return nil, err
	}
	limit = storage.ClampThreadLimit(limit)
	if before.IsZero() {
		before = s.now().UTC()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var page []*models.Message
	for _, m := range s.byConversation[key] {
		if m.CreatedAt.Before(before) {
			page = append(page, copyMessage(m))
		}
	}
	sort.SliceStable(page, func(i, j int) bool {
		return page[i].CreatedAt.Before(page[j].CreatedAt)
	})
	if len(page) > limit {
		page = page[len(page)-limit:]
	}

	result := &models.ThreadPage{Messages: page, Fetched: len(page)}
	if len(page) > 0 {
		oldest := page[0].CreatedAt
		result.OldestFetchedAt = &oldest
	}
	return result, nil
}

func (s *Store) UnreadCount(ctx context.Context, user string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, m := range s.byID {
		if m.ReceiverID == user && m.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// copyMessage keeps callers from sharing mutable state with the store.
func copyMessage(m *models.Message) *models.Message {
	cp := *m
	cp.Participants = append([]string(nil), m.Participants...)
	if m.ReadAt != nil {
		at := *m.ReadAt
		cp.ReadAt = &at
	}
	return &cp
}
