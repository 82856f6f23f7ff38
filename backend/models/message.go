// Copyright (C) 2025 Jobathon
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package models

import "time"

// Message is a single direct message between two users. It is append-only:
// after creation the only field that ever changes is ReadAt, and only the
// receiver's read action may set it.
type Message struct {
	ID              string     `json:"id" db:"message_id"`
	ConversationKey string     `json:"conversation_key" db:"conversation_key"`
	SenderID        string     `json:"sender_id" db:"sender_id"`
	ReceiverID      string     `json:"receiver_id" db:"receiver_id"`
	Participants    []string   `json:"participants" db:"participants"`
	Content         string     `json:"content" db:"content"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	ReadAt          *time.Time `json:"read_at,omitempty" db:"read_at"`
}

// OtherParticipant returns the participant that is not the given user.
func (m *Message) OtherParticipant(user string) string {
	for _, p := range m.Participants {
		if p != user {
			return p
		}
	}
	return ""
}

// Unread reports whether the message is still unread by its receiver.
func (m *Message) Unread() bool {
	return m.ReadAt == nil
}

// User is the directory projection of a platform user, as resolved through
// the identity provider. Only the fields the messaging UI needs are carried.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Type      string `json:"type,omitempty"`
}

// ConversationSummary is one row of a user's conversation list: the other
// party, the most recent message, and how many inbound messages are unread.
type ConversationSummary struct {
	ConversationKey string   `json:"conversation_key"`
	OtherUser       *User    `json:"other_user"`
	LastMessage     *Message `json:"last_message"`
	UnreadCount     int      `json:"unread_count"`
}

// ThreadPage is one page of a conversation's history, in ascending
// created-at order. OldestFetchedAt is the cursor for the next page: pass
// it back as `before` to fetch older messages.
type ThreadPage struct {
	Messages        []*Message `json:"messages"`
	Fetched         int        `json:"fetched"`
	OldestFetchedAt *time.Time `json:"oldest_fetched_at,omitempty"`
}
