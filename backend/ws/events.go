// Copyright (C) 2025 Jobathon
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package ws

import "github.com/Munzer2/Jobathon/backend/models"

// Client -> server event types.
const (
	EventJoinConversation = "join_conversation"
	EventSendMessage      = "send_message"
)

// Server -> client event types.
const (
	EventJoined         = "joined"
	EventReceiveMessage = "receive_message"
	EventMessageError   = "message_error"
)

// ClientEvent is the envelope for everything a connection sends after the
// handshake. Authentication happened at connection time; events carry no
// credentials.
type ClientEvent struct {
	Type            string `json:"type"`
	ConversationKey string `json:"conversation_key,omitempty"`
	ReceiverID      string `json:"receiver_id,omitempty"`
	Content         string `json:"content,omitempty"`
}

// ServerEvent is the envelope for everything the server pushes. An error
// event never closes the connection; the client may keep sending.
type ServerEvent struct {
	Type            string          `json:"type"`
	ConversationKey string          `json:"conversation_key,omitempty"`
	Message         *models.Message `json:"message,omitempty"`
	Error           *models.Error   `json:"error,omitempty"`
}
