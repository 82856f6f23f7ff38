// Copyright (C) 2025 Jobathon
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Munzer2/Jobathon/backend/identity"
	"github.com/Munzer2/Jobathon/backend/integration"
	"github.com/Munzer2/Jobathon/backend/middleware"
	"github.com/Munzer2/Jobathon/backend/models"
	"github.com/Munzer2/Jobathon/backend/ws"
)

const (
	testSecret = "ws-test-secret"
	testIssuer = "jobathon"
)

func newTestStack(t *testing.T) (*httptest.Server, *integration.Messaging) {
	t.Helper()

	directory := identity.NewStaticDirectory(
		models.User{ID: "alice", FirstName: "Alice"},
		models.User{ID: "bob", FirstName: "Bob"},
	)
	msging, err := integration.New(&integration.Config{
		Directory: directory,
		JWTSecret: testSecret,
		JWTIssuer: testIssuer,
	})
	require.NoError(t, err)

	r := mux.NewRouter()
	msging.RegisterRoutes(r, nil)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, msging
}

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()

	token, err := middleware.GenerateToken(userID, &middleware.JWTConfig{Secret: testSecret, Issuer: testIssuer}, time.Minute)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeEvent(t *testing.T, conn *websocket.Conn, ev ws.ClientEvent) {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func readEvent(t *testing.T, conn *websocket.Conn) ws.ServerEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev ws.ServerEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func join(t *testing.T, conn *websocket.Conn, key string) {
	t.Helper()
	writeEvent(t, conn, ws.ClientEvent{Type: ws.EventJoinConversation, ConversationKey: key})
	ack := readEvent(t, conn)
	require.Equal(t, ws.EventJoined, ack.Type)
	require.Equal(t, key, ack.ConversationKey)
}

func Test_Handshake_Requires_Valid_Token(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestStack(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	req.Error(err)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=garbage", nil)
	req.Error(err)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func Test_Send_Broadcasts_To_All_Members(t *testing.T) {
	req := require.New(t)
	srv, msging := newTestStack(t)

	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	join(t, alice, "alice:bob")
	join(t, bob, "alice:bob")

	writeEvent(t, alice, ws.ClientEvent{Type: ws.EventSendMessage, ReceiverID: "bob", Content: "hello"})

	// Both members receive the event, the sender's connection included.
	gotAlice := readEvent(t, alice)
	gotBob := readEvent(t, bob)

	req.Equal(ws.EventReceiveMessage, gotAlice.Type)
	req.Equal(ws.EventReceiveMessage, gotBob.Type)
	req.Equal("hello", gotAlice.Message.Content)
	req.Equal("hello", gotBob.Message.Content)
	req.Equal(gotAlice.Message.ID, gotBob.Message.ID)
	req.Equal("alice:bob", gotBob.Message.ConversationKey)

	// The durable store saw the same message: bob's conversation list
	// shows it as the unread last message.
	summaries, err := msging.Store().ListConversations(context.Background(), "bob", 0)
	req.NoError(err)
	req.Len(summaries, 1)
	req.Equal(gotBob.Message.ID, summaries[0].LastMessage.ID)
	req.GreaterOrEqual(summaries[0].UnreadCount, 1)
}

func Test_Multi_Device_Delivery(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestStack(t)

	phone := dial(t, srv, "alice")
	laptop := dial(t, srv, "alice")
	join(t, phone, "alice:bob")
	join(t, laptop, "alice:bob")

	writeEvent(t, phone, ws.ClientEvent{Type: ws.EventSendMessage, ReceiverID: "bob", Content: "from my phone"})

	// Both of the sender's devices converge.
	fromPhone := readEvent(t, phone)
	fromLaptop := readEvent(t, laptop)
	req.Equal(fromPhone.Message.ID, fromLaptop.Message.ID)
	req.Equal("from my phone", fromLaptop.Message.Content)
}

func Test_Self_Send_Is_Rejected_Without_Persisting(t *testing.T) {
	req := require.New(t)
	srv, msging := newTestStack(t)

	alice := dial(t, srv, "alice")
	writeEvent(t, alice, ws.ClientEvent{Type: ws.EventSendMessage, ReceiverID: "alice", Content: "hi me"})

	ev := readEvent(t, alice)
	req.Equal(ws.EventMessageError, ev.Type)
	req.Equal(models.KindInvalidParticipants, ev.Error.Kind)

	count, err := msging.Store().UnreadCount(context.Background(), "alice")
	req.NoError(err)
	req.Zero(count)

	// The error did not tear down the connection.
	join(t, alice, "alice:bob")
}

func Test_Empty_Content_Error_Keeps_Connection(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestStack(t)

	alice := dial(t, srv, "alice")
	writeEvent(t, alice, ws.ClientEvent{Type: ws.EventSendMessage, ReceiverID: "bob", Content: "   "})

	ev := readEvent(t, alice)
	req.Equal(ws.EventMessageError, ev.Type)
	req.Equal(models.KindInvalidContent, ev.Error.Kind)

	// The connection is still usable: join and send for real.
	join(t, alice, "alice:bob")
	writeEvent(t, alice, ws.ClientEvent{Type: ws.EventSendMessage, ReceiverID: "bob", Content: "real one"})
	ev = readEvent(t, alice)
	req.Equal(ws.EventReceiveMessage, ev.Type)
	req.Equal("real one", ev.Message.Content)
}

func Test_Join_Requires_Membership(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestStack(t)

	bob := dial(t, srv, "bob")
	writeEvent(t, bob, ws.ClientEvent{Type: ws.EventJoinConversation, ConversationKey: "alice:carol"})

	ev := readEvent(t, bob)
	req.Equal(ws.EventMessageError, ev.Type)
	req.Equal(models.KindUnauthorized, ev.Error.Kind)
}

func Test_Unknown_Event_Type(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestStack(t)

	alice := dial(t, srv, "alice")
	writeEvent(t, alice, ws.ClientEvent{Type: "typing"})

	ev := readEvent(t, alice)
	req.Equal(ws.EventMessageError, ev.Type)
	req.Equal(models.KindInvalidContent, ev.Error.Kind)
}
