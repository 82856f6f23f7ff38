// Copyright (C) 2025 Jobathon
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/Munzer2/Jobathon/backend/identity"
	"github.com/Munzer2/Jobathon/backend/integration"
	"github.com/Munzer2/Jobathon/backend/middleware"
	"github.com/Munzer2/Jobathon/backend/models"
)

const (
	testSecret = "handler-test-secret"
	testIssuer = "jobathon"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	directory := identity.NewStaticDirectory(
		models.User{ID: "alice", FirstName: "Alice", LastName: "Ahmad", Type: "Applicant"},
		models.User{ID: "bob", FirstName: "Bob", LastName: "Baker", Type: "HR"},
		models.User{ID: "carol", FirstName: "Carol", LastName: "Chen", Type: "Applicant"},
	)

	msging, err := integration.New(&integration.Config{
		Directory: directory,
		JWTSecret: testSecret,
		JWTIssuer: testIssuer,
	})
	require.NoError(t, err)

	r := mux.NewRouter()
	msging.RegisterRoutes(r, nil)
	return r
}

func authToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := middleware.GenerateToken(userID, &middleware.JWTConfig{Secret: testSecret, Issuer: testIssuer}, time.Minute)
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, srv http.Handler, method, path, user string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+authToken(t, user))
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), "body: %s", w.Body.String())
	return w, decoded
}

func sendMessage(t *testing.T, srv http.Handler, from, to, content string) map[string]any {
	t.Helper()
	w, resp := doJSON(t, srv, http.MethodPost, "/api/messages/"+to, from, map[string]string{"content": content})
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())
	return resp["data"].(map[string]any)
}

func Test_SendMessage_Persists_And_Returns_Record(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	data := sendMessage(t, srv, "alice", "bob", "hello bob")
	req.Equal("alice", data["sender_id"])
	req.Equal("bob", data["receiver_id"])
	req.Equal("hello bob", data["content"])
	req.Equal("alice:bob", data["conversation_key"])
	req.NotEmpty(data["id"])
	req.Nil(data["read_at"])

	w, resp := doJSON(t, srv, http.MethodGet, "/api/messages/unread/count", "bob", nil)
	req.Equal(http.StatusOK, w.Code)
	req.Equal(float64(1), resp["data"])
}

func Test_SendMessage_Unknown_Receiver(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	w, resp := doJSON(t, srv, http.MethodPost, "/api/messages/nobody", "alice", map[string]string{"content": "hi"})
	req.Equal(http.StatusNotFound, w.Code)
	req.Equal(false, resp["success"])
	req.Equal("not_found", resp["error"].(map[string]any)["kind"])
}

func Test_SendMessage_Rejects_Self(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	w, resp := doJSON(t, srv, http.MethodPost, "/api/messages/alice", "alice", map[string]string{"content": "hi"})
	req.Equal(http.StatusBadRequest, w.Code)
	req.Equal("invalid_participants", resp["error"].(map[string]any)["kind"])

	// No record was persisted.
	w, resp = doJSON(t, srv, http.MethodGet, "/api/messages/conversations", "alice", nil)
	req.Equal(http.StatusOK, w.Code)
	req.Nil(resp["data"])
}

func Test_SendMessage_Rejects_Bad_Content(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	w, resp := doJSON(t, srv, http.MethodPost, "/api/messages/bob", "alice", map[string]string{"content": ""})
	req.Equal(http.StatusBadRequest, w.Code)
	req.Equal("invalid_content", resp["error"].(map[string]any)["kind"])

	w, resp = doJSON(t, srv, http.MethodPost, "/api/messages/bob", "alice", map[string]string{"content": "   "})
	req.Equal(http.StatusBadRequest, w.Code)
	req.Equal("invalid_content", resp["error"].(map[string]any)["kind"])

	w, _ = doJSON(t, srv, http.MethodPost, "/api/messages/bob", "alice", map[string]string{"content": strings.Repeat("x", 4001)})
	req.Equal(http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, srv, http.MethodPost, "/api/messages/bob", "alice", map[string]string{"content": strings.Repeat("x", 4000)})
	req.Equal(http.StatusCreated, w.Code)
}

func Test_ListConversations_Enriched_And_Ordered(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	sendMessage(t, srv, "alice", "bob", "hi from alice")
	sendMessage(t, srv, "carol", "bob", "hi from carol")

	w, resp := doJSON(t, srv, http.MethodGet, "/api/messages/conversations", "bob", nil)
	req.Equal(http.StatusOK, w.Code)

	list := resp["data"].([]any)
	req.Len(list, 2)

	first := list[0].(map[string]any)
	req.Equal("hi from carol", first["last_message"].(map[string]any)["content"])
	req.Equal(float64(1), first["unread_count"])
	req.Equal("Carol", first["other_user"].(map[string]any)["first_name"])

	second := list[1].(map[string]any)
	req.Equal("Alice", second["other_user"].(map[string]any)["first_name"])
}

func Test_Thread_Pagination_Over_REST(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	for i := 1; i <= 5; i++ {
		sendMessage(t, srv, "alice", "bob", fmt.Sprintf("message %d", i))
	}

	w, resp := doJSON(t, srv, http.MethodGet, "/api/messages/with/alice?limit=3", "bob", nil)
	req.Equal(http.StatusOK, w.Code)

	page1 := resp["data"].([]any)
	req.Len(page1, 3)
	req.Equal("message 3", page1[0].(map[string]any)["content"])
	req.Equal("message 5", page1[2].(map[string]any)["content"])

	pagination := resp["pagination"].(map[string]any)
	req.Equal(float64(3), pagination["fetched"])
	cursor := pagination["older_before"].(string)
	req.NotEmpty(cursor)

	w, resp = doJSON(t, srv, http.MethodGet, "/api/messages/with/alice?limit=3&before="+cursor, "bob", nil)
	req.Equal(http.StatusOK, w.Code)
	page2 := resp["data"].([]any)
	req.Len(page2, 2)
	req.Equal("message 1", page2[0].(map[string]any)["content"])
	req.Equal("message 2", page2[1].(map[string]any)["content"])
}

func Test_MarkRead_Flow(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	data := sendMessage(t, srv, "alice", "bob", "read me")
	msgID := data["id"].(string)

	// The sender cannot mark their own outbound message.
	w, _ := doJSON(t, srv, http.MethodPost, "/api/messages/"+msgID+"/read", "alice", nil)
	req.Equal(http.StatusNotFound, w.Code)

	w, resp := doJSON(t, srv, http.MethodPost, "/api/messages/"+msgID+"/read", "bob", nil)
	req.Equal(http.StatusOK, w.Code)
	req.NotEmpty(resp["data"].(map[string]any)["read_at"])

	// Second mark is a 404, by design.
	w, _ = doJSON(t, srv, http.MethodPost, "/api/messages/"+msgID+"/read", "bob", nil)
	req.Equal(http.StatusNotFound, w.Code)

	w, resp = doJSON(t, srv, http.MethodGet, "/api/messages/unread/count", "bob", nil)
	req.Equal(http.StatusOK, w.Code)
	req.Equal(float64(0), resp["data"])
}

func Test_MarkThreadRead(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	sendMessage(t, srv, "alice", "bob", "one")
	sendMessage(t, srv, "alice", "bob", "two")
	sendMessage(t, srv, "bob", "alice", "reply")

	w, resp := doJSON(t, srv, http.MethodPost, "/api/messages/with/alice/read", "bob", nil)
	req.Equal(http.StatusOK, w.Code)
	req.Equal(float64(2), resp["data"].(map[string]any)["marked"])

	w, resp = doJSON(t, srv, http.MethodGet, "/api/messages/unread/count", "bob", nil)
	req.Equal(http.StatusOK, w.Code)
	req.Equal(float64(0), resp["data"])

	// Alice's inbound reply is untouched.
	w, resp = doJSON(t, srv, http.MethodGet, "/api/messages/unread/count", "alice", nil)
	req.Equal(http.StatusOK, w.Code)
	req.Equal(float64(1), resp["data"])
}

func Test_Requires_Authentication(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	w, resp := doJSON(t, srv, http.MethodGet, "/api/messages/conversations", "", nil)
	req.Equal(http.StatusUnauthorized, w.Code)
	req.Equal(false, resp["success"])
}
