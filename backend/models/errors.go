// Copyright (C) 2025 Jobathon
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package models

import "errors"

// Kind classifies an error for callers. Every error that crosses a service
// boundary (REST response or socket event) carries one of these.
type Kind string

const (
	KindInvalidParticipants Kind = "invalid_participants"
	KindInvalidContent      Kind = "invalid_content"
	KindNotFound            Kind = "not_found"
	KindUnauthenticated     Kind = "unauthenticated"
	KindUnauthorized        Kind = "unauthorized"
	KindServerError         Kind = "server_error"
)

// Error is a structured error: a machine-readable kind plus a human message.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// E builds a structured error.
func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

var (
	ErrInvalidParticipants = E(KindInvalidParticipants, "sender and receiver must be two different users")
	ErrInvalidContent      = E(KindInvalidContent, "message content must be non-empty and at most 4000 characters")
	ErrNotFound            = E(KindNotFound, "not found")
	ErrUnauthenticated     = E(KindUnauthenticated, "authentication required")
	ErrUnauthorized        = E(KindUnauthorized, "not allowed")
)

// ErrorKind extracts the kind from an error chain. Anything that is not a
// structured *Error is treated as a server error.
func ErrorKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindServerError
}
