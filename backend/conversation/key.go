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

// Package conversation owns the canonical identity of a two-party message
// thread. Every write path and every read path must derive the key through
// this package; no other component may re-implement the derivation.
package conversation

import (
	"strings"

	"github.com/Munzer2/Jobathon/backend/models"
)

// Separator joins the two sorted participant IDs into one key.
const Separator = ":"

// Key derives the canonical conversation key for the unordered pair {a, b}.
// It is commutative: Key(a, b) == Key(b, a). Deriving a key for a user and
// themselves is invalid.
func Key(a, b string) (string, error) {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" || a == b {
		return "", models.ErrInvalidParticipants
	}
	if a > b {
		a, b = b, a
	}
	return a + Separator + b, nil
}

// Participant reports whether user is one of the two ends of key. Used by
// the push channel to authorize join requests without a store round trip.
func Participant(key, user string) bool {
	if user == "" {
		return false
	}
	return strings.HasPrefix(key, user+Separator) || strings.HasSuffix(key, Separator+user)
}
