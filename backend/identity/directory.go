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

// Package identity resolves platform users. The identity provider owns the
// user records; the messaging core only looks them up to verify receivers
// exist and to label conversation summaries.
package identity

import (
	"context"
	"sync"

	"github.com/Munzer2/Jobathon/backend/models"
)

// Directory looks up a platform user by ID. Unknown users are
// models.ErrNotFound.
type Directory interface {
	Lookup(ctx context.Context, userID string) (*models.User, error)
}

// StaticDirectory is a fixture-backed directory for local mode and tests.
type StaticDirectory struct {
	mu    sync.RWMutex
	users map[string]models.User
}

func NewStaticDirectory(users ...models.User) *StaticDirectory {
	d := &StaticDirectory{users: make(map[string]models.User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *StaticDirectory) Add(u models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *StaticDirectory) Lookup(ctx context.Context, userID string) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := u
	return &cp, nil
}
