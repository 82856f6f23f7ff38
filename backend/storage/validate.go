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

package storage

import (
	"strings"
	"unicode/utf8"

	"github.com/Munzer2/Jobathon/backend/models"
)

// NormalizeContent trims the message body and enforces the length bounds.
// Both store backends call this so validation cannot diverge between them.
// The bound counts characters, not bytes.
func NormalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > MaxContentLength {
		return "", models.ErrInvalidContent
	}
	return content, nil
}

// ClampThreadLimit applies the default and maximum page size for thread
// history fetches.
func ClampThreadLimit(limit int) int {
	if limit <= 0 {
		return DefaultThreadLimit
	}
	if limit > MaxThreadLimit {
		return MaxThreadLimit
	}
	return limit
}

// ClampConversationLimit applies the default cap for conversation listings.
func ClampConversationLimit(limit int) int {
	if limit <= 0 || limit > DefaultConversationLimit {
		return DefaultConversationLimit
	}
	return limit
}
