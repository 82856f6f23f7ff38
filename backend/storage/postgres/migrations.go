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

func (s *Store) Migrate() error {
	migrations := []string{
		// Messages table: append-only, read_at is the single mutable field.
		// participants is stored redundantly for membership queries.
		`CREATE TABLE IF NOT EXISTS messages (
			message_id VARCHAR(255) PRIMARY KEY,
			conversation_key VARCHAR(511) NOT NULL,
			sender_id VARCHAR(255) NOT NULL,
			receiver_id VARCHAR(255) NOT NULL,
			participants TEXT[] NOT NULL,
			content VARCHAR(4000) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			read_at TIMESTAMPTZ,
			CONSTRAINT distinct_participants CHECK (sender_id <> receiver_id)
		)`,

		// Thread history: newest-first scans within one conversation.
		`CREATE INDEX IF NOT EXISTS idx_messages_thread
		ON messages(conversation_key, created_at DESC)`,

		// Unread badge and per-conversation unread counts.
		`CREATE INDEX IF NOT EXISTS idx_messages_unread
		ON messages(receiver_id)
		WHERE read_at IS NULL`,

		// Conversation listings filter on participant membership.
		`CREATE INDEX IF NOT EXISTS idx_messages_participants
		ON messages USING GIN (participants)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
