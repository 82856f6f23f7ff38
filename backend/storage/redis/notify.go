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

// Package redis bridges message fan-out across server instances. The
// durable copy of every message lives in Postgres; Redis only carries the
// "a message was just persisted" notification to whichever instances hold
// open sockets for that conversation.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/Munzer2/Jobathon/backend/models"
)

// Channel prefix: msg:notify:{conversationKey}
const notifyPrefix = "msg:notify:"

type Broadcaster struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewBroadcaster(rdb *redis.Client, log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{rdb: rdb, log: log}
}

// Publish announces a freshly persisted message to every subscribed
// instance, including this one.
func (b *Broadcaster) Publish(ctx context.Context, conversationKey string, msg *models.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := b.rdb.Publish(ctx, notifyPrefix+conversationKey, data).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Subscribe delivers every published message to handle until ctx is done.
// Malformed payloads are logged and skipped.
func (b *Broadcaster) Subscribe(ctx context.Context, handle func(conversationKey string, msg *models.Message)) {
	sub := b.rdb.PSubscribe(ctx, notifyPrefix+"*")

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var msg models.Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					b.log.Warn("dropping malformed notification", "channel", m.Channel, "error", err)
					continue
				}
				handle(strings.TrimPrefix(m.Channel, notifyPrefix), &msg)
			}
		}
	}()
}
