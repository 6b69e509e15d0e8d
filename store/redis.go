/*
fixengine — FIX protocol engine
Copyright (C) 2025 Steve Clarke <stephenlclarke@mac.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.

In accordance with section 13 of the AGPL, if you modify this program,
your modified version must prominently offer all users interacting with it
remotely through a computer network an opportunity to receive the source
code of your version.
*/
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stephenlclarke/fixengine/fix"
)

// RedisFactory keeps session stores in Redis.
type RedisFactory struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisFactory uses client for every store. timeout bounds each Redis
// round trip; zero means five seconds.
func NewRedisFactory(client *redis.Client, timeout time.Duration) *RedisFactory {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RedisFactory{client: client, timeout: timeout}
}

func (f *RedisFactory) Create(id fix.SessionID) (MessageStore, error) {
	s := &RedisStore{
		client:   f.client,
		timeout:  f.timeout,
		stateKey: fmt.Sprintf("fixengine:{%s}:state", id),
		msgsKey:  fmt.Sprintf("fixengine:{%s}:messages", id),
	}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the client.
func (f *RedisFactory) Close() error { return f.client.Close() }

// RedisStore keeps sequence numbers and creation time in one hash and the
// messages in another, keyed by sequence number.
type RedisStore struct {
	seqCache
	client   *redis.Client
	timeout  time.Duration
	stateKey string
	msgsKey  string
}

func (s *RedisStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Refresh reloads the state hash, creating it on first use.
func (s *RedisStore) Refresh() error {
	ctx, cancel := s.ctx()
	defer cancel()

	vals, err := s.client.HGetAll(ctx, s.stateKey).Result()
	if err != nil {
		return fmt.Errorf("redis store %s: %w", s.stateKey, err)
	}
	if len(vals) == 0 {
		s.seqCache = newSeqCache()
		return s.writeState(ctx)
	}
	cache := seqCache{}
	if cache.senderSeq, err = strconv.Atoi(vals["sender"]); err != nil {
		return fmt.Errorf("redis store %s: sender seq: %w", s.stateKey, err)
	}
	if cache.targetSeq, err = strconv.Atoi(vals["target"]); err != nil {
		return fmt.Errorf("redis store %s: target seq: %w", s.stateKey, err)
	}
	if cache.creationTime, err = time.Parse(time.RFC3339Nano, vals["created"]); err != nil {
		return fmt.Errorf("redis store %s: creation time: %w", s.stateKey, err)
	}
	s.seqCache = cache
	return nil
}

func (s *RedisStore) writeState(ctx context.Context) error {
	return s.client.HSet(ctx, s.stateKey,
		"sender", s.senderSeq,
		"target", s.targetSeq,
		"created", s.creationTime.Format(time.RFC3339Nano),
	).Err()
}

func (s *RedisStore) setField(field string, n int) error {
	ctx, cancel := s.ctx()
	defer cancel()
	return s.client.HSet(ctx, s.stateKey, field, n).Err()
}

func (s *RedisStore) SetNextSenderMsgSeqNum(next int) error {
	if err := s.setField("sender", next); err != nil {
		return err
	}
	s.senderSeq = next
	return nil
}

func (s *RedisStore) SetNextTargetMsgSeqNum(next int) error {
	if err := s.setField("target", next); err != nil {
		return err
	}
	s.targetSeq = next
	return nil
}

func (s *RedisStore) IncrNextSenderMsgSeqNum() error {
	return s.SetNextSenderMsgSeqNum(s.senderSeq + 1)
}

func (s *RedisStore) IncrNextTargetMsgSeqNum() error {
	return s.SetNextTargetMsgSeqNum(s.targetSeq + 1)
}

func (s *RedisStore) SaveMessage(seqNum int, raw string) (bool, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	return s.client.HSetNX(ctx, s.msgsKey, strconv.Itoa(seqNum), raw).Result()
}

func (s *RedisStore) GetMessages(begin, end int) ([]string, error) {
	if end < begin {
		return nil, nil
	}
	ctx, cancel := s.ctx()
	defer cancel()

	fields := make([]string, 0, end-begin+1)
	for seq := begin; seq <= end; seq++ {
		fields = append(fields, strconv.Itoa(seq))
	}
	vals, err := s.client.HMGet(ctx, s.msgsKey, fields...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	var out []string
	for _, v := range vals {
		if raw, ok := v.(string); ok {
			out = append(out, raw)
		}
	}
	return out, nil
}

func (s *RedisStore) Reset() error {
	ctx, cancel := s.ctx()
	defer cancel()

	fresh := newSeqCache()
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.msgsKey)
		p.HSet(ctx, s.stateKey,
			"sender", fresh.senderSeq,
			"target", fresh.targetSeq,
			"created", fresh.creationTime.Format(time.RFC3339Nano),
		)
		return nil
	})
	if err != nil {
		return err
	}
	s.seqCache = fresh
	return nil
}

// Close is a no-op; the client belongs to the factory.
func (s *RedisStore) Close() error { return nil }
