// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSlot keeps the document in a single Redis string key with no expiry.
type RedisSlot struct {
	client *redis.Client
	key    string
}

// OpenRedisSlot connects to the server at url (redis://[:password@]host:port/db)
// and verifies the connection with PING.
func OpenRedisSlot(ctx context.Context, url, key string) (*RedisSlot, error) {
	if url == "" {
		return nil, fmt.Errorf("storage: redis backend needs a URL")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisSlot{client: client, key: key}, nil
}

// Get returns the value of the key.
func (s *RedisSlot) Get(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSlotEmpty
	}
	return data, err
}

// Set replaces the value of the key.
func (s *RedisSlot) Set(ctx context.Context, data []byte) error {
	return s.client.Set(ctx, s.key, data, 0).Err()
}

// Close closes the client connection pool.
func (s *RedisSlot) Close() error {
	return s.client.Close()
}
