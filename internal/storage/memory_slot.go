// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"context"

	"github.com/patrickmn/go-cache"
)

// MemorySlot keeps the document in process memory. Used for --storage memory
// and in tests.
type MemorySlot struct {
	c   *cache.Cache
	key string
}

// NewMemorySlot returns an empty in-memory slot.
func NewMemorySlot(key string) *MemorySlot {
	return &MemorySlot{
		c:   cache.New(cache.NoExpiration, 0),
		key: key,
	}
}

// Get returns a copy of the stored document.
func (s *MemorySlot) Get(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := s.c.Get(s.key)
	if !ok {
		return nil, ErrSlotEmpty
	}
	return bytes.Clone(v.([]byte)), nil
}

// Set stores a copy of data.
func (s *MemorySlot) Set(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.c.Set(s.key, bytes.Clone(data), cache.NoExpiration)
	return nil
}

// Close discards the stored document.
func (s *MemorySlot) Close() error {
	s.c.Flush()
	return nil
}
