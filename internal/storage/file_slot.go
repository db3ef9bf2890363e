// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"crypto/sha256"
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/jeranaias/gemchat/internal/util"
)

// FileSlot keeps the document in a single JSON file.
type FileSlot struct {
	path string

	// Hashes of the most recent writes by this slot, for Watch.
	mu     sync.Mutex
	recent [4][sha256.Size]byte
	writes int
}

// NewFileSlot returns a slot backed by the file at path. The file and its
// directory are created on first Set.
func NewFileSlot(path string) *FileSlot {
	return &FileSlot{path: path}
}

// Path returns the backing file path.
func (s *FileSlot) Path() string {
	return s.path
}

// Get reads the file. A missing or empty file is ErrSlotEmpty.
func (s *FileSlot) Get(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrSlotEmpty
	}
	return data, nil
}

// Set atomically replaces the file with data.
func (s *FileSlot) Set(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Record before writing so a watcher that sees the rename first still
	// recognises the content as ours.
	s.mu.Lock()
	s.recent[s.writes%len(s.recent)] = sha256.Sum256(data)
	s.writes++
	s.mu.Unlock()

	return util.AtomicWriteFile(s.path, data, 0o600)
}

// Close is a no-op.
func (s *FileSlot) Close() error {
	return nil
}

// isOwnWrite reports whether data matches one of this slot's recent writes.
func (s *FileSlot) isOwnWrite(data []byte) bool {
	sum := sha256.Sum256(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(s.writes, len(s.recent))
	for i := 0; i < n; i++ {
		if s.recent[i] == sum {
			return true
		}
	}
	return false
}
