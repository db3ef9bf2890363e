// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/jeranaias/gemchat/internal/util"
)

// DefaultKey is the storage key the sessions document is kept under. It
// matches the browser client's localStorage key.
const DefaultKey = "ai-chatbot-sessions"

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// ErrSlotEmpty is returned by Slot.Get when nothing has been stored yet.
var ErrSlotEmpty = errors.New("storage: slot is empty")

// Slot is a single durable key/value cell holding the encoded sessions
// document.
type Slot interface {
	// Get returns the stored document or ErrSlotEmpty.
	Get(ctx context.Context) ([]byte, error)

	// Set replaces the stored document.
	Set(ctx context.Context, data []byte) error

	// Close releases any connection or handle held by the slot.
	Close() error
}

// =============================================================================
// ERRORS
// =============================================================================

// PersistenceError reports a failed read or write of the sessions document.
type PersistenceError struct {
	Op      string // "load" or "save"
	Backend string
	Err     error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage: %s via %s: %v", e.Op, e.Backend, e.Err)
}

// Unwrap returns the underlying cause.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// =============================================================================
// OPEN
// =============================================================================

// Options selects and configures a backend.
type Options struct {
	Backend    string
	Key        string
	Path       string // file backend
	SQLitePath string // sqlite backend
	RedisURL   string // redis backend
}

// Open constructs the Slot named by opts.Backend. An empty backend means file.
func Open(ctx context.Context, opts Options) (Slot, error) {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}

	switch opts.Backend {
	case "", BackendFile:
		path := opts.Path
		if path == "" {
			return nil, fmt.Errorf("storage: file backend needs a path")
		}
		return NewFileSlot(util.ExpandHome(path)), nil
	case BackendSQLite:
		path := opts.SQLitePath
		if path == "" && opts.Path != "" {
			path = filepath.Join(filepath.Dir(util.ExpandHome(opts.Path)), "sessions.db")
		}
		if path == "" {
			return nil, fmt.Errorf("storage: sqlite backend needs a path")
		}
		return OpenSQLiteSlot(ctx, util.ExpandHome(path), opts.Key)
	case BackendRedis:
		return OpenRedisSlot(ctx, opts.RedisURL, opts.Key)
	case BackendMemory:
		return NewMemorySlot(opts.Key), nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", opts.Backend)
	}
}

// BackendName returns the backend name of a slot for log fields.
func BackendName(slot Slot) string {
	switch slot.(type) {
	case *FileSlot:
		return BackendFile
	case *SQLiteSlot:
		return BackendSQLite
	case *RedisSlot:
		return BackendRedis
	case *MemorySlot:
		return BackendMemory
	default:
		return fmt.Sprintf("%T", slot)
	}
}
