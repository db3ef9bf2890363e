// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/jeranaias/gemchat/internal/model"
)

// =============================================================================
// SESSION STORE
// =============================================================================

// Store loads and saves the full session collection through a Slot.
type Store struct {
	slot    Slot
	backend string
	log     *zap.Logger
}

// NewStore wraps slot. A nil logger discards log output.
func NewStore(slot Slot, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	backend := BackendName(slot)
	return &Store{
		slot:    slot,
		backend: backend,
		log:     log.Named("storage").With(zap.String("backend", backend)),
	}
}

// Slot returns the underlying slot.
func (s *Store) Slot() Slot {
	return s.slot
}

// Load returns the stored sessions in stored order. It never fails: an
// absent document, a read error or undecodable JSON all yield an empty,
// non-nil slice. Entries without an ID and repeated IDs are dropped.
func (s *Store) Load(ctx context.Context) []model.ChatSession {
	data, err := s.slot.Get(ctx)
	if errors.Is(err, ErrSlotEmpty) {
		return []model.ChatSession{}
	}
	if err != nil {
		s.log.Warn("could not read sessions, starting empty",
			zap.Error(&PersistenceError{Op: "load", Backend: s.backend, Err: err}))
		return []model.ChatSession{}
	}

	var decoded []model.ChatSession
	if err := json.Unmarshal(data, &decoded); err != nil {
		s.log.Warn("sessions document is malformed, starting empty",
			zap.Int("bytes", len(data)),
			zap.Error(err))
		return []model.ChatSession{}
	}

	sessions := make([]model.ChatSession, 0, len(decoded))
	seen := make(map[string]bool, len(decoded))
	for _, sess := range decoded {
		if sess.ID == "" || seen[sess.ID] {
			s.log.Warn("dropping session with missing or duplicate id", zap.String("title", sess.Title))
			continue
		}
		seen[sess.ID] = true
		if sess.Messages == nil {
			sess.Messages = []model.Message{}
		}
		sessions = append(sessions, sess)
	}

	s.log.Debug("sessions loaded", zap.Int("count", len(sessions)))
	return sessions
}

// Commit encodes and writes the whole collection, returning a
// *PersistenceError on failure.
func (s *Store) Commit(ctx context.Context, sessions []model.ChatSession) error {
	if sessions == nil {
		sessions = []model.ChatSession{}
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		return &PersistenceError{Op: "save", Backend: s.backend, Err: err}
	}
	if err := s.slot.Set(ctx, data); err != nil {
		return &PersistenceError{Op: "save", Backend: s.backend, Err: err}
	}
	return nil
}

// Save writes the whole collection. Failures are logged and swallowed; the
// in-memory collection stays authoritative and there is no retry.
func (s *Store) Save(ctx context.Context, sessions []model.ChatSession) {
	if err := s.Commit(ctx, sessions); err != nil {
		s.log.Error("failed to save sessions", zap.Int("count", len(sessions)), zap.Error(err))
		return
	}
	s.log.Debug("sessions saved", zap.Int("count", len(sessions)))
}

// Persist saves synchronously with a background context.
func (s *Store) Persist(sessions []model.ChatSession) {
	s.Save(context.Background(), sessions)
}

// Close closes the slot.
func (s *Store) Close() error {
	return s.slot.Close()
}
