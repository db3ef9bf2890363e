// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists the chat session collection for gemchat.
//
// The whole collection is stored as one JSON document under a single key in a
// Slot. Every save replaces the document, so the last writer wins. Loading
// is fail-soft: a missing, unreadable or malformed document yields an empty
// collection and a logged warning, never an error.
//
// # Backends
//
//   - file:   a JSON file replaced atomically on each save (default)
//   - sqlite: a one-row key/value table in a local SQLite database
//   - redis:  a single Redis string key
//   - memory: an in-process cache; nothing survives a restart
//
// # Usage
//
//	slot, err := storage.Open(ctx, storage.Options{Backend: storage.BackendFile, Path: path})
//	store := storage.NewStore(slot, logger)
//	sessions := store.Load(ctx)
//	store.Save(ctx, sessions)
//
// AsyncWriter wraps a Store for callers that must not block on disk or
// network while persisting.
package storage
