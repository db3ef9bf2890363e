// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
//
// These are plain values. A Message never changes after it is created and a
// ChatSession is only ever replaced, never edited in place; the session
// package owns the operations that produce new values.
//
// # Key Types
//
//   - ChatSession: a titled conversation with its ordered messages
//   - Message: one turn, authored by the user or the assistant
//   - Role: message author (user, assistant)
//
// The JSON encoding uses camelCase field names so a sessions document written
// by gemchat has the same shape as the browser client's localStorage entry.
package model
