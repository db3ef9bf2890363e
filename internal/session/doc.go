// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the pure operations on chat sessions: create, append a
// message, rename, and derive a title from the opening message.
//
// None of the operations mutate their input. Each returns a new
// model.ChatSession whose message slice shares nothing with the original, so a
// caller may keep handing the old value to a renderer while the new one is
// persisted.
package session
