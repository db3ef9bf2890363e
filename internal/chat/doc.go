// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat coordinates sessions, streaming replies and persistence.
//
// State is a plain value and Reduce is the only way it changes, so every
// transition can be tested without a model or a terminal. Controller owns the
// current State, runs one turn at a time against an llm.Streamer, and hands
// every new session collection to a Persister.
//
// # Turn lifecycle
//
//  1. SendMessage appends the user's message to the active session (creating
//     one if needed) and fixes that session as the turn's target.
//  2. Streamed chunks update State.Streaming.
//  3. The complete reply, or "Error: <reason>" on failure, is appended to the
//     target session by ID, even if the user has since switched sessions.
//
// Deleting the target session mid-turn cancels the stream and nothing is
// appended. CancelTurn and the idle timeout cancel it with an error message.
package chat
