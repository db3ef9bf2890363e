// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components renders the pieces of the chat screen.
//
// # Key Types
//
//   - MarkdownRenderer: glamour rendering of finished replies, cached per width
//   - SessionList: the sidebar of sessions
//
// # Key Functions
//
//   - HighlightFences: chroma highlighting of ``` code in a partial reply
//   - RenderMessage: one transcript entry with its role label
//   - RenderStatusBar: model name, turn state and key hints
package components
