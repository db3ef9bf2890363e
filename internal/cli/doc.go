// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli parses gemchat's command line and runs its commands.
//
// # Commands
//
//   - (none): the chat TUI, or the line REPL when not on a terminal
//   - chat: line-mode REPL with /new, /list, /switch, /delete
//   - sessions: list, show, export, delete stored sessions
//   - config: show, path, init
//   - version, help
//
// App wires configuration, logging, storage and the model provider into a
// chat.Controller shared by the TUI and the REPL.
package cli
