// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the Bubble Tea chat screen.
//
// The screen is a thin view over the chat controller. Key presses become
// controller calls, and controller state changes come back through a
// subscription that wakes the Bubble Tea loop. The model never changes
// sessions itself.
//
// Layout, top to bottom:
//   - header: app name and active session title
//   - body: session sidebar (hidden below 60 columns) and the transcript
//   - input box
//   - status bar: model, turn state, key hints
package chat
