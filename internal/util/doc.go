// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by gemchat packages.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file replacement (temp file, fsync, rename)
//   - TruncateRunes: UTF-8 safe truncation with an ellipsis
//   - TruncateWidth: truncation by terminal display width
//   - ExpandHome: resolve a leading "~/" against the user's home directory
package util
