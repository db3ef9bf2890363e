// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads gemchat's configuration.
//
// Settings come from, in increasing precedence:
//   - built-in defaults (Default)
//   - ~/.gemchat/config.toml, or the file named by --config
//   - environment variables (see ApplyEnvOverrides)
//   - command-line flags, applied by the cli package
//
// Paths may start with "~/" and are expanded when used.
package config
