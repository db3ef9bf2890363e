// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes chat sessions out as Markdown or JSON.
//
// # Key Types
//
//   - Exporter: converts one session to bytes
//   - MarkdownExporter: human-readable transcript with YAML frontmatter
//   - JSONExporter: the session in its stored JSON shape
//
// # Usage
//
//	exp, err := export.ForFormat("md", nil)
//	if err != nil {
//	    return err
//	}
//	path, err := export.ToFile(session, exp, "./exports")
package export
