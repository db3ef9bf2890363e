// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llm streams assistant replies from a remote model.
//
// A Streamer sends the conversation so far and reports the reply through a
// callback as cumulative Chunks: each chunk carries the full text produced so
// far, and exactly one chunk, the last, has Complete set. A Streamer reports
// failures by returning an error, and emits no chunks after one.
//
// # Providers
//
//   - GeminiClient: Google Gemini via google.golang.org/genai
//   - OllamaClient: a local Ollama server via its NDJSON /api/chat stream
//
// Both send the same fixed generation settings (see Generation).
package llm
