// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"

	"github.com/jeranaias/gemchat/internal/model"
)

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-1.5-flash"

// PlaceholderAPIKey is the value shipped in sample configuration; it is
// treated the same as a missing key.
const PlaceholderAPIKey = "your_gemini_api_key_here"

// Generation holds the sampling settings sent with every request.
var Generation = struct {
	MaxOutputTokens int32
	Temperature     float32
	TopP            float32
	TopK            float32
}{
	MaxOutputTokens: 8192,
	Temperature:     0.9,
	TopP:            0.95,
	TopK:            40,
}

// Chunk is one step of a streamed reply. Text is cumulative.
type Chunk struct {
	Text     string
	Complete bool
}

// ChunkFunc receives chunks in emission order on the streaming goroutine.
type ChunkFunc func(Chunk)

// Streamer produces an assistant reply for a conversation.
type Streamer interface {
	// Stream sends history, whose last element is the new user turn, and
	// calls onChunk for each cumulative chunk. It returns nil after the
	// complete chunk, the context's cause if ctx ends first, or an error.
	Stream(ctx context.Context, history []model.Message, onChunk ChunkFunc) error

	// Model names the model replies come from.
	Model() string
}
