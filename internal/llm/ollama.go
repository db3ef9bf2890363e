// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/gemchat/internal/model"
)

// DefaultOllamaURL is the address of a local Ollama server.
const DefaultOllamaURL = "http://127.0.0.1:11434"

// =============================================================================
// WIRE TYPES
// =============================================================================

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
	TopP        float32 `json:"top_p"`
	TopK        int     `json:"top_k"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaStreamLine struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// =============================================================================
// CLIENT
// =============================================================================

// OllamaConfig configures an OllamaClient.
type OllamaConfig struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// OllamaClient streams replies from an Ollama server.
type OllamaClient struct {
	baseURL string
	model   string
	http    *http.Client
	log     *zap.Logger
}

// NewOllamaClient returns a client for the server at cfg.BaseURL.
func NewOllamaClient(cfg OllamaConfig, log *zap.Logger) *OllamaClient {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaURL
	}
	if cfg.HTTPClient == nil {
		// No client timeout: streams are bounded by the caller's context.
		cfg.HTTPClient = &http.Client{}
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		http:    cfg.HTTPClient,
		log:     log.Named("ollama"),
	}
}

// Model returns the configured model name.
func (c *OllamaClient) Model() string {
	return c.model
}

// Stream implements Streamer.
func (c *OllamaClient) Stream(ctx context.Context, history []model.Message, onChunk ChunkFunc) error {
	if c.model == "" {
		return &ConfigurationError{Setting: "provider.model", Message: "no Ollama model configured"}
	}

	body, err := json.Marshal(ollamaChatRequest{
		Model:    c.model,
		Messages: toOllamaMessages(history),
		Stream:   true,
		Options: ollamaOptions{
			Temperature: Generation.Temperature,
			TopP:        Generation.TopP,
			TopK:        int(Generation.TopK),
			NumPredict:  int(Generation.MaxOutputTokens),
		},
	})
	if err != nil {
		return &ProviderError{Provider: ProviderOllama, Kind: KindUnknown, Message: "failed to encode request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return &ProviderError{Provider: ProviderOllama, Kind: KindTransport, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		return &ProviderError{Provider: ProviderOllama, Kind: KindTransport, Message: "could not reach " + c.baseURL, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	return c.readStream(ctx, resp.Body, NewAccumulator(onChunk))
}

// readStream consumes NDJSON lines until the done line.
func (c *OllamaClient) readStream(ctx context.Context, r io.Reader, acc *Accumulator) error {
	reader := bufio.NewReader(r)
	for {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}

		line, readErr := reader.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var msg ollamaStreamLine
			if err := json.Unmarshal(line, &msg); err != nil {
				return &ProviderError{Provider: ProviderOllama, Kind: KindMalformed, Message: "malformed stream line", Cause: err}
			}
			if msg.Error != "" {
				return &ProviderError{Provider: ProviderOllama, Kind: KindRemote, Message: msg.Error}
			}
			acc.Add(msg.Message.Content)
			if msg.Done {
				acc.Finish()
				return nil
			}
		}

		if readErr != nil {
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			if errors.Is(readErr, io.EOF) {
				return errIncomplete(ProviderOllama)
			}
			return &ProviderError{Provider: ProviderOllama, Kind: KindTransport, Message: "stream interrupted", Cause: readErr}
		}
	}
}

func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	msg := "request failed: " + resp.Status
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil && body.Error != "" {
		msg = fmt.Sprintf("%s (%s)", body.Error, resp.Status)
	}
	return &ProviderError{Provider: ProviderOllama, Kind: KindStatus, StatusCode: resp.StatusCode, Message: msg}
}

func toOllamaMessages(history []model.Message) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(history))
	for _, msg := range history {
		out = append(out, ollamaMessage{Role: string(msg.Role), Content: msg.Content})
	}
	return out
}
