// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"iter"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/jeranaias/gemchat/internal/model"
)

// contentStreamer is the part of *genai.Models the client uses.
type contentStreamer interface {
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	APIKey string
	Model  string

	// KeySetting names where the key comes from, for error messages.
	KeySetting string
}

// GeminiClient streams replies from the Gemini API.
type GeminiClient struct {
	models   contentStreamer
	model    string
	setupErr error
	log      *zap.Logger
}

// NewGeminiClient builds a client. A missing or placeholder API key does not
// fail construction: the returned client reports a *ConfigurationError from
// SetupErr and from every Stream call.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, log *zap.Logger) *GeminiClient {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.KeySetting == "" {
		cfg.KeySetting = "GEMCHAT_API_KEY"
	}

	c := &GeminiClient{model: cfg.Model, log: log.Named("gemini")}

	key := strings.TrimSpace(cfg.APIKey)
	if key == "" || key == PlaceholderAPIKey {
		c.setupErr = missingKeyError(cfg.KeySetting)
		return c
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		c.setupErr = &ConfigurationError{Setting: cfg.KeySetting, Message: "could not initialise Gemini client: " + err.Error()}
		return c
	}
	c.models = client.Models
	return c
}

// SetupErr returns the error found at construction, if any.
func (c *GeminiClient) SetupErr() error {
	return c.setupErr
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string {
	return c.model
}

// Stream implements Streamer.
func (c *GeminiClient) Stream(ctx context.Context, history []model.Message, onChunk ChunkFunc) error {
	if c.setupErr != nil {
		return c.setupErr
	}
	if len(history) == 0 {
		return &ProviderError{Provider: ProviderGemini, Kind: KindUnknown, Message: "nothing to send"}
	}

	contents := toGeminiContents(history)
	acc := NewAccumulator(onChunk)

	c.log.Debug("starting stream", zap.String("model", c.model), zap.Int("messages", len(contents)))
	for resp, err := range c.models.GenerateContentStream(ctx, c.model, contents, geminiGenerationConfig()) {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		if err != nil {
			return &ProviderError{Provider: ProviderGemini, Kind: KindRemote, Message: "stream failed", Cause: err}
		}
		if resp == nil {
			continue
		}
		if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
			return &ProviderError{Provider: ProviderGemini, Kind: KindRemote, Message: "prompt blocked: " + string(fb.BlockReason)}
		}
		acc.Add(resp.Text())
	}
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}

	acc.Finish()
	c.log.Debug("stream complete", zap.Int("chars", len(acc.Text())))
	return nil
}

// toGeminiContents maps the conversation onto Gemini roles. Earlier turns
// form the chat history and the final message is the new user turn.
func toGeminiContents(history []model.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history[:len(history)-1] {
		var role genai.Role
		switch msg.Role {
		case model.RoleAssistant:
			role = genai.RoleModel
		default:
			role = genai.RoleUser
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	last := history[len(history)-1]
	return append(contents, genai.NewContentFromText(last.Content, genai.RoleUser))
}

func geminiGenerationConfig() *genai.GenerateContentConfig {
	temp, topP, topK := Generation.Temperature, Generation.TopP, Generation.TopK
	return &genai.GenerateContentConfig{
		MaxOutputTokens: Generation.MaxOutputTokens,
		Temperature:     &temp,
		TopP:            &topP,
		TopK:            &topK,
	}
}
