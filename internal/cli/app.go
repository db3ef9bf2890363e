// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/gemchat/internal/chat"
	"github.com/jeranaias/gemchat/internal/config"
	"github.com/jeranaias/gemchat/internal/llm"
	"github.com/jeranaias/gemchat/internal/logging"
	"github.com/jeranaias/gemchat/internal/storage"
)

// =============================================================================
// APP
// =============================================================================

// App holds the long-lived pieces a command needs: configuration, the file
// logger and the session store. StartChat adds the model provider and the
// chat controller.
type App struct {
	Config *config.Config
	Log    *zap.Logger
	Store  *storage.Store

	// Set by StartChat.
	Ctrl   *chat.Controller
	writer *storage.AsyncWriter

	logCleanup func()
	closeOnce  sync.Once
}

// closeWait bounds how long Close waits for a cancelled reply.
const closeWait = 5 * time.Second

// LoadConfig reads the configuration file named by args (or the default
// path) and applies the global flags on top of it.
func LoadConfig(args Args) (*config.Config, error) {
	cfg, err := config.Load(args.ConfigPath)
	if err != nil {
		return nil, err
	}
	err = cfg.ApplyOverrides(config.Overrides{
		Provider: args.Provider,
		Model:    args.Model,
		Storage:  args.Storage,
		Theme:    args.Theme,
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewApp loads configuration, starts logging and opens the session store.
func NewApp(ctx context.Context, args Args) (*App, error) {
	cfg, err := LoadConfig(args)
	if err != nil {
		return nil, err
	}

	log, cleanup, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to start logging: %w", err)
	}

	slot, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}

	log.Info("gemchat starting",
		zap.String("version", Version),
		zap.String("provider", cfg.Provider.Name),
		zap.String("model", cfg.Provider.Model),
		zap.String("storage", storage.BackendName(slot)))

	return &App{
		Config:     cfg,
		Log:        log,
		Store:      storage.NewStore(slot, log),
		logCleanup: cleanup,
	}, nil
}

// StartChat builds the configured model provider and a controller loaded
// with the stored sessions.
func (a *App) StartChat(ctx context.Context) error {
	return a.startChat(ctx, a.newStreamer(ctx))
}

func (a *App) startChat(ctx context.Context, streamer llm.Streamer) error {
	if a.Ctrl != nil {
		return nil
	}
	a.writer = storage.NewAsyncWriter(a.Store)
	a.Ctrl = chat.New(chat.Options{
		Streamer:    streamer,
		Loader:      a.Store,
		Persister:   a.writer,
		Logger:      a.Log,
		IdleTimeout: a.Config.IdleTimeout(),
	})
	a.Ctrl.Load(ctx)
	return nil
}

// newStreamer returns the client for the configured provider. A Gemini
// client without a usable key is still returned; its error surfaces as an
// assistant message on the first send.
func (a *App) newStreamer(ctx context.Context) llm.Streamer {
	p := a.Config.Provider
	switch p.Name {
	case llm.ProviderOllama:
		return llm.NewOllamaClient(llm.OllamaConfig{BaseURL: p.OllamaURL, Model: p.Model}, a.Log)
	default:
		client := llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:     p.APIKey,
			Model:      p.Model,
			KeySetting: "GEMCHAT_API_KEY",
		}, a.Log)
		if err := client.SetupErr(); err != nil {
			a.Log.Warn("gemini client not ready", zap.Error(err))
		}
		return client
	}
}

// StartWatch reports writes to the sessions file by other processes. It only
// applies to the file backend and does nothing when storage.watch is off.
func (a *App) StartWatch(ctx context.Context, onChange func()) {
	if !a.Config.Storage.Watch {
		return
	}
	slot, ok := a.Store.Slot().(*storage.FileSlot)
	if !ok {
		return
	}
	if err := storage.Watch(ctx, slot, a.Log, onChange); err != nil {
		a.Log.Warn("could not watch sessions file", zap.Error(err))
	}
}

// Close cancels any in-flight reply, waits up to closeWait for its outcome to
// be recorded, then flushes pending writes and closes the store and logger.
// Calls after the first do nothing.
func (a *App) Close() {
	a.closeOnce.Do(a.close)
}

func (a *App) close() {
	if a.Ctrl != nil {
		a.Ctrl.CancelTurn()
		ctx, cancel := context.WithTimeout(context.Background(), closeWait)
		if err := a.Ctrl.Wait(ctx); err != nil {
			a.Log.Warn("gave up waiting for the reply to finish", zap.Error(err))
		}
		cancel()
	}
	if a.writer != nil {
		a.writer.Close()
	}
	if err := a.Store.Close(); err != nil {
		a.Log.Warn("failed to close session storage", zap.Error(err))
	}
	a.Log.Info("gemchat stopped")
	if a.logCleanup != nil {
		a.logCleanup()
	}
}
