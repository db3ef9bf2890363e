// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jeranaias/gemchat/internal/config"
	"github.com/jeranaias/gemchat/internal/llm"
	"github.com/jeranaias/gemchat/internal/model"
	"github.com/jeranaias/gemchat/internal/storage"
)

var ansiRE = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func plain(s string) string {
	return ansiRE.ReplaceAllString(s, "")
}

// =============================================================================
// FIXTURES
// =============================================================================

type echoStreamer struct{}

func (echoStreamer) Model() string { return "echo-1" }

func (echoStreamer) Stream(_ context.Context, history []model.Message, onChunk llm.ChunkFunc) error {
	last := history[len(history)-1].Content
	onChunk(llm.Chunk{Text: "echo:"})
	onChunk(llm.Chunk{Text: "echo: " + last, Complete: true})
	return nil
}

// blockingStreamer emits one chunk and then waits to be cancelled.
type blockingStreamer struct{ started chan struct{} }

func (blockingStreamer) Model() string { return "slow-1" }

func (b blockingStreamer) Stream(ctx context.Context, _ []model.Message, onChunk llm.ChunkFunc) error {
	onChunk(llm.Chunk{Text: "partial"})
	close(b.started)
	<-ctx.Done()
	return context.Cause(ctx)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GEMCHAT_PROVIDER", "GEMCHAT_MODEL", "GEMCHAT_API_KEY", "GEMINI_API_KEY",
		"GEMCHAT_OLLAMA_URL", "GEMCHAT_IDLE_TIMEOUT_SECS", "GEMCHAT_STORAGE_BACKEND",
		"GEMCHAT_STORAGE_PATH", "GEMCHAT_REDIS_URL", "GEMCHAT_LOG_LEVEL",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func fixtureSessions() []model.ChatSession {
	t0 := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	return []model.ChatSession{
		{
			ID:    "aaaa1111-0000-4000-8000-000000000001",
			Title: "Go channels",
			Messages: []model.Message{
				{ID: "m1", Role: model.RoleUser, Content: "Explain channels", Timestamp: t0},
				{ID: "m2", Role: model.RoleAssistant, Content: "They pass values between goroutines.", Timestamp: t0.Add(time.Second), Model: "gemini-1.5-flash"},
			},
			CreatedAt: t0,
			UpdatedAt: t0.Add(time.Second),
		},
		{
			ID:        "aaaa2222-0000-4000-8000-000000000002",
			Title:     "Rust lifetimes",
			Messages:  []model.Message{},
			CreatedAt: t0.Add(-time.Hour),
			UpdatedAt: t0.Add(-time.Hour),
		},
		{
			ID:        "bbbb3333-0000-4000-8000-000000000003",
			Title:     "Shopping list",
			Messages:  []model.Message{},
			CreatedAt: t0.Add(-2 * time.Hour),
			UpdatedAt: t0.Add(-2 * time.Hour),
		},
	}
}

// newTestApp returns an App on a memory slot holding sessions.
func newTestApp(t *testing.T, sessions []model.ChatSession) *App {
	t.Helper()
	cfg := config.Default()
	cfg.SetDefaults()
	cfg.Storage.Backend = storage.BackendMemory
	cfg.Storage.Watch = false

	store := storage.NewStore(storage.NewMemorySlot(storage.DefaultKey), nil)
	if sessions != nil {
		require.NoError(t, store.Commit(context.Background(), sessions))
	}
	app := &App{Config: cfg, Log: zap.NewNop(), Store: store}
	t.Cleanup(app.Close)
	return app
}

// =============================================================================
// PARSING
// =============================================================================

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		argv     []string
		wantCmd  Command
		wantRaw  []string
		wantArgs func(t *testing.T, a Args)
	}{
		{name: "no args starts the TUI", argv: nil, wantCmd: CmdTUI},
		{name: "chat", argv: []string{"chat"}, wantCmd: CmdChat, wantRaw: []string{}},
		{name: "sessions subcommand", argv: []string{"sessions", "show", "2"}, wantCmd: CmdSessions, wantRaw: []string{"show", "2"}},
		{name: "session alias", argv: []string{"session"}, wantCmd: CmdSessions, wantRaw: []string{}},
		{name: "config", argv: []string{"CONFIG", "path"}, wantCmd: CmdConfig, wantRaw: []string{"path"}},
		{name: "version flag", argv: []string{"--version"}, wantCmd: CmdVersion, wantRaw: []string{}},
		{name: "help flag", argv: []string{"-h"}, wantCmd: CmdHelp, wantRaw: []string{}},
		{
			name:    "unknown keeps the name",
			argv:    []string{"frobnicate"},
			wantCmd: CmdUnknown,
			wantRaw: []string{},
			wantArgs: func(t *testing.T, a Args) {
				assert.Equal(t, "frobnicate", a.Name)
			},
		},
		{
			name:    "global flags anywhere",
			argv:    []string{"--model", "gemini-2.0-flash", "chat", "--provider=ollama", "--storage", "sqlite", "--theme=light", "--config", "/tmp/c.toml"},
			wantCmd: CmdChat,
			wantRaw: []string{},
			wantArgs: func(t *testing.T, a Args) {
				assert.Equal(t, "gemini-2.0-flash", a.Model)
				assert.Equal(t, "ollama", a.Provider)
				assert.Equal(t, "sqlite", a.Storage)
				assert.Equal(t, "light", a.Theme)
				assert.Equal(t, "/tmp/c.toml", a.ConfigPath)
			},
		},
		{
			name:    "command flags pass through",
			argv:    []string{"sessions", "export", "1", "--format", "json"},
			wantCmd: CmdSessions,
			wantRaw: []string{"export", "1", "--format", "json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args := Parse(tt.argv)
			assert.Equal(t, tt.wantCmd, cmd)
			if tt.wantRaw != nil {
				assert.Equal(t, len(tt.wantRaw), len(args.Raw))
				for i := range tt.wantRaw {
					assert.Equal(t, tt.wantRaw[i], args.Raw[i])
				}
			}
			if tt.wantArgs != nil {
				tt.wantArgs(t, args)
			}
		})
	}
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "sessions", CmdSessions.String())
	assert.Equal(t, "unknown", Command(99).String())
}

func TestArgParser(t *testing.T) {
	p := NewArgParser([]string{"export", "abc", "--format", "json", "--out=/tmp/x", "-v", "--force=true"})

	assert.Equal(t, "export", p.Subcommand())
	assert.Equal(t, "abc", p.Positional(1))
	assert.Equal(t, "", p.Positional(5))
	assert.Equal(t, 2, p.PositionalCount())
	assert.Equal(t, "json", p.Flag("format"))
	assert.Equal(t, "json", p.Flag("--format"))
	assert.Equal(t, "/tmp/x", p.Flag("out"))
	assert.Equal(t, "md", p.FlagOrDefault("style", "md"))
	assert.True(t, p.BoolFlag("v"))
	assert.True(t, p.BoolFlag("force"))
	assert.False(t, p.BoolFlag("quiet"))
}

func TestParseIntWithValidation(t *testing.T) {
	n, err := ParseIntWithValidation("3", "index")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, bad := range []string{"", "x", "0", "-2"} {
		_, err := ParseIntWithValidation(bad, "index")
		assert.Error(t, err, bad)
	}
}

func TestPrintUsageAndVersion(t *testing.T) {
	var buf bytes.Buffer
	PrintUsage(&buf)
	assert.Contains(t, buf.String(), "gemchat sessions export <ref>")
	assert.Contains(t, buf.String(), "Version: "+Version)

	buf.Reset()
	PrintVersion(&buf)
	assert.Contains(t, buf.String(), "gemchat version "+Version)
}

// =============================================================================
// SESSION REFERENCES
// =============================================================================

func TestResolveSession(t *testing.T) {
	sessions := fixtureSessions()

	tests := []struct {
		ref     string
		wantID  string
		wantErr string
	}{
		{ref: "1", wantID: sessions[0].ID},
		{ref: " 3 ", wantID: sessions[2].ID},
		{ref: sessions[1].ID, wantID: sessions[1].ID},
		{ref: "bbbb", wantID: sessions[2].ID},
		{ref: "aaaa", wantErr: "matches 2 sessions"},
		{ref: "zzzz", wantErr: "no session matches"},
		{ref: "4", wantErr: "no session number 4"},
		{ref: "0", wantErr: "no session number 0"},
		{ref: "", wantErr: "required"},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			s, err := resolveSession(sessions, tt.ref)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, s.ID)
		})
	}
}

// =============================================================================
// SESSIONS COMMAND
// =============================================================================

func runSessions(t *testing.T, app *App, raw ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := HandleSessions(context.Background(), app, Args{Raw: raw}, &out)
	return plain(out.String()), err
}

func TestHandleSessions_List(t *testing.T) {
	out, err := runSessions(t, newTestApp(t, fixtureSessions()))
	require.NoError(t, err)

	assert.Contains(t, out, "Chats (3)")
	assert.Contains(t, out, "aaaa1111")
	assert.Contains(t, out, "Go channels")
	assert.Less(t, strings.Index(out, "Go channels"), strings.Index(out, "Shopping list"), "stored order is kept")

	out, err = runSessions(t, newTestApp(t, nil), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No saved chats.")
}

func TestHandleSessions_Show(t *testing.T) {
	out, err := runSessions(t, newTestApp(t, fixtureSessions()), "show", "1")
	require.NoError(t, err)

	assert.Contains(t, out, "# Go channels")
	assert.Contains(t, out, "### [You]")
	assert.Contains(t, out, "Explain channels")
	assert.Contains(t, out, "They pass values between goroutines.")
	assert.NotContains(t, out, "generator: gemchat", "metadata is left out")
}

func TestHandleSessions_Export(t *testing.T) {
	app := newTestApp(t, fixtureSessions())
	dir := t.TempDir()

	out, err := runSessions(t, app, "export", "aaaa1", "--format", "json", "--out", dir)
	require.NoError(t, err)

	want := filepath.Join(dir, "chat_Go_channels_20250301_093000.json")
	assert.Contains(t, out, "Exported to "+want)
	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"title": "Go channels"`)

	_, err = runSessions(t, app, "export", "1", "--format", "pdf", "--out", dir)
	assert.ErrorContains(t, err, "unsupported export format")
}

func TestHandleSessions_Delete(t *testing.T) {
	app := newTestApp(t, fixtureSessions())

	out, err := runSessions(t, app, "delete", "2")
	require.NoError(t, err)
	assert.Contains(t, out, `Deleted "Rust lifetimes"`)

	remaining := app.Store.Load(context.Background())
	require.Len(t, remaining, 2)
	assert.Equal(t, "Go channels", remaining[0].Title)
	assert.Equal(t, "Shopping list", remaining[1].Title)
}

func TestHandleSessions_Errors(t *testing.T) {
	app := newTestApp(t, fixtureSessions())

	_, err := runSessions(t, app, "show")
	assert.ErrorContains(t, err, "required")

	_, err = runSessions(t, app, "defrag")
	assert.ErrorContains(t, err, "unknown sessions subcommand")
}

// =============================================================================
// CONFIG COMMAND
// =============================================================================

func TestHandleConfig(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	args := Args{ConfigPath: path}

	var out bytes.Buffer
	args.Raw = []string{"path"}
	require.NoError(t, HandleConfig(args, &out))
	assert.Equal(t, path+"\n", out.String())

	out.Reset()
	args.Raw = []string{"init"}
	require.NoError(t, HandleConfig(args, &out))
	assert.Contains(t, plain(out.String()), "Wrote "+path)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	err = HandleConfig(args, &out)
	assert.ErrorContains(t, err, "already exists")

	args.Raw = []string{"init", "--force"}
	assert.NoError(t, HandleConfig(args, &out))

	t.Setenv("GEMCHAT_API_KEY", "AIzaSyExampleExampleKey1234")
	out.Reset()
	args.Raw = []string{"show"}
	args.Model = "gemini-2.0-flash"
	require.NoError(t, HandleConfig(args, &out))
	shown := out.String()
	assert.Contains(t, shown, `model = "gemini-2.0-flash"`)
	assert.NotContains(t, shown, "AIzaSyExampleExampleKey1234")

	args.Raw = []string{"reset"}
	assert.ErrorContains(t, HandleConfig(args, &out), "unknown config subcommand")
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[provider]\nname = \"gemini\"\n"), 0o600))

	cfg, err := LoadConfig(Args{ConfigPath: path, Provider: "ollama", Storage: "memory"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Provider.Name)
	assert.Equal(t, "llama3.2", cfg.Provider.Model)
	assert.Equal(t, "memory", cfg.Storage.Backend)

	_, err = LoadConfig(Args{ConfigPath: path, Theme: "sepia"})
	assert.ErrorContains(t, err, "ui.theme")
}

// =============================================================================
// APP
// =============================================================================

func TestApp_StartChatLoadsSessions(t *testing.T) {
	app := newTestApp(t, fixtureSessions())
	require.NoError(t, app.startChat(context.Background(), echoStreamer{}))

	st := app.Ctrl.State()
	require.Len(t, st.Sessions, 3)
	assert.Equal(t, fixtureSessions()[0].ID, st.ActiveID)
	assert.Equal(t, "echo-1", app.Ctrl.Model())

	// A second call keeps the running controller.
	ctrl := app.Ctrl
	require.NoError(t, app.startChat(context.Background(), echoStreamer{}))
	assert.Same(t, ctrl, app.Ctrl)
}

func TestApp_NewStreamerFollowsProvider(t *testing.T) {
	app := newTestApp(t, nil)

	app.Config.Provider.Name = llm.ProviderOllama
	app.Config.Provider.Model = "llama3.2"
	s := app.newStreamer(context.Background())
	_, ok := s.(*llm.OllamaClient)
	assert.True(t, ok)
	assert.Equal(t, "llama3.2", s.Model())

	app.Config.Provider.Name = llm.ProviderGemini
	app.Config.Provider.Model = "gemini-1.5-flash"
	app.Config.Provider.APIKey = ""
	g, ok := app.newStreamer(context.Background()).(*llm.GeminiClient)
	require.True(t, ok)
	assert.Error(t, g.SetupErr(), "a missing key is reported, not fatal")
}

func TestApp_PersistsThroughController(t *testing.T) {
	app := newTestApp(t, nil)
	require.NoError(t, app.startChat(context.Background(), echoStreamer{}))

	require.NoError(t, app.Ctrl.SendMessage(context.Background(), "hello"))
	app.writer.Flush()

	stored := app.Store.Load(context.Background())
	require.Len(t, stored, 1)
	assert.Equal(t, "hello", stored[0].Title)
	require.Len(t, stored[0].Messages, 2)
	assert.Equal(t, "echo: hello", stored[0].Messages[1].Content)
}

func TestApp_CloseRecordsCancelledReply(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")
	slot, err := storage.OpenSQLiteSlot(ctx, path, storage.DefaultKey)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.SetDefaults()
	app := &App{Config: cfg, Log: zap.NewNop(), Store: storage.NewStore(slot, nil)}
	t.Cleanup(app.Close)

	bs := blockingStreamer{started: make(chan struct{})}
	require.NoError(t, app.startChat(ctx, bs))

	sent := make(chan error, 1)
	go func() { sent <- app.Ctrl.SendMessage(ctx, "hello") }()
	<-bs.started

	app.Close()
	assert.ErrorContains(t, <-sent, "response cancelled")
	app.Close()

	slot, err = storage.OpenSQLiteSlot(ctx, path, storage.DefaultKey)
	require.NoError(t, err)
	store := storage.NewStore(slot, nil)
	defer store.Close()

	stored := store.Load(ctx)
	require.Len(t, stored, 1)
	require.Len(t, stored[0].Messages, 2)
	assert.Equal(t, "hello", stored[0].Messages[0].Content)
	assert.Equal(t, "Error: response cancelled", stored[0].Messages[1].Content)
}

// =============================================================================
// REPL
// =============================================================================

func newTestREPL(t *testing.T, sessions []model.ChatSession, streamer llm.Streamer) (*REPL, *bytes.Buffer) {
	t.Helper()
	app := newTestApp(t, sessions)
	require.NoError(t, app.startChat(context.Background(), streamer))
	var out bytes.Buffer
	return NewREPL(context.Background(), app.Ctrl, &out), &out
}

func TestREPL_SendPrintsReply(t *testing.T) {
	r, out := newTestREPL(t, nil, echoStreamer{})

	assert.False(t, r.Handle("  hello  "))
	assert.Contains(t, plain(out.String()), "Assistant: echo: hello\n")

	active, ok := r.ctrl.ActiveSession()
	require.True(t, ok)
	assert.Equal(t, "hello", active.Title)
	assert.Len(t, active.Messages, 2)
}

func TestREPL_BlankAndQuit(t *testing.T) {
	r, out := newTestREPL(t, nil, echoStreamer{})

	assert.False(t, r.Handle("   "))
	assert.Empty(t, out.String())

	for _, in := range []string{"exit", "QUIT", "/quit", "/exit", "/q"} {
		assert.True(t, r.Handle(in), in)
	}
}

func TestREPL_SessionCommands(t *testing.T) {
	r, out := newTestREPL(t, fixtureSessions(), echoStreamer{})

	r.Handle("/list")
	listed := plain(out.String())
	assert.Contains(t, listed, "*  1. Go channels")
	assert.Contains(t, listed, "   2. Rust lifetimes")

	out.Reset()
	r.Handle("/switch 3")
	assert.Contains(t, plain(out.String()), "Switched to Shopping list")
	assert.Equal(t, fixtureSessions()[2].ID, r.ctrl.State().ActiveID)

	out.Reset()
	r.Handle("/switch aaaa1")
	assert.Contains(t, plain(out.String()), "You: Explain channels")

	r.Handle("/rename Channels 101")
	active, _ := r.ctrl.ActiveSession()
	assert.Equal(t, "Channels 101", active.Title)

	out.Reset()
	r.Handle("/delete 1")
	assert.Contains(t, plain(out.String()), "Deleted Channels 101")
	assert.Len(t, r.ctrl.State().Sessions, 2)

	r.Handle("/new")
	st := r.ctrl.State()
	assert.Len(t, st.Sessions, 3)
	assert.Equal(t, st.Sessions[0].ID, st.ActiveID)

	out.Reset()
	r.Handle("/switch 9")
	assert.Contains(t, plain(out.String()), "Error: no session number 9")

	out.Reset()
	r.Handle("/frob")
	assert.Contains(t, plain(out.String()), "unknown command /frob")
}

func TestREPL_HelpAndHistory(t *testing.T) {
	r, out := newTestREPL(t, fixtureSessions(), echoStreamer{})

	r.Handle("/help")
	assert.Contains(t, plain(out.String()), "/switch <n|id>")

	out.Reset()
	r.Handle("/history")
	assert.Contains(t, plain(out.String()), "Assistant: They pass values between goroutines.")
}

func TestREPL_InterruptCancelsReply(t *testing.T) {
	bs := blockingStreamer{started: make(chan struct{})}
	r, out := newTestREPL(t, nil, bs)

	sig := make(chan os.Signal, 1)
	r.interrupts = sig

	done := make(chan struct{})
	go func() {
		r.Handle("hello")
		close(done)
	}()

	select {
	case <-bs.started:
	case <-time.After(5 * time.Second):
		t.Fatal("stream never started")
	}
	sig <- os.Interrupt

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reply was not cancelled")
	}

	assert.Contains(t, plain(out.String()), "Error: response cancelled")
	active, ok := r.ctrl.ActiveSession()
	require.True(t, ok)
	last, _ := active.LastMessage()
	assert.True(t, last.IsError())
	assert.False(t, r.ctrl.Busy())
}
