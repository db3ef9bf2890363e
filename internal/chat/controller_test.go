// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/gemchat/internal/llm"
	"github.com/jeranaias/gemchat/internal/model"
	"github.com/jeranaias/gemchat/internal/session"
)

// =============================================================================
// FAKES
// =============================================================================

// scriptStreamer emits fixed chunks and then returns err.
type scriptStreamer struct {
	chunks []llm.Chunk
	err    error

	mu      sync.Mutex
	history []model.Message
}

func (s *scriptStreamer) Model() string { return "test-model" }

func (s *scriptStreamer) Stream(ctx context.Context, history []model.Message, onChunk llm.ChunkFunc) error {
	s.mu.Lock()
	s.history = history
	s.mu.Unlock()
	for _, c := range s.chunks {
		onChunk(c)
	}
	return s.err
}

// gateStreamer signals started, then waits for proceed (and replies) or
// for the context to end.
type gateStreamer struct {
	started chan []model.Message
	proceed chan struct{}
	reply   string
}

func newGateStreamer(reply string) *gateStreamer {
	return &gateStreamer{started: make(chan []model.Message, 1), proceed: make(chan struct{}), reply: reply}
}

func (g *gateStreamer) Model() string { return "test-model" }

func (g *gateStreamer) Stream(ctx context.Context, history []model.Message, onChunk llm.ChunkFunc) error {
	onChunk(llm.Chunk{Text: "…"})
	g.started <- history
	select {
	case <-g.proceed:
		onChunk(llm.Chunk{Text: g.reply, Complete: true})
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// recorder is a Persister that keeps every snapshot.
type recorder struct {
	mu        sync.Mutex
	snapshots [][]model.ChatSession
}

func (r *recorder) Persist(sessions []model.ChatSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, sessions)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func (r *recorder) last() []model.ChatSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return nil
	}
	return r.snapshots[len(r.snapshots)-1]
}

type staticLoader []model.ChatSession

func (l staticLoader) Load(context.Context) []model.ChatSession { return l }

func testRepo() session.Repository {
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	ticks, ids := 0, 0
	return session.Repository{
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			ticks++
			return base.Add(time.Duration(ticks) * time.Millisecond)
		},
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			ids++
			return fmt.Sprintf("id-%d", ids)
		},
	}
}

func newController(t *testing.T, streamer llm.Streamer, opts ...func(*Options)) (*Controller, *recorder) {
	t.Helper()
	rec := &recorder{}
	o := Options{Streamer: streamer, Persister: rec, Repository: testRepo()}
	for _, fn := range opts {
		fn(&o)
	}
	return New(o), rec
}

// sendAsync runs SendMessage on its own goroutine.
func sendAsync(c *Controller, text string) <-chan error {
	done := make(chan error, 1)
	go func() { done <- c.SendMessage(context.Background(), text) }()
	return done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("turn did not finish")
		return nil
	}
}

// =============================================================================
// HAPPY PATH
// =============================================================================

func TestSendMessage_HelloScenario(t *testing.T) {
	streamer := &scriptStreamer{chunks: []llm.Chunk{
		{Text: "H"},
		{Text: "Hello there"},
		{Text: "Hello there!", Complete: true},
	}}
	c, rec := newController(t, streamer)

	var mu sync.Mutex
	var streamed []string
	var sawLoading bool
	c.Subscribe(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		if s.Streaming != "" {
			streamed = append(streamed, s.Streaming)
		}
		sawLoading = sawLoading || s.Loading
	})

	require.NoError(t, c.SendMessage(context.Background(), "  Hi  "))

	st := c.State()
	require.Len(t, st.Sessions, 1)
	sess := st.Sessions[0]
	assert.Equal(t, sess.ID, st.ActiveID)
	assert.Equal(t, "Hi", sess.Title)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, model.RoleUser, sess.Messages[0].Role)
	assert.Equal(t, "Hi", sess.Messages[0].Content)
	assert.Equal(t, model.RoleAssistant, sess.Messages[1].Role)
	assert.Equal(t, "Hello there!", sess.Messages[1].Content)
	assert.Equal(t, "test-model", sess.Messages[1].Model)
	assert.False(t, st.Loading)
	assert.Equal(t, "", st.Streaming)

	mu.Lock()
	assert.Equal(t, []string{"H", "Hello there"}, streamed)
	assert.True(t, sawLoading)
	mu.Unlock()

	assert.GreaterOrEqual(t, rec.count(), 3)
	assert.Equal(t, st.Sessions, rec.last())

	require.Len(t, streamer.history, 1)
	assert.Equal(t, "Hi", streamer.history[0].Content)
}

func TestSendMessage_UsesActiveSessionAndKeepsTitle(t *testing.T) {
	streamer := &scriptStreamer{chunks: []llm.Chunk{{Text: "ok", Complete: true}}}
	c, _ := newController(t, streamer)

	require.NoError(t, c.SendMessage(context.Background(), "first question"))
	require.NoError(t, c.SendMessage(context.Background(), "second question"))

	st := c.State()
	require.Len(t, st.Sessions, 1)
	assert.Equal(t, "first question", st.Sessions[0].Title)
	assert.Len(t, st.Sessions[0].Messages, 4)
	assert.Len(t, streamer.history, 3, "the whole conversation is sent")
}

func TestSendMessage_LongTitleTruncated(t *testing.T) {
	c, _ := newController(t, &scriptStreamer{chunks: []llm.Chunk{{Text: "ok", Complete: true}}})
	long := strings.Repeat("x", 80)

	require.NoError(t, c.SendMessage(context.Background(), long))
	sess, ok := c.ActiveSession()
	require.True(t, ok)
	assert.Equal(t, strings.Repeat("x", 50)+"...", sess.Title)
	assert.Equal(t, long, sess.Messages[0].Content)
}

func TestSelectSession_UnknownThenSend(t *testing.T) {
	c, _ := newController(t, &scriptStreamer{chunks: []llm.Chunk{{Text: "ok", Complete: true}}})
	require.NoError(t, c.SendMessage(context.Background(), "first"))

	assert.False(t, c.SelectSession("missing"))
	_, ok := c.ActiveSession()
	assert.False(t, ok, "an unknown ID leaves nothing active")

	require.NoError(t, c.SendMessage(context.Background(), "second"))
	st := c.State()
	require.Len(t, st.Sessions, 2)
	assert.Equal(t, st.Sessions[0].ID, st.ActiveID)
	assert.Equal(t, "second", st.Sessions[0].Title)
}

// =============================================================================
// GUARDS
// =============================================================================

func TestSendMessage_EmptyIsNoOp(t *testing.T) {
	c, rec := newController(t, &scriptStreamer{})

	for _, in := range []string{"", "   ", "\n\t"} {
		assert.ErrorIs(t, c.SendMessage(context.Background(), in), ErrEmptyMessage)
	}
	assert.Empty(t, c.State().Sessions)
	assert.Zero(t, rec.count())
}

func TestSendMessage_SingleInFlight(t *testing.T) {
	gate := newGateStreamer("done")
	c, _ := newController(t, gate)

	done := sendAsync(c, "one")
	<-gate.started
	require.True(t, c.Busy())

	before := c.State()
	assert.ErrorIs(t, c.SendMessage(context.Background(), "two"), ErrTurnInProgress)
	after := c.State()
	assert.Equal(t, before.Sessions, after.Sessions)
	assert.Len(t, after.Sessions[0].Messages, 1)

	close(gate.proceed)
	require.NoError(t, waitDone(t, done))
	assert.False(t, c.Busy())
	assert.Len(t, c.State().Sessions[0].Messages, 2)
}

// =============================================================================
// TARGET SESSION
// =============================================================================

func TestSendMessage_ReplyGoesToOriginalSession(t *testing.T) {
	gate := newGateStreamer("answer for A")
	c, _ := newController(t, gate)

	done := sendAsync(c, "question in A")
	<-gate.started
	a, ok := c.ActiveSession()
	require.True(t, ok)

	b := c.CreateNewSession()
	assert.Equal(t, b.ID, c.State().ActiveID)
	assert.True(t, c.State().StreamingInto(a.ID))

	close(gate.proceed)
	require.NoError(t, waitDone(t, done))

	st := c.State()
	assert.Equal(t, b.ID, st.ActiveID, "switching must stick")
	gotA, _ := st.Session(a.ID)
	gotB, _ := st.Session(b.ID)
	require.Len(t, gotA.Messages, 2)
	assert.Equal(t, "answer for A", gotA.Messages[1].Content)
	assert.Empty(t, gotB.Messages)
}

func TestSendMessage_SelectDuringStream(t *testing.T) {
	c, _ := newController(t, &scriptStreamer{chunks: []llm.Chunk{{Text: "r", Complete: true}}})
	require.NoError(t, c.SendMessage(context.Background(), "in first"))
	first, _ := c.ActiveSession()

	gate := newGateStreamer("late")
	c.streamer = gate
	second := c.CreateNewSession()
	done := sendAsync(c, "in second")
	<-gate.started

	assert.False(t, c.SelectSession("missing"))
	assert.True(t, c.SelectSession(first.ID))
	close(gate.proceed)
	require.NoError(t, waitDone(t, done))

	got, _ := c.State().Session(second.ID)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "late", got.Messages[1].Content)
	assert.Equal(t, first.ID, c.State().ActiveID)
}

// =============================================================================
// CANCELLATION
// =============================================================================

func TestDeleteSession_DuringStreamCancelsAndDoesNotResurrect(t *testing.T) {
	gate := newGateStreamer("never")
	c, rec := newController(t, gate)

	done := sendAsync(c, "doomed")
	<-gate.started
	target, _ := c.ActiveSession()

	assert.True(t, c.DeleteSession(target.ID))
	err := waitDone(t, done)
	assert.ErrorIs(t, err, ErrSessionDeleted)

	st := c.State()
	assert.Empty(t, st.Sessions)
	assert.Equal(t, "", st.ActiveID)
	assert.False(t, st.Loading)
	assert.Equal(t, "", st.Streaming)
	assert.Empty(t, rec.last(), "deleted session must not come back in storage")
}

func TestDeleteSession_OtherSessionKeepsStreaming(t *testing.T) {
	c, _ := newController(t, &scriptStreamer{chunks: []llm.Chunk{{Text: "r", Complete: true}}})
	require.NoError(t, c.SendMessage(context.Background(), "old"))
	old, _ := c.ActiveSession()

	gate := newGateStreamer("kept")
	c.streamer = gate
	c.CreateNewSession()
	done := sendAsync(c, "new")
	<-gate.started

	assert.True(t, c.DeleteSession(old.ID))
	close(gate.proceed)
	require.NoError(t, waitDone(t, done))

	st := c.State()
	require.Len(t, st.Sessions, 1)
	assert.Equal(t, "kept", st.Sessions[0].Messages[1].Content)
}

func TestCancelTurn(t *testing.T) {
	gate := newGateStreamer("never")
	c, _ := newController(t, gate)
	assert.False(t, c.CancelTurn())

	done := sendAsync(c, "slow question")
	<-gate.started
	assert.True(t, c.CancelTurn())
	assert.ErrorIs(t, waitDone(t, done), ErrTurnCancelled)

	sess, _ := c.ActiveSession()
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, "Error: response cancelled", sess.Messages[1].Content)
	assert.True(t, sess.Messages[1].IsError())
	assert.False(t, c.State().Loading)
}

func TestWait(t *testing.T) {
	gate := newGateStreamer("never")
	c, _ := newController(t, gate)
	require.NoError(t, c.Wait(context.Background()))

	done := sendAsync(c, "slow question")
	<-gate.started

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Wait(short), context.DeadlineExceeded)

	c.CancelTurn()
	require.NoError(t, c.Wait(context.Background()))
	assert.False(t, c.Busy())
	sess, _ := c.ActiveSession()
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, "Error: response cancelled", sess.Messages[1].Content)
	assert.ErrorIs(t, waitDone(t, done), ErrTurnCancelled)
}

func TestIdleTimeout(t *testing.T) {
	gate := newGateStreamer("never")
	c, _ := newController(t, gate, func(o *Options) { o.IdleTimeout = 50 * time.Millisecond })

	done := sendAsync(c, "anyone there?")
	<-gate.started
	err := waitDone(t, done)

	assert.ErrorIs(t, err, ErrStreamStalled)
	sess, _ := c.ActiveSession()
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, "Error: no response from model for 50ms", sess.Messages[1].Content)
}

// =============================================================================
// FAILURES
// =============================================================================

func TestSendMessage_FailuresBecomeErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		streamer *scriptStreamer
		want     string
	}{
		{
			name:     "provider error mid stream",
			streamer: &scriptStreamer{chunks: []llm.Chunk{{Text: "par"}}, err: &llm.ProviderError{Provider: "gemini", Message: "boom"}},
			want:     "Error: gemini: boom",
		},
		{
			name:     "configuration error",
			streamer: &scriptStreamer{err: &llm.ConfigurationError{Message: "API key is not configured"}},
			want:     "Error: API key is not configured",
		},
		{
			name:     "stream ends without completing",
			streamer: &scriptStreamer{chunks: []llm.Chunk{{Text: "half"}}},
			want:     "Error: stream ended before the reply was complete",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newController(t, tt.streamer)
			err := c.SendMessage(context.Background(), "Hi")
			require.Error(t, err)

			st := c.State()
			sess, ok := st.Active()
			require.True(t, ok)
			require.Len(t, sess.Messages, 2)
			assert.Equal(t, tt.want, sess.Messages[1].Content)
			assert.Equal(t, "", sess.Messages[1].Model)
			assert.False(t, st.Loading)
			assert.Equal(t, "", st.Streaming)
			assert.Equal(t, st.Sessions, rec.last())
		})
	}
}

func TestSendMessage_ErrorAfterCompleteIsIgnored(t *testing.T) {
	streamer := &scriptStreamer{
		chunks: []llm.Chunk{{Text: "done", Complete: true}},
		err:    errors.New("late close error"),
	}
	c, _ := newController(t, streamer)
	require.NoError(t, c.SendMessage(context.Background(), "Hi"))

	sess, _ := c.ActiveSession()
	assert.Equal(t, "done", sess.Messages[1].Content)
}

// =============================================================================
// SESSION MANAGEMENT
// =============================================================================

func TestLoad(t *testing.T) {
	stored := staticLoader{
		{ID: "x", Title: "X", Messages: []model.Message{}},
		{ID: "y", Title: "Y", Messages: []model.Message{}},
	}
	c, rec := newController(t, &scriptStreamer{}, func(o *Options) { o.Loader = stored })

	c.Load(context.Background())
	st := c.State()
	assert.Len(t, st.Sessions, 2)
	assert.Equal(t, "x", st.ActiveID)
	assert.Zero(t, rec.count(), "loading must not write back")
}

func TestLoad_Empty(t *testing.T) {
	c, _ := newController(t, &scriptStreamer{}, func(o *Options) { o.Loader = staticLoader{} })
	c.Load(context.Background())
	assert.Equal(t, "", c.State().ActiveID)
	_, ok := c.ActiveSession()
	assert.False(t, ok)
}

func TestCreateNewSession(t *testing.T) {
	c, rec := newController(t, &scriptStreamer{})
	first := c.CreateNewSession()
	second := c.CreateNewSession()

	st := c.State()
	require.Len(t, st.Sessions, 2)
	assert.Equal(t, second.ID, st.Sessions[0].ID)
	assert.Equal(t, first.ID, st.Sessions[1].ID)
	assert.Equal(t, second.ID, st.ActiveID)
	assert.Equal(t, model.DefaultTitle, second.Title)
	assert.Equal(t, 2, rec.count())
}

func TestDeleteSession_ActivePointer(t *testing.T) {
	c, _ := newController(t, &scriptStreamer{})
	a := c.CreateNewSession()
	b := c.CreateNewSession()
	cc := c.CreateNewSession() // order: cc, b, a

	require.True(t, c.SelectSession(b.ID))
	require.True(t, c.DeleteSession(b.ID))
	assert.Equal(t, cc.ID, c.State().ActiveID)

	require.True(t, c.DeleteSession(a.ID))
	assert.Equal(t, cc.ID, c.State().ActiveID)

	assert.False(t, c.DeleteSession("missing"))

	require.True(t, c.DeleteSession(cc.ID))
	assert.Equal(t, "", c.State().ActiveID)
}

func TestRenameSession(t *testing.T) {
	c, _ := newController(t, &scriptStreamer{})
	s := c.CreateNewSession()

	assert.True(t, c.RenameSession(s.ID, "  Travel  "))
	got, _ := c.ActiveSession()
	assert.Equal(t, "Travel", got.Title)

	assert.False(t, c.RenameSession(s.ID, " "))
	assert.False(t, c.RenameSession("missing", "x"))
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	c, _ := newController(t, &scriptStreamer{})
	calls := 0
	unsubscribe := c.Subscribe(func(State) { calls++ })

	c.CreateNewSession()
	unsubscribe()
	c.CreateNewSession()
	assert.Equal(t, 1, calls)
}

func TestSendMessage_NoStreamer(t *testing.T) {
	c := New(Options{Repository: testRepo()})
	err := c.SendMessage(context.Background(), "Hi")
	assert.True(t, llm.IsConfigurationError(err))

	sess, _ := c.ActiveSession()
	require.Len(t, sess.Messages, 2)
	assert.True(t, sess.Messages[1].IsError())
}
