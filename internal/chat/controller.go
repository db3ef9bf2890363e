// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/gemchat/internal/llm"
	"github.com/jeranaias/gemchat/internal/model"
	"github.com/jeranaias/gemchat/internal/session"
)

// DefaultIdleTimeout is how long a turn may go without a chunk.
const DefaultIdleTimeout = 2 * time.Minute

// Loader supplies the stored sessions at startup.
type Loader interface {
	Load(ctx context.Context) []model.ChatSession
}

// Persister receives the whole collection after every change. It must not
// report errors; storage.Store and storage.AsyncWriter log and swallow them.
type Persister interface {
	Persist(sessions []model.ChatSession)
}

// Options configures a Controller. Streamer is required.
type Options struct {
	Streamer   llm.Streamer
	Loader     Loader
	Persister  Persister
	Repository session.Repository
	Logger     *zap.Logger

	// IdleTimeout cancels a turn when no chunk arrives within it. Zero
	// disables the watchdog.
	IdleTimeout time.Duration
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller is the chat state machine. All methods are safe for concurrent
// use; SendMessage blocks for the length of the turn and is normally run off
// the UI goroutine.
type Controller struct {
	mu    sync.Mutex
	state State
	turn  *turn

	streamer    llm.Streamer
	loader      Loader
	persister   Persister
	repo        session.Repository
	idleTimeout time.Duration
	log         *zap.Logger
	chunkLog    rate.Sometimes

	// notifyMu keeps subscriber deliveries in transition order.
	notifyMu sync.Mutex
	subsMu   sync.Mutex
	subs     map[int]func(State)
	nextSub  int
}

// New returns a controller with an empty collection.
func New(opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		state:       State{Sessions: []model.ChatSession{}},
		streamer:    opts.Streamer,
		loader:      opts.Loader,
		persister:   opts.Persister,
		repo:        opts.Repository,
		idleTimeout: opts.IdleTimeout,
		log:         log.Named("chat"),
		chunkLog:    rate.Sometimes{First: 3, Interval: 2 * time.Second},
		subs:        make(map[int]func(State)),
	}
}

// Subscribe registers fn to receive every new State, in order. fn runs on
// whichever goroutine caused the change and must neither block nor call back
// into the Controller. The returned func unsubscribes.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subsMu.Unlock()

	return func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActiveSession returns the active session.
func (c *Controller) ActiveSession() (model.ChatSession, bool) {
	return c.State().Active()
}

// Busy reports whether a turn is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turn != nil
}

// Model names the model replies come from.
func (c *Controller) Model() string {
	if c.streamer == nil {
		return ""
	}
	return c.streamer.Model()
}

// =============================================================================
// SESSION OPERATIONS
// =============================================================================

// Load replaces the collection with the stored sessions and activates the
// first one.
func (c *Controller) Load(ctx context.Context) {
	if c.loader == nil {
		return
	}
	sessions := c.loader.Load(ctx)
	c.apply(false, SessionsLoaded{Sessions: sessions})
	c.log.Info("sessions loaded", zap.Int("count", len(sessions)))
}

// CreateNewSession adds an empty session at the front and activates it.
func (c *Controller) CreateNewSession() model.ChatSession {
	s := c.repo.Create("")
	c.apply(true, SessionCreated{Session: s})
	c.log.Debug("session created", zap.String("session", s.ID))
	return s
}

// SelectSession sets the active session. It works while a reply is
// streaming; the reply still goes to its original session. An unknown ID is
// not an error: nothing is shown as active and the next send starts a new
// session. It reports whether id exists.
func (c *Controller) SelectSession(id string) bool {
	c.mu.Lock()
	exists := model.FindSession(c.state.Sessions, id) >= 0
	c.state = Reduce(c.state, SessionSelected{ID: id})
	c.publishLocked()
	return exists
}

// DeleteSession removes a session. If it was active, the first remaining
// session becomes active. If a reply is streaming into it, the stream is
// cancelled and nothing is appended.
func (c *Controller) DeleteSession(id string) bool {
	c.mu.Lock()
	if model.FindSession(c.state.Sessions, id) < 0 {
		c.mu.Unlock()
		return false
	}
	if c.turn != nil && c.turn.targetID == id {
		c.turn.stop(ErrSessionDeleted)
		c.log.Info("cancelled response for deleted session", zap.String("session", id))
	}
	c.state = Reduce(c.state, SessionDeleted{ID: id})
	c.persistLocked()
	c.publishLocked()
	return true
}

// RenameSession sets a session's title.
func (c *Controller) RenameSession(id, title string) bool {
	title = strings.TrimSpace(title)
	c.mu.Lock()
	s, ok := c.state.Session(id)
	if !ok || title == "" {
		c.mu.Unlock()
		return false
	}
	c.state = Reduce(c.state, SessionReplaced{Session: c.repo.Rename(s, title)})
	c.persistLocked()
	c.publishLocked()
	return true
}

// CancelTurn stops the in-flight reply, if any. The turn ends with
// "Error: response cancelled" in its session.
func (c *Controller) CancelTurn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.turn == nil {
		return false
	}
	c.turn.stop(ErrTurnCancelled)
	return true
}

// Wait blocks until the in-flight turn, if any, has recorded its outcome
// and published the final state. It returns ctx's error if ctx ends first.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	t := c.turn
	c.mu.Unlock()
	if t == nil {
		return nil
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// SEND MESSAGE
// =============================================================================

// SendMessage runs one turn: it appends raw (trimmed) as a user message to
// the active session, streams the reply and appends it to the same session.
//
// Blank input returns ErrEmptyMessage and a concurrent call returns
// ErrTurnInProgress; neither changes state. Otherwise the outcome is recorded
// in the session, and the returned error only reports a failed turn to
// callers that want it.
func (c *Controller) SendMessage(ctx context.Context, raw string) error {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if c.turn != nil {
		c.mu.Unlock()
		return ErrTurnInProgress
	}

	target, ok := c.state.Active()
	if !ok {
		target = c.repo.Create("")
		c.state = Reduce(c.state, SessionCreated{Session: target})
	}

	target = c.repo.AddMessage(target, session.NewMessage{Role: model.RoleUser, Content: text})
	c.state = Reduce(c.state, SessionReplaced{Session: target})
	c.persistLocked()

	if session.ShouldAutoTitle(target) {
		target = c.repo.Rename(target, session.DeriveTitle(text))
		c.state = Reduce(c.state, SessionReplaced{Session: target})
		c.persistLocked()
	}

	t, turnCtx := newTurn(ctx, target.ID, c.idleTimeout)
	c.turn = t
	c.state = Reduce(c.state, TurnStarted{TargetID: target.ID})
	history := target.Messages
	c.publishLocked()

	c.log.Info("turn started",
		zap.String("session", target.ID),
		zap.String("model", c.Model()),
		zap.Int("history", len(history)))

	reply, err := c.stream(turnCtx, t, history)

	return c.finishTurn(turnCtx, t, reply, err)
}

// stream runs the streamer and returns the final text once the complete
// chunk arrives.
func (c *Controller) stream(ctx context.Context, t *turn, history []model.Message) (string, error) {
	if c.streamer == nil {
		return "", &llm.ConfigurationError{Setting: "provider", Message: "no model provider configured"}
	}

	var (
		final    string
		complete bool
	)
	err := c.streamer.Stream(ctx, history, func(chunk llm.Chunk) {
		t.touch()
		if complete {
			return
		}
		if chunk.Complete {
			final, complete = chunk.Text, true
			return
		}
		c.chunkLog.Do(func() {
			c.log.Debug("chunk received", zap.Int("chars", len(chunk.Text)))
		})
		c.apply(false, StreamUpdated{Text: chunk.Text})
	})

	if complete {
		if err != nil {
			c.log.Warn("stream reported an error after completing", zap.Error(err))
		}
		return final, nil
	}
	if err == nil {
		err = &llm.ProviderError{Kind: llm.KindIncomplete, Message: "stream ended before the reply was complete"}
	}
	return "", err
}

// finishTurn appends the outcome to the target session (if it still exists)
// and clears the in-flight markers. It returns err, replaced by the
// cancellation cause when the provider only saw a cancelled context.
func (c *Controller) finishTurn(ctx context.Context, t *turn, reply string, err error) error {
	cause := context.Cause(ctx)
	t.release()

	// Providers may surface ctx.Err(); report why the turn was stopped.
	if err != nil && cause != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		err = cause
	}

	msg := session.NewMessage{Role: model.RoleAssistant, Content: reply, Model: c.Model()}
	switch {
	case err == nil:
		c.log.Info("turn complete", zap.String("session", t.targetID), zap.Int("chars", len(reply)))
	case errors.Is(cause, ErrSessionDeleted):
		c.log.Info("turn dropped, session deleted", zap.String("session", t.targetID))
	default:
		msg = session.NewMessage{Role: model.RoleAssistant, Content: model.ErrorPrefix + err.Error()}
		c.log.Warn("turn failed", zap.String("session", t.targetID), zap.Error(err))
	}

	c.mu.Lock()
	if !errors.Is(cause, ErrSessionDeleted) {
		if target, ok := c.state.Session(t.targetID); ok {
			c.state = Reduce(c.state, SessionReplaced{Session: c.repo.AddMessage(target, msg)})
			c.persistLocked()
		}
	}
	c.state = Reduce(c.state, TurnFinished{})
	c.turn = nil
	c.publishLocked()
	close(t.done)
	return err
}

// =============================================================================
// INTERNALS
// =============================================================================

// apply reduces one action under the lock, optionally persists, and
// publishes the result.
func (c *Controller) apply(persist bool, a Action) {
	c.mu.Lock()
	c.state = Reduce(c.state, a)
	if persist {
		c.persistLocked()
	}
	c.publishLocked()
}

// persistLocked hands the collection to the persister. Called with c.mu
// held so snapshots reach the persister in order.
func (c *Controller) persistLocked() {
	if c.persister != nil {
		c.persister.Persist(c.state.Sessions)
	}
}

// publishLocked releases c.mu and delivers the current state to
// subscribers. It must be called with c.mu held.
func (c *Controller) publishLocked() {
	snapshot := c.state
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	c.subsMu.Lock()
	subs := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subsMu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}
