// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyMessage is returned by SendMessage for blank input.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrTurnInProgress is returned by SendMessage while a reply is streaming.
	ErrTurnInProgress = errors.New("a response is already in progress")

	// ErrTurnCancelled is the cause recorded when the user cancels a turn.
	ErrTurnCancelled = errors.New("response cancelled")

	// ErrSessionDeleted is the cause recorded when the target session is
	// deleted mid-turn.
	ErrSessionDeleted = errors.New("session deleted")

	// ErrStreamStalled matches any *StalledError.
	ErrStreamStalled = errors.New("stream stalled")
)

// StalledError is the cause recorded when no chunk arrives for Idle.
type StalledError struct {
	Idle time.Duration
}

func (e *StalledError) Error() string {
	return fmt.Sprintf("no response from model for %s", e.Idle)
}

// Is lets errors.Is(err, ErrStreamStalled) match.
func (e *StalledError) Is(target error) bool {
	return target == ErrStreamStalled
}

// =============================================================================
// IN-FLIGHT TURN
// =============================================================================

// turn is the bookkeeping for the single in-flight reply.
type turn struct {
	targetID string
	done     chan struct{}

	mu     sync.Mutex
	cancel context.CancelCauseFunc
	idle   *time.Timer
	window time.Duration
}

// newTurn derives the turn context from parent. A positive window arms an
// idle watchdog that cancels the turn when no chunk arrives in time.
func newTurn(parent context.Context, targetID string, window time.Duration) (*turn, context.Context) {
	ctx, cancel := context.WithCancelCause(parent)
	t := &turn{targetID: targetID, done: make(chan struct{}), cancel: cancel, window: window}
	if window > 0 {
		t.idle = time.AfterFunc(window, func() {
			t.stop(&StalledError{Idle: window})
		})
	}
	return t, ctx
}

// touch restarts the idle window.
func (t *turn) touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.idle != nil {
		t.idle.Reset(t.window)
	}
}

// stop cancels the turn with cause. Only the first cause is kept.
func (t *turn) stop(cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancel(cause)
}

// release disarms the watchdog and frees the context.
func (t *turn) release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.idle != nil {
		t.idle.Stop()
		t.idle = nil
	}
	t.cancel(nil)
}
