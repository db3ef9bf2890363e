// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"sync"

	"github.com/jeranaias/gemchat/internal/model"
)

// AsyncWriter saves snapshots on a background goroutine so callers never
// block on the slot. A snapshot submitted while an older one is still
// waiting replaces it; since every save is a full replace, only the newest
// pending snapshot matters.
type AsyncWriter struct {
	store *Store

	mu      sync.Mutex
	idle    *sync.Cond
	pending []model.ChatSession
	dirty   bool
	queued  uint64 // snapshots submitted
	written uint64 // highest submission number already saved
	closed  bool

	wake    chan struct{}
	quit    chan struct{}
	stopped chan struct{}
}

// NewAsyncWriter starts the background writer for store.
func NewAsyncWriter(store *Store) *AsyncWriter {
	w := &AsyncWriter{
		store:   store,
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	w.idle = sync.NewCond(&w.mu)
	go w.run()
	return w
}

// Persist queues sessions for saving and returns immediately. After Close it
// saves synchronously.
func (w *AsyncWriter) Persist(sessions []model.ChatSession) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.store.Save(context.Background(), sessions)
		return
	}
	w.pending = sessions
	w.dirty = true
	w.queued++
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Flush blocks until every snapshot submitted so far has been saved.
func (w *AsyncWriter) Flush() {
	w.mu.Lock()
	for w.written < w.queued {
		w.idle.Wait()
	}
	w.mu.Unlock()
}

// Close saves any pending snapshot and stops the writer. It does not close
// the underlying store.
func (w *AsyncWriter) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.stopped
		return
	}
	w.closed = true
	w.mu.Unlock()

	close(w.quit)
	<-w.stopped
}

func (w *AsyncWriter) run() {
	defer close(w.stopped)
	for {
		select {
		case <-w.wake:
			w.drain()
		case <-w.quit:
			w.drain()
			return
		}
	}
}

func (w *AsyncWriter) drain() {
	for {
		w.mu.Lock()
		if !w.dirty {
			w.mu.Unlock()
			return
		}
		snapshot, seq := w.pending, w.queued
		w.pending, w.dirty = nil, false
		w.mu.Unlock()

		w.store.Save(context.Background(), snapshot)

		w.mu.Lock()
		w.written = seq
		w.idle.Broadcast()
		w.mu.Unlock()
	}
}
