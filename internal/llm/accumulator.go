// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import "strings"

// Accumulator turns provider deltas into cumulative chunks.
type Accumulator struct {
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	text     strings.Builder
	emit     ChunkFunc
	finished bool
}

// NewAccumulator returns an accumulator that reports to emit.
func NewAccumulator(emit ChunkFunc) *Accumulator {
	return &Accumulator{emit: emit}
}

// Add appends delta and emits the running text. Empty deltas and deltas
// after Finish are ignored.
func (a *Accumulator) Add(delta string) {
	if delta == "" || a.finished {
		return
	}
	a.text.WriteString(delta)
	a.emit(Chunk{Text: a.text.String()})
}

// Finish emits the complete chunk. Only the first call has any effect.
func (a *Accumulator) Finish() {
	if a.finished {
		return
	}
	a.finished = true
	a.emit(Chunk{Text: a.text.String(), Complete: true})
}

// Text returns the text accumulated so far.
func (a *Accumulator) Text() string {
	return a.text.String()
}

// Finished reports whether the complete chunk has been emitted.
func (a *Accumulator) Finished() bool {
	return a.finished
}
