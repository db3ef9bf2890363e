// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	core "github.com/jeranaias/gemchat/internal/chat"
)

// =============================================================================
// CONTROLLER SUBSCRIPTION
// =============================================================================

// subscription turns controller callbacks into Bubble Tea messages. The
// callback must not block, so it only drops a token into a one-slot channel;
// bursts of stream chunks collapse into a single wake-up.
type subscription struct {
	wake        chan struct{}
	unsubscribe func()
}

func newSubscription(ctrl Controller) *subscription {
	s := &subscription{wake: make(chan struct{}, 1)}
	s.unsubscribe = ctrl.Subscribe(func(core.State) {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	})
	return s
}

// wait returns a command that blocks until the next state change.
func (s *subscription) wait() tea.Cmd {
	return func() tea.Msg {
		<-s.wake
		return stateChangedMsg{}
	}
}

// waitNotice returns a command that delivers the next external notice.
func waitNotice(ch <-chan string) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		text, ok := <-ch
		if !ok {
			return nil
		}
		return noticeMsg{text: text}
	}
}

// clearNoticeAfter clears a notice once d has passed, unless a newer one replaced it.
func clearNoticeAfter(set time.Time, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearNoticeMsg{set: set}
	})
}
