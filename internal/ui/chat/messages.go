// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "time"

// stateChangedMsg wakes the model after the controller published a new
// state. The model reads the state itself, so coalesced wake-ups lose nothing.
type stateChangedMsg struct{}

// sendDoneMsg reports the end of a SendMessage call.
type sendDoneMsg struct {
	err error
}

// noticeMsg shows a transient line in the status bar.
type noticeMsg struct {
	text string
}

// clearNoticeMsg clears the notice set at the given time.
type clearNoticeMsg struct {
	set time.Time
}
