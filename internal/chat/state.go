// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "github.com/jeranaias/gemchat/internal/model"

// =============================================================================
// STATE
// =============================================================================

// State is a snapshot of everything the presentation layer shows.
type State struct {
	// Sessions is the full collection, most recently created first.
	Sessions []model.ChatSession

	// ActiveID is the session on screen, or "" when there is none.
	ActiveID string

	// Loading is true while a turn is in flight.
	Loading bool

	// Streaming is the reply text received so far in the current turn.
	Streaming string

	// TargetID is the session the in-flight reply will be appended to.
	TargetID string
}

// Session returns the session with the given ID.
func (s State) Session(id string) (model.ChatSession, bool) {
	if i := model.FindSession(s.Sessions, id); i >= 0 {
		return s.Sessions[i], true
	}
	return model.ChatSession{}, false
}

// Active returns the active session.
func (s State) Active() (model.ChatSession, bool) {
	if s.ActiveID == "" {
		return model.ChatSession{}, false
	}
	return s.Session(s.ActiveID)
}

// StreamingInto reports whether the in-flight reply belongs to session id.
func (s State) StreamingInto(id string) bool {
	return s.Loading && s.TargetID == id
}

// =============================================================================
// ACTIONS
// =============================================================================

// Action is a state transition understood by Reduce.
type Action interface {
	isAction()
}

// SessionsLoaded replaces the collection and activates its first session.
type SessionsLoaded struct{ Sessions []model.ChatSession }

// SessionCreated prepends a session and makes it active.
type SessionCreated struct{ Session model.ChatSession }

// SessionSelected sets the active pointer. An unknown ID leaves no session
// active.
type SessionSelected struct{ ID string }

// SessionDeleted removes a session and repairs the active pointer.
type SessionDeleted struct{ ID string }

// SessionReplaced swaps in a new value for an existing session. It never
// re-adds a session that has been deleted.
type SessionReplaced struct{ Session model.ChatSession }

// TurnStarted marks a reply as in flight for TargetID.
type TurnStarted struct{ TargetID string }

// StreamUpdated carries the cumulative reply text.
type StreamUpdated struct{ Text string }

// TurnFinished clears the in-flight markers.
type TurnFinished struct{}

func (SessionsLoaded) isAction()  {}
func (SessionCreated) isAction()  {}
func (SessionSelected) isAction() {}
func (SessionDeleted) isAction()  {}
func (SessionReplaced) isAction() {}
func (TurnStarted) isAction()     {}
func (StreamUpdated) isAction()   {}
func (TurnFinished) isAction()    {}

// =============================================================================
// REDUCER
// =============================================================================

// Reduce returns the state that results from applying a to s. The input is
// never modified; any change to the collection produces a new slice.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SessionsLoaded:
		s.Sessions = cloneSessions(a.Sessions)
		s.ActiveID = ""
		if len(s.Sessions) > 0 {
			s.ActiveID = s.Sessions[0].ID
		}

	case SessionCreated:
		sessions := make([]model.ChatSession, 0, len(s.Sessions)+1)
		sessions = append(sessions, a.Session)
		s.Sessions = append(sessions, s.Sessions...)
		s.ActiveID = a.Session.ID

	case SessionSelected:
		s.ActiveID = a.ID

	case SessionDeleted:
		i := model.FindSession(s.Sessions, a.ID)
		if i < 0 {
			return s
		}
		sessions := make([]model.ChatSession, 0, len(s.Sessions)-1)
		sessions = append(sessions, s.Sessions[:i]...)
		s.Sessions = append(sessions, s.Sessions[i+1:]...)
		if s.ActiveID == a.ID {
			s.ActiveID = ""
			if len(s.Sessions) > 0 {
				s.ActiveID = s.Sessions[0].ID
			}
		}

	case SessionReplaced:
		i := model.FindSession(s.Sessions, a.Session.ID)
		if i < 0 {
			return s
		}
		s.Sessions = cloneSessions(s.Sessions)
		s.Sessions[i] = a.Session

	case TurnStarted:
		s.Loading = true
		s.Streaming = ""
		s.TargetID = a.TargetID

	case StreamUpdated:
		if s.Loading {
			s.Streaming = a.Text
		}

	case TurnFinished:
		s.Loading = false
		s.Streaming = ""
		s.TargetID = ""
	}
	return s
}

func cloneSessions(in []model.ChatSession) []model.ChatSession {
	out := make([]model.ChatSession, len(in))
	copy(out, in)
	return out
}
