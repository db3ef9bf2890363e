// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/gemchat/internal/model"
)

// =============================================================================
// REPOSITORY
// =============================================================================

// Repository creates and evolves sessions. Now and NewID are injectable so
// tests can pin timestamps and identifiers; the zero value uses UTC wall-clock
// time and random UUIDs.
type Repository struct {
	Now   func() time.Time
	NewID func() string
}

// NewMessage is the caller-supplied part of a message. ID and Timestamp are
// assigned by the repository.
type NewMessage struct {
	Role    model.Role
	Content string
	Model   string
}

func (r Repository) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

func (r Repository) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return uuid.NewString()
}

// Create returns a fresh, empty session. A blank title becomes
// model.DefaultTitle.
func (r Repository) Create(title string) model.ChatSession {
	title = strings.TrimSpace(title)
	if title == "" {
		title = model.DefaultTitle
	}
	now := r.now()
	return model.ChatSession{
		ID:        r.newID(),
		Title:     title,
		Messages:  []model.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddMessage returns s with msg appended and UpdatedAt advanced. The
// returned session owns a new message slice.
func (r Repository) AddMessage(s model.ChatSession, msg NewMessage) model.ChatSession {
	now := r.now()

	messages := make([]model.Message, len(s.Messages), len(s.Messages)+1)
	copy(messages, s.Messages)
	messages = append(messages, model.Message{
		ID:        r.newID(),
		Role:      msg.Role,
		Content:   msg.Content,
		Timestamp: now,
		Model:     msg.Model,
	})

	s.Messages = messages
	s.UpdatedAt = laterOf(s.CreatedAt, now)
	return s
}

// Rename returns s with the given title and UpdatedAt advanced.
func (r Repository) Rename(s model.ChatSession, title string) model.ChatSession {
	messages := make([]model.Message, len(s.Messages))
	copy(messages, s.Messages)

	s.Messages = messages
	s.Title = title
	s.UpdatedAt = laterOf(s.CreatedAt, r.now())
	return s
}

// laterOf keeps UpdatedAt from moving before CreatedAt if the clock steps back.
func laterOf(created, now time.Time) time.Time {
	if now.Before(created) {
		return created
	}
	return now
}
