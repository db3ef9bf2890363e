// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jeranaias/gemchat/internal/model"
)

// resolveSession finds a session by its 1-based position in the list, its
// full ID, or a unique ID prefix.
func resolveSession(sessions []model.ChatSession, ref string) (model.ChatSession, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.ChatSession{}, fmt.Errorf("session reference is required")
	}

	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(sessions) {
			return model.ChatSession{}, fmt.Errorf("no session number %d (have %d)", n, len(sessions))
		}
		return sessions[n-1], nil
	}

	if i := model.FindSession(sessions, ref); i >= 0 {
		return sessions[i], nil
	}

	var matches []model.ChatSession
	for _, s := range sessions {
		if strings.HasPrefix(s.ID, ref) {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return model.ChatSession{}, fmt.Errorf("no session matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return model.ChatSession{}, fmt.Errorf("%q matches %d sessions; use more of the ID", ref, len(matches))
	}
}

// shortID returns the first 8 characters of id.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
