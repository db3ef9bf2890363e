// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/gemchat/internal/model"
	"github.com/jeranaias/gemchat/internal/ui/styles"
	"github.com/jeranaias/gemchat/internal/util"
)

// =============================================================================
// SESSION LIST
// =============================================================================

// SessionList is the sidebar listing every session, newest first.
type SessionList struct {
	Sessions    []model.ChatSession
	ActiveID    string
	StreamingID string // session receiving a reply, if any

	Width  int
	Height int
}

const (
	activeMarker    = "> "
	inactiveMarker  = "  "
	streamingMarker = " *"
	linesPerItem    = 2
)

// Render draws the list inside theme.Sidebar. Each session takes two lines:
// its title and a meta line with the message count and last update. When
// the list is taller than Height it scrolls to keep the active session in view.
func (l SessionList) Render(theme *styles.Theme) string {
	if l.Width <= 0 {
		return ""
	}
	// Border and padding take two columns.
	inner := l.Width - 2
	if inner < 8 {
		inner = 8
	}

	lines := []string{theme.SidebarHeading.Render(util.TruncateWidth(fmt.Sprintf("Chats (%d)", len(l.Sessions)), inner))}

	if len(l.Sessions) == 0 {
		lines = append(lines, theme.SidebarMeta.Render("none yet"))
	}

	first, last := l.window()
	for i := first; i < last; i++ {
		lines = append(lines, l.renderItem(theme, l.Sessions[i], inner)...)
	}

	body := strings.Join(lines, "\n")
	style := theme.Sidebar.Width(inner)
	if l.Height > 0 {
		style = style.Height(l.Height)
	}
	return style.Render(body)
}

func (l SessionList) renderItem(theme *styles.Theme, s model.ChatSession, width int) []string {
	marker := inactiveMarker
	if s.ID == l.ActiveID {
		marker = activeMarker
	}
	suffix := ""
	if s.ID != "" && s.ID == l.StreamingID {
		suffix = streamingMarker
	}

	// The item style adds one column of left padding.
	titleWidth := width - 1 - lipgloss.Width(marker) - lipgloss.Width(suffix)
	title := marker + util.TruncateWidth(util.FirstLine(s.Title), titleWidth)

	itemStyle := theme.SidebarItem
	if s.ID == l.ActiveID {
		itemStyle = theme.SidebarActive
	}
	titleLine := itemStyle.Render(title)
	if suffix != "" {
		titleLine += theme.SidebarStreaming.Render(suffix)
	}

	meta := fmt.Sprintf("%s%s  %s", inactiveMarker, messageCount(s.MessageCount()), s.UpdatedAt.Local().Format("Jan 2 15:04"))
	metaLine := theme.SidebarMeta.Render(util.TruncateWidth(meta, width-1))

	return []string{titleLine, metaLine}
}

// window returns the half-open range of sessions that fit, scrolled so the
// active session is visible.
func (l SessionList) window() (int, int) {
	n := len(l.Sessions)
	if l.Height <= 0 {
		return 0, n
	}
	// Heading plus its margin.
	capacity := (l.Height - 2) / linesPerItem
	if capacity < 1 {
		capacity = 1
	}
	if n <= capacity {
		return 0, n
	}

	active := model.FindSession(l.Sessions, l.ActiveID)
	first := 0
	if active >= capacity {
		first = active - capacity + 1
	}
	return first, first + capacity
}

func messageCount(n int) string {
	if n == 1 {
		return "1 msg"
	}
	return fmt.Sprintf("%d msgs", n)
}
