// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/gemchat/internal/model"
	"github.com/jeranaias/gemchat/internal/ui/styles"
)

// =============================================================================
// MESSAGE RENDERING
// =============================================================================

// MessageView is one transcript entry ready to draw. Body is already
// rendered (Markdown or highlighted); RenderMessage only frames it.
type MessageView struct {
	Role          model.Role
	Body          string
	IsError       bool
	Streaming     bool
	Timestamp     string // empty hides the timestamp
	ModelName     string
	ShowModelName bool
}

// RenderMessage draws a role label line followed by the body, wrapped to width.
func RenderMessage(theme *styles.Theme, v MessageView, width int) string {
	label := theme.UserLabel.Render(v.Role.DisplayName())
	if v.Role == model.RoleAssistant {
		name := v.Role.DisplayName()
		if v.ShowModelName && v.ModelName != "" {
			name += " (" + v.ModelName + ")"
		}
		label = theme.AssistantLabel.Render(name)
	}
	if v.Timestamp != "" {
		label += " " + theme.Timestamp.Render(v.Timestamp)
	}
	if v.Streaming {
		label += theme.SidebarStreaming.Render(" ...")
	}

	bodyStyle := theme.MessageBody
	if v.IsError {
		bodyStyle = theme.ErrorBody
	}
	if width > 0 {
		bodyStyle = bodyStyle.Width(width)
	}

	return lipgloss.JoinVertical(lipgloss.Left, label, bodyStyle.Render(v.Body))
}
