// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/gemchat/internal/ui/styles"
	"github.com/jeranaias/gemchat/internal/util"
)

// =============================================================================
// STATUS BAR
// =============================================================================

// KeyHint is one "key action" pair shown in the status bar.
type KeyHint struct {
	Key    string
	Action string
}

// StatusBar shows the model, the turn state and the key hints.
type StatusBar struct {
	Model  string
	Status string // e.g. spinner + "streaming", or a transient notice
	Hints  []KeyHint
	Width  int
}

// Render draws the bar. Hints are dropped from the right until the bar fits.
func (b StatusBar) Render(theme *styles.Theme) string {
	modelName := b.Model
	if b.Width > 0 {
		modelName = util.TruncateWidth(modelName, max(b.Width/2, 8))
	}
	left := theme.StatusKey.Render(modelName)
	if b.Status != "" {
		left += "  " + theme.StatusText.Render(b.Status)
	}

	// Padding takes two columns.
	avail := b.Width - 2 - lipgloss.Width(left) - 2
	hints := make([]string, 0, len(b.Hints))
	used := 0
	for _, h := range b.Hints {
		rendered := theme.StatusKey.Render(h.Key) + " " + theme.StatusText.Render(h.Action)
		w := lipgloss.Width(rendered)
		if used > 0 {
			w += 2
		}
		if used+w > avail {
			break
		}
		hints = append(hints, rendered)
		used += w
	}
	right := strings.Join(hints, "  ")

	gap := b.Width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	line := left + strings.Repeat(" ", gap) + right

	style := theme.StatusBar
	if b.Width > 0 {
		style = style.Width(b.Width).MaxWidth(b.Width)
	}
	return style.Render(line)
}
