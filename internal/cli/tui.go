// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	uichat "github.com/jeranaias/gemchat/internal/ui/chat"
	"github.com/jeranaias/gemchat/internal/ui/styles"
)

// RunTUI runs the full-screen chat until the user quits.
func RunTUI(ctx context.Context, app *App) error {
	if err := app.StartChat(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	notices := make(chan string, 4)
	app.StartWatch(ctx, func() {
		select {
		case notices <- "Sessions file changed on disk; it will be overwritten on the next save.":
		default:
		}
	})

	ui := app.Config.UI
	m := uichat.New(ctx, app.Ctrl, uichat.Options{
		Theme:          styles.NewTheme(ui.Theme),
		Markdown:       ui.Markdown,
		WordWrap:       ui.WordWrap,
		ShowTimestamps: ui.ShowTimestamps,
		Notices:        notices,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
