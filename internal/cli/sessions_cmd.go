// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// sessions_cmd.go - the "sessions" command: list, show, export, delete.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/gemchat/internal/export"
	"github.com/jeranaias/gemchat/internal/model"
	"github.com/jeranaias/gemchat/internal/ui/components"
	"github.com/jeranaias/gemchat/internal/ui/styles"
	"github.com/jeranaias/gemchat/internal/util"
)

// HandleSessions runs "gemchat sessions <subcommand>".
func HandleSessions(ctx context.Context, app *App, args Args, out io.Writer) error {
	sub := args.Sub()
	sessions := app.Store.Load(ctx)

	switch strings.ToLower(sub.Subcommand()) {
	case "", "list", "ls":
		listSessions(out, sessions)
		return nil

	case "show", "cat":
		s, err := resolveSession(sessions, sub.Positional(1))
		if err != nil {
			return err
		}
		return showSession(out, app, s)

	case "export":
		s, err := resolveSession(sessions, sub.Positional(1))
		if err != nil {
			return err
		}
		exp, err := export.ForFormat(sub.FlagOrDefault("format", "md"), export.DefaultOptions())
		if err != nil {
			return err
		}
		path, err := export.ToFile(&s, exp, sub.FlagOrDefault("out", "."))
		if err != nil {
			return err
		}
		app.Log.Info("session exported", zap.String("session", s.ID), zap.String("path", path))
		fmt.Fprintln(out, styles.RenderSuccess("Exported to "+path))
		return nil

	case "delete", "rm":
		s, err := resolveSession(sessions, sub.Positional(1))
		if err != nil {
			return err
		}
		remaining := make([]model.ChatSession, 0, len(sessions)-1)
		for _, other := range sessions {
			if other.ID != s.ID {
				remaining = append(remaining, other)
			}
		}
		if err := app.Store.Commit(ctx, remaining); err != nil {
			return err
		}
		app.Log.Info("session deleted", zap.String("session", s.ID))
		fmt.Fprintln(out, styles.RenderSuccess(fmt.Sprintf("Deleted %q", s.Title)))
		return nil

	default:
		return fmt.Errorf("unknown sessions subcommand %q (want list, show, export or delete)", sub.Subcommand())
	}
}

func listSessions(out io.Writer, sessions []model.ChatSession) {
	if len(sessions) == 0 {
		fmt.Fprintln(out, DimStyle.Render("No saved chats."))
		return
	}
	fmt.Fprintln(out, TitleStyle.Render(fmt.Sprintf("Chats (%d)", len(sessions))))
	fmt.Fprintf(out, "%4s  %-8s  %-40s  %5s  %s\n", "#", "ID", "TITLE", "MSGS", "UPDATED")
	for i, s := range sessions {
		title := util.TruncateWidth(s.Title, 40)
		fmt.Fprintf(out, "%4d  %-8s  %s%s  %5d  %s\n",
			i+1,
			shortID(s.ID),
			title, strings.Repeat(" ", max(0, 40-util.StringWidth(title))),
			s.MessageCount(),
			s.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
}

// showSession prints the session as Markdown, rendered with glamour when
// stdout is a terminal.
func showSession(out io.Writer, app *App, s model.ChatSession) error {
	opts := export.DefaultOptions()
	opts.IncludeMetadata = false
	opts.IncludeTimestamps = app.Config.UI.ShowTimestamps

	md, err := export.NewMarkdownExporter(opts).Export(&s)
	if err != nil {
		return err
	}

	if f, ok := out.(*os.File); ok && f == os.Stdout && IsStdoutTTY() && app.Config.UI.Markdown {
		theme := styles.NewTheme(app.Config.UI.Theme)
		fmt.Fprintln(out, components.NewMarkdownRenderer(theme.GlamourStyle()).Render(string(md), TerminalWidth()))
		return nil
	}
	_, err = out.Write(md)
	return err
}
