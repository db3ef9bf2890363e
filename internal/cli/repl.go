// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// repl.go - line-mode chat with input history.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/peterh/liner"

	"github.com/jeranaias/gemchat/internal/chat"
	"github.com/jeranaias/gemchat/internal/config"
	"github.com/jeranaias/gemchat/internal/model"
)

// =============================================================================
// REPL
// =============================================================================

// REPL is the line-mode chat. It drives the same controller as the TUI and
// prints replies as they stream.
type REPL struct {
	ctx  context.Context
	ctrl *chat.Controller
	out  io.Writer

	line        *liner.State
	historyFile string

	// interrupts cancels the reply in flight; nil outside Run.
	interrupts <-chan os.Signal
}

// NewREPL returns a REPL writing to out.
func NewREPL(ctx context.Context, ctrl *chat.Controller, out io.Writer) *REPL {
	r := &REPL{ctx: ctx, ctrl: ctrl, out: out}
	if dir, err := config.Dir(); err == nil {
		r.historyFile = filepath.Join(dir, "chat_history")
	}
	return r
}

// RunChat starts the controller and runs the REPL on stdin/stdout.
func RunChat(ctx context.Context, app *App) error {
	if err := app.StartChat(ctx); err != nil {
		return err
	}
	app.StartWatch(ctx, nil)
	return NewREPL(ctx, app.Ctrl, os.Stdout).Run()
}

// Run reads lines until /quit, EOF or Ctrl+C at the prompt. Ctrl+C while a
// reply is streaming stops the reply.
func (r *REPL) Run() error {
	r.line = liner.NewLiner()
	defer r.line.Close()
	r.line.SetCtrlCAborts(true)

	r.loadHistory()
	defer r.saveHistory()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)
	r.interrupts = sig

	r.printBanner()

	for {
		input, err := r.line.Prompt("gemchat> ")
		if err != nil {
			// liner.ErrPromptAborted (Ctrl+C) or io.EOF (Ctrl+D)
			fmt.Fprintln(r.out)
			return nil
		}
		if strings.TrimSpace(input) != "" {
			r.line.AppendHistory(input)
		}
		if r.Handle(input) {
			return nil
		}
	}
}

// Handle processes one line of input and reports whether the REPL should
// exit.
func (r *REPL) Handle(input string) (quit bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}
	switch strings.ToLower(input) {
	case "exit", "quit":
		return true
	}
	if strings.HasPrefix(input, "/") {
		return r.command(input)
	}
	r.send(input)
	return false
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func (r *REPL) command(input string) (quit bool) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "/quit", "/exit", "/q":
		return true

	case "/help", "/?":
		r.printHelp()

	case "/new":
		r.ctrl.CreateNewSession()
		fmt.Fprintln(r.out, DimStyle.Render("Started a new chat."))

	case "/list", "/ls":
		r.printList()

	case "/switch", "/s":
		s, err := resolveSession(r.ctrl.State().Sessions, arg)
		if err != nil {
			r.printError(err)
			return false
		}
		r.ctrl.SelectSession(s.ID)
		fmt.Fprintf(r.out, "%s %s\n", DimStyle.Render("Switched to"), TitleStyle.Render(s.Title))
		r.printTranscript(s)

	case "/delete", "/rm":
		s, err := resolveSession(r.ctrl.State().Sessions, arg)
		if err != nil {
			r.printError(err)
			return false
		}
		r.ctrl.DeleteSession(s.ID)
		fmt.Fprintf(r.out, "%s %s\n", DimStyle.Render("Deleted"), s.Title)

	case "/rename":
		active, ok := r.ctrl.ActiveSession()
		if !ok {
			r.printError(errors.New("no chat selected"))
			return false
		}
		if !r.ctrl.RenameSession(active.ID, arg) {
			r.printError(errors.New("usage: /rename <title>"))
			return false
		}
		fmt.Fprintf(r.out, "%s %s\n", DimStyle.Render("Renamed to"), arg)

	case "/history":
		active, ok := r.ctrl.ActiveSession()
		if !ok {
			fmt.Fprintln(r.out, DimStyle.Render("No chat selected."))
			return false
		}
		r.printTranscript(active)

	case "/cancel":
		fmt.Fprintln(r.out, DimStyle.Render("Press Ctrl+C while a reply is streaming to stop it."))

	default:
		r.printError(fmt.Errorf("unknown command %s (type /help for commands)", name))
	}
	return false
}

// =============================================================================
// SENDING
// =============================================================================

// send runs one turn, printing the reply as it grows.
func (r *REPL) send(text string) {
	wake := make(chan struct{}, 1)
	var (
		mu     sync.Mutex
		target string
	)
	unsubscribe := r.ctrl.Subscribe(func(st chat.State) {
		if st.Loading {
			mu.Lock()
			target = st.TargetID
			mu.Unlock()
		}
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	// Drop an interrupt left over from the prompt.
	select {
	case <-r.interrupts:
	default:
	}

	done := make(chan error, 1)
	go func() { done <- r.ctrl.SendMessage(r.ctx, text) }()

	fmt.Fprint(r.out, AssistantStyle.Render("Assistant")+": ")
	printed := ""
	for {
		select {
		case <-wake:
			if st := r.ctrl.State(); st.Loading {
				printed = r.printDelta(printed, st.Streaming)
			}

		case <-r.interrupts:
			r.ctrl.CancelTurn()

		case err := <-done:
			mu.Lock()
			id := target
			mu.Unlock()
			r.finish(id, printed, err)
			return
		}
	}
}

// printDelta writes the part of text not yet printed and returns text.
func (r *REPL) printDelta(printed, text string) string {
	if strings.HasPrefix(text, printed) {
		fmt.Fprint(r.out, text[len(printed):])
	} else {
		fmt.Fprint(r.out, "\n"+text)
	}
	return text
}

// finish prints the rest of the stored reply, or the failure.
func (r *REPL) finish(targetID, printed string, err error) {
	switch {
	case err == nil:
		if s, ok := r.ctrl.State().Session(targetID); ok {
			if last, ok := s.LastMessage(); ok && last.Role == model.RoleAssistant {
				r.printDelta(printed, last.Content)
			}
		}
	case errors.Is(err, chat.ErrSessionDeleted):
		if printed != "" {
			fmt.Fprintln(r.out)
		}
		fmt.Fprint(r.out, WarningStyle.Render("reply discarded: the chat was deleted"))
	default:
		if printed != "" {
			fmt.Fprintln(r.out)
		}
		fmt.Fprint(r.out, ErrorStyle.Render(model.ErrorPrefix+err.Error()))
	}
	fmt.Fprint(r.out, "\n\n")
}

// =============================================================================
// OUTPUT
// =============================================================================

func (r *REPL) printBanner() {
	st := r.ctrl.State()
	fmt.Fprintln(r.out, TitleStyle.Render("gemchat")+" "+DimStyle.Render(fmt.Sprintf(
		"model %s, %d saved chats. Type /help for commands.", r.ctrl.Model(), len(st.Sessions))))
	if active, ok := st.Active(); ok {
		fmt.Fprintf(r.out, "%s %s\n", DimStyle.Render("Continuing"), active.Title)
	}
	fmt.Fprintln(r.out)
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.out, TitleStyle.Render("Commands"))
	for _, c := range [][2]string{
		{"/new", "start a new chat"},
		{"/list", "list chats"},
		{"/switch <n|id>", "switch to a chat"},
		{"/delete <n|id>", "delete a chat"},
		{"/rename <title>", "rename the current chat"},
		{"/history", "show the current chat"},
		{"/quit", "exit (also: exit, quit, Ctrl+D)"},
	} {
		fmt.Fprintf(r.out, "  %-18s %s\n", c[0], DimStyle.Render(c[1]))
	}
	fmt.Fprintln(r.out, DimStyle.Render("Ctrl+C while a reply is streaming stops it."))
}

func (r *REPL) printList() {
	st := r.ctrl.State()
	if len(st.Sessions) == 0 {
		fmt.Fprintln(r.out, DimStyle.Render("No chats yet."))
		return
	}
	for i, s := range st.Sessions {
		marker := " "
		if s.ID == st.ActiveID {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %2d. %s %s\n", marker, i+1, s.Title,
			DimStyle.Render(fmt.Sprintf("(%d msgs, %s)", s.MessageCount(), shortID(s.ID))))
	}
}

func (r *REPL) printTranscript(s model.ChatSession) {
	for _, msg := range s.Messages {
		label := UserStyle.Render(msg.Role.DisplayName())
		if msg.Role == model.RoleAssistant {
			label = AssistantStyle.Render(msg.Role.DisplayName())
		}
		body := msg.Content
		if msg.IsError() {
			body = ErrorStyle.Render(body)
		}
		fmt.Fprintf(r.out, "%s: %s\n", label, body)
	}
	if len(s.Messages) > 0 {
		fmt.Fprintln(r.out)
	}
}

func (r *REPL) printError(err error) {
	fmt.Fprintln(r.out, ErrorStyle.Render("Error: "+err.Error()))
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

func (r *REPL) loadHistory() {
	if r.historyFile == "" {
		return
	}
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
}

// saveHistory writes the input history with owner-only permissions.
func (r *REPL) saveHistory() {
	if r.historyFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0o700); err != nil {
		return
	}
	f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	r.line.WriteHistory(f)
}
