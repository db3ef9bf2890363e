// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	core "github.com/jeranaias/gemchat/internal/chat"
	"github.com/jeranaias/gemchat/internal/model"
	"github.com/jeranaias/gemchat/internal/ui/components"
	"github.com/jeranaias/gemchat/internal/ui/styles"
)

// Controller is the part of chat.Controller the screen drives.
type Controller interface {
	State() core.State
	Subscribe(fn func(core.State)) (unsubscribe func())
	SendMessage(ctx context.Context, raw string) error
	CreateNewSession() model.ChatSession
	SelectSession(id string) bool
	DeleteSession(id string) bool
	CancelTurn() bool
	Model() string
}

// Options configures the chat screen.
type Options struct {
	Theme *styles.Theme

	// Markdown renders finished assistant replies with glamour.
	Markdown bool

	// WordWrap fixes the transcript width; 0 follows the terminal.
	WordWrap int

	ShowTimestamps bool

	// Notices delivers one-line messages from outside the controller, such
	// as another process rewriting the sessions file.
	Notices <-chan string
}

const noticeTTL = 4 * time.Second

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctrl Controller
	ctx  context.Context
	opts Options

	theme *styles.Theme
	keys  KeyMap
	md    *components.MarkdownRenderer

	// Snapshot of controller state as of the last wake-up.
	state core.State

	width  int
	height int
	ready  bool

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	help     help.Model

	sub *subscription

	// rendered caches finished assistant messages by ID. Messages never
	// change, so entries only go stale on resize.
	rendered      map[string]string
	renderedWidth int

	// shownSession is the session whose transcript is in the viewport.
	shownSession string

	// pendingDelete holds the session ID awaiting a second ctrl+x.
	pendingDelete string

	notice   string
	noticeAt time.Time
}

// New creates the chat screen for ctrl. ctx is the parent of every turn.
func New(ctx context.Context, ctrl Controller, opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme("auto")
	}

	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.Prompt = "> "
	input.PromptStyle = theme.InputPrompt
	input.CharLimit = 0
	input.Focus()

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(theme.Spinner),
	)

	h := help.New()
	h.ShowAll = false

	return Model{
		ctrl:     ctrl,
		ctx:      ctx,
		opts:     opts,
		theme:    theme,
		keys:     DefaultKeyMap(),
		md:       components.NewMarkdownRenderer(theme.GlamourStyle()),
		state:    ctrl.State(),
		viewport: viewport.New(0, 0),
		input:    input,
		spinner:  sp,
		help:     h,
		sub:      newSubscription(ctrl),
		rendered: make(map[string]string),
	}
}

// Init starts listening for controller and external notices.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.sub.wait(),
		waitNotice(m.opts.Notices),
	)
}

// Close stops the controller subscription.
func (m Model) Close() {
	if m.sub != nil && m.sub.unsubscribe != nil {
		m.sub.unsubscribe()
	}
}

// sendCmd runs one turn off the UI goroutine.
func (m Model) sendCmd(text string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return sendDoneMsg{err: ctrl.SendMessage(ctx, text)}
	}
}

func (m *Model) setNotice(text string) tea.Cmd {
	m.notice = text
	m.noticeAt = time.Now()
	return clearNoticeAfter(m.noticeAt, noticeTTL)
}
