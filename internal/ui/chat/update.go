// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	core "github.com/jeranaias/gemchat/internal/chat"
	"github.com/jeranaias/gemchat/internal/model"
)

// Update handles Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		m.refreshTranscript(true)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case stateChangedMsg:
		wasLoading := m.state.Loading
		m.state = m.ctrl.State()
		m.refreshTranscript(false)
		cmds = append(cmds, m.sub.wait())
		if m.state.Loading && !wasLoading {
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case sendDoneMsg:
		switch {
		case errors.Is(msg.err, core.ErrTurnInProgress):
			return m, m.setNotice("A reply is still streaming. Press esc to stop it.")
		case errors.Is(msg.err, core.ErrTurnCancelled):
			return m, m.setNotice("Reply stopped.")
		}
		return m, nil

	case noticeMsg:
		cmds = append(cmds, m.setNotice(msg.text), waitNotice(m.opts.Notices))
		return m, tea.Batch(cmds...)

	case clearNoticeMsg:
		if msg.set.Equal(m.noticeAt) {
			m.notice = ""
		}
		return m, nil

	case spinner.TickMsg:
		if !m.state.Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !key.Matches(msg, m.keys.Delete) {
		m.pendingDelete = ""
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.ctrl.CancelTurn()
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Send):
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		if m.state.Loading {
			return m, m.setNotice("A reply is still streaming. Press esc to stop it.")
		}
		m.input.Reset()
		return m, m.sendCmd(text)

	case key.Matches(msg, m.keys.Cancel):
		m.ctrl.CancelTurn()
		return m, nil

	case key.Matches(msg, m.keys.NewChat):
		m.ctrl.CreateNewSession()
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		active, ok := m.state.Active()
		if !ok {
			return m, nil
		}
		if m.pendingDelete != active.ID {
			m.pendingDelete = active.ID
			return m, m.setNotice("Press ctrl+x again to delete \"" + active.Title + "\".")
		}
		m.pendingDelete = ""
		m.ctrl.DeleteSession(active.ID)
		return m, m.setNotice("Chat deleted.")

	case key.Matches(msg, m.keys.NextSession):
		m.selectAdjacent(1)
		return m, nil

	case key.Matches(msg, m.keys.PrevSession):
		m.selectAdjacent(-1)
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.LineUp(1)
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.LineDown(1)
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
		m.refreshTranscript(false)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// selectAdjacent activates the session delta positions away, wrapping around.
func (m *Model) selectAdjacent(delta int) {
	n := len(m.state.Sessions)
	if n == 0 {
		return
	}
	i := model.FindSession(m.state.Sessions, m.state.ActiveID)
	if i < 0 {
		i = 0
	} else {
		i = ((i+delta)%n + n) % n
	}
	m.ctrl.SelectSession(m.state.Sessions[i].ID)
}
