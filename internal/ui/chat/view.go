// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/gemchat/internal/model"
	"github.com/jeranaias/gemchat/internal/ui/components"
	"github.com/jeranaias/gemchat/internal/util"
)

const (
	headerHeight = 1
	statusHeight = 1
	inputHeight  = 3 // text line plus border
)

// =============================================================================
// LAYOUT
// =============================================================================

// layout sizes the viewport and input for the current window.
func (m *Model) layout() {
	m.theme.SetSize(m.width, m.height)

	helpHeight := 0
	if m.help.ShowAll {
		helpHeight = lipgloss.Height(m.help.View(m.keys))
	}

	vpHeight := m.height - headerHeight - statusHeight - inputHeight - helpHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = m.transcriptWidth()
	m.viewport.Height = vpHeight

	// Border, padding and prompt.
	m.input.Width = m.width - 4 - lipgloss.Width(m.input.Prompt) - 1
	if m.input.Width < 1 {
		m.input.Width = 1
	}
	m.help.Width = m.width
}

func (m Model) sidebarWidth() int {
	return m.theme.SidebarWidth()
}

func (m Model) transcriptWidth() int {
	w := m.width - m.sidebarWidth()
	if w < 1 {
		w = 1
	}
	return w
}

// bodyWidth is the wrap width of message text inside the transcript.
func (m Model) bodyWidth() int {
	w := m.transcriptWidth() - 3
	if m.opts.WordWrap > 0 && m.opts.WordWrap < w {
		w = m.opts.WordWrap
	}
	if w < 10 {
		w = 10
	}
	return w
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// refreshTranscript rebuilds the viewport content. It follows the bottom
// when the view was already there, when the session changed, or when forced.
func (m *Model) refreshTranscript(force bool) {
	if !m.ready {
		return
	}
	if m.renderedWidth != m.bodyWidth() {
		m.rendered = make(map[string]string)
		m.renderedWidth = m.bodyWidth()
	}

	follow := force || m.viewport.AtBottom() || m.shownSession != m.state.ActiveID
	m.shownSession = m.state.ActiveID

	m.viewport.SetContent(m.transcript())
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) transcript() string {
	active, ok := m.state.Active()
	if !ok {
		return m.theme.EmptyState.Render("No chat selected. Type a message to start one, or press ctrl+n.")
	}

	streaming := m.state.StreamingInto(active.ID)
	if len(active.Messages) == 0 && !streaming {
		return m.theme.EmptyState.Render("Start the conversation by typing below.")
	}

	width := m.bodyWidth()
	blocks := make([]string, 0, len(active.Messages)+1)
	for _, msg := range active.Messages {
		blocks = append(blocks, components.RenderMessage(m.theme, m.messageView(msg), width))
	}

	if streaming {
		body := components.HighlightFences(m.state.Streaming, m.theme.IsDark)
		if body == "" {
			body = m.theme.Timestamp.Render("thinking...")
		}
		blocks = append(blocks, components.RenderMessage(m.theme, components.MessageView{
			Role:      model.RoleAssistant,
			Body:      body,
			Streaming: true,
		}, width))
	}

	return strings.Join(blocks, "\n\n")
}

func (m *Model) messageView(msg model.Message) components.MessageView {
	v := components.MessageView{
		Role:    msg.Role,
		Body:    msg.Content,
		IsError: msg.IsError(),
	}
	if m.opts.ShowTimestamps {
		v.Timestamp = msg.Timestamp.Local().Format("15:04")
	}
	if msg.Role == model.RoleAssistant && !v.IsError && m.opts.Markdown {
		v.Body = m.renderMarkdown(msg)
	}
	return v
}

func (m *Model) renderMarkdown(msg model.Message) string {
	if out, ok := m.rendered[msg.ID]; ok {
		return out
	}
	out := m.md.Render(msg.Content, m.bodyWidth())
	if msg.ID != "" {
		m.rendered[msg.ID] = out
	}
	return out
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	sections := []string{m.headerView(), m.bodyView(), m.inputView(), m.statusView()}
	if m.help.ShowAll {
		sections = append(sections, m.help.View(m.keys))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) headerView() string {
	title := model.DefaultTitle
	if active, ok := m.state.Active(); ok {
		title = active.Title
	}
	brand := m.theme.HeaderBrand.Render("gemchat")
	avail := m.width - lipgloss.Width(brand) - 5
	subtitle := m.theme.HeaderSubtitle.Render(util.TruncateWidth(util.FirstLine(title), avail))
	return m.theme.Header.Width(m.width).MaxWidth(m.width).Render(brand + "  " + subtitle)
}

func (m Model) bodyView() string {
	vp := m.viewport.View()
	if m.sidebarWidth() == 0 {
		return vp
	}

	streamingID := ""
	if m.state.Loading {
		streamingID = m.state.TargetID
	}
	sidebar := components.SessionList{
		Sessions:    m.state.Sessions,
		ActiveID:    m.state.ActiveID,
		StreamingID: streamingID,
		Width:       m.sidebarWidth(),
		Height:      m.viewport.Height,
	}.Render(m.theme)

	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, vp)
}

func (m Model) inputView() string {
	return m.theme.InputContainer.Width(m.width - 2).Render(m.input.View())
}

func (m Model) statusView() string {
	status := m.notice
	if status == "" && m.state.Loading {
		status = m.spinner.View() + " replying... (esc to stop)"
	}

	hints := make([]components.KeyHint, 0, len(m.keys.ShortHelp()))
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		hints = append(hints, components.KeyHint{Key: h.Key, Action: h.Desc})
	}

	return components.StatusBar{
		Model:  m.ctrl.Model(),
		Status: status,
		Hints:  hints,
		Width:  m.width,
	}.Render(m.theme)
}
