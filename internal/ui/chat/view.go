// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/muse-tui/internal/conversation"
	"github.com/jeranaias/muse-tui/internal/model"
	"github.com/jeranaias/muse-tui/internal/persona"
)

// View renders the screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var body string
	switch m.mode {
	case modePicker:
		body = m.overlay(m.picker.View())
	case modeEditor:
		body = m.overlay(m.editor.View())
	case modeHelp:
		body = m.overlay(m.renderHelp())
	default:
		body = m.viewport.View() + "\n" + m.renderInput()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.header.View(),
		body,
		m.statusBar.View(),
	)
}

// overlay centers a modal in the transcript and input area.
func (m Model) overlay(content string) string {
	return lipgloss.Place(m.width, m.viewport.Height+2, lipgloss.Center, lipgloss.Center, content)
}

// refresh re-renders the transcript into the viewport, following the
// bottom when the user had not scrolled away.
func (m *Model) refresh() {
	follow := m.viewport.AtBottom() || m.viewport.TotalLineCount() <= m.viewport.Height
	m.viewport.SetContent(m.renderTranscript())
	if follow {
		m.viewport.GotoBottom()
	}
	m.statusBar.State = phaseLabel(m.s.orch)
}

func phaseLabel(o *conversation.Orchestrator) string {
	if !o.Busy() {
		return ""
	}
	switch o.Phase() {
	case conversation.PhaseNarrationReady:
		return "composing…"
	case conversation.PhaseStreaming:
		return "responding…"
	default:
		return "thinking…"
	}
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func (m *Model) renderTranscript() string {
	p := m.s.orch.Persona()
	turns := m.s.orch.Transcript()

	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		if t.IsMuse() {
			parts = append(parts, m.renderMuseTurn(p, t))
		} else {
			parts = append(parts, m.renderUserTurn(t))
		}
	}
	return strings.Join(parts, "\n\n")
}

func (m *Model) renderUserTurn(t model.Turn) string {
	label := m.theme.UserLabel.Render("You") + " " + m.theme.Timestamp.Render(t.Timestamp.Format("15:04"))
	content := m.theme.UserContent.Width(m.contentWidth()).Render(t.Content)
	return label + "\n" + content
}

func (m *Model) renderMuseTurn(p persona.Persona, t model.Turn) string {
	width := m.contentWidth()
	var b strings.Builder
	b.WriteString(m.theme.MuseLabel.Render(p.Name))
	b.WriteString(" ")
	b.WriteString(m.theme.Timestamp.Render(t.Timestamp.Format("15:04")))

	if n := narrationText(t.Narration); n != "" {
		b.WriteString("\n")
		b.WriteString(m.theme.Narration.Width(width).Render(n))
	}

	b.WriteString("\n")
	switch {
	case t.IsLoading():
		b.WriteString(m.spinner.View() + " " + m.theme.Thinking.Render("thinking…"))
	case t.Failed:
		b.WriteString(m.theme.FailedTurn.Width(width).Render(t.Content))
	case t.Pending:
		b.WriteString(m.theme.MuseContent.Width(width).Render(t.Content + "▍"))
	default:
		b.WriteString(m.markdown(t))
	}
	return b.String()
}

// narrationText strips the asterisks the model wraps narration in; the
// narration style already italicizes it.
func narrationText(n string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(n), "*"))
}

// markdown renders settled content through glamour, caching by turn id.
func (m *Model) markdown(t model.Turn) string {
	if out, ok := m.rendered[t.ID]; ok {
		return out
	}
	out := m.theme.MuseContent.Width(m.contentWidth()).Render(t.Content)
	if m.renderer != nil {
		if r, err := m.renderer.Render(t.Content); err == nil {
			out = strings.Trim(r, "\n")
		} else {
			m.deps.Logger.Debug().Err(err).Str("turn", t.ID).Msg("markdown render failed")
		}
	}
	m.rendered[t.ID] = out
	return out
}

// =============================================================================
// INPUT AND HELP
// =============================================================================

func (m Model) renderInput() string {
	line := m.input.View()
	if m.s.orch.Busy() {
		line = m.theme.InputDisabled.Render(m.s.orch.Persona().Name + " is replying… (esc to cancel)")
	}
	return m.theme.InputContainer.Width(m.width).Render(line)
}

func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(m.theme.ModalTitle.Render("Keys"))
	b.WriteString("\n")
	for _, group := range m.keys.FullHelp() {
		for _, k := range group {
			h := k.Help()
			b.WriteString(m.theme.FormLabel.Render(h.Key) + " " + m.theme.FormValue.Render(h.Desc) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.theme.ModalTitle.Render("Commands"))
	b.WriteString("\n")
	for _, c := range Commands {
		name := c.Name
		if c.Args != "" {
			name += " " + c.Args
		}
		b.WriteString(m.theme.FormLabelFocused.Width(24).Render(name) + " " + m.theme.FormValue.Render(c.Usage) + "\n")
	}
	b.WriteString("\n")
	b.WriteString(m.theme.FormHint.Render("press any key to close"))

	w, _ := m.modalSize()
	return m.theme.Modal.Width(w).Render(b.String())
}
