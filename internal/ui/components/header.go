// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/muse-tui/internal/persona"
	"github.com/jeranaias/muse-tui/internal/ui/styles"
	"github.com/jeranaias/muse-tui/internal/util"
)

// =============================================================================
// HEADER COMPONENT
// =============================================================================

// Header is the title bar: avatar initial, persona name, title badge, and
// on the right the model and audio state.
type Header struct {
	Persona persona.Persona
	Muted   bool
	Playing bool
	Width   int
	theme   *styles.Theme
}

// NewHeader creates a header for p.
func NewHeader(theme *styles.Theme, p persona.Persona) *Header {
	return &Header{Persona: p, Width: 80, theme: theme}
}

// SetWidth updates the header width
func (h *Header) SetWidth(width int) {
	h.Width = width
}

// audioLabel describes the audio state.
func (h *Header) audioLabel() string {
	switch {
	case !h.Persona.HasVoice():
		return "no voice"
	case h.Muted:
		return "muted"
	case h.Playing:
		return "♪ speaking"
	default:
		return "voice on"
	}
}

// View renders the header.
func (h *Header) View() string {
	width := h.Width
	if width < 30 {
		width = 30
	}
	// border (2) + padding (2)
	inner := width - 4

	avatar := h.theme.Avatar.Render(h.Persona.Initial())
	name := h.theme.HeaderName.Render(util.TruncateWidth(h.Persona.Name, 24))
	left := avatar + " " + name
	if title := strings.TrimSpace(h.Persona.Title); title != "" {
		left += " " + h.theme.HeaderBadge.Render(util.TruncateWidth(title, 24))
	}

	audio := h.audioLabel()
	audioStyle := h.theme.HeaderMeta
	switch {
	case h.Muted && h.Persona.HasVoice():
		audioStyle = h.theme.Muted
	case h.Playing:
		audioStyle = h.theme.Playing
	}
	right := audioStyle.Render(audio)

	room := inner - lipgloss.Width(left) - lipgloss.Width(right) - 3
	if model := h.Persona.Model; model != "" && room > 8 {
		right = h.theme.HeaderMeta.Render(util.TruncateWidth(model, room)) + " · " + right
	}

	gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		// Too narrow for both sides; keep the persona.
		plain := h.Persona.Initial() + " " + h.Persona.Name
		return h.theme.Header.Width(width - 2).Render(util.TruncateWidth(plain, inner))
	}
	return h.theme.Header.Width(width - 2).Render(left + strings.Repeat(" ", gap) + right)
}
