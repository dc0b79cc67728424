// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/muse-tui/internal/ui/styles"
	"github.com/jeranaias/muse-tui/internal/util"
)

// Shortcut is a key hint.
type Shortcut struct {
	Key  string
	Desc string
}

// ChatShortcuts are the hints shown while chatting.
var ChatShortcuts = []Shortcut{
	{"enter", "send"},
	{"esc", "cancel"},
	{"^p", "personas"},
	{"^e", "edit"},
	{"^n", "new"},
	{"^t", "mute"},
	{"^r", "replay"},
	{"^c", "quit"},
}

// StatusBar shows the current toast on the left and key hints on the right.
type StatusBar struct {
	Width     int
	Shortcuts []Shortcut
	// State is a short phase label such as "thinking…" shown when no toast
	// is up.
	State string
	toast *Toast
	theme *styles.Theme
}

// NewStatusBar creates a status bar with the chat shortcuts.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{Width: 80, Shortcuts: ChatShortcuts, theme: theme}
}

// SetWidth updates the status bar width
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

// Show displays t, replacing any current toast.
func (s *StatusBar) Show(t Toast) {
	s.toast = &t
}

// Dismiss removes the toast with id, if it is still showing.
func (s *StatusBar) Dismiss(id int64) {
	if s.toast != nil && s.toast.ID == id {
		s.toast = nil
	}
}

// Toast returns the toast currently shown, if any.
func (s *StatusBar) Toast() (Toast, bool) {
	if s.toast == nil {
		return Toast{}, false
	}
	return *s.toast, true
}

func (s *StatusBar) toastStyle(kind ToastKind) lipgloss.Style {
	switch kind {
	case ToastSuccess:
		return s.theme.ToastSuccess
	case ToastError:
		return s.theme.ToastError
	default:
		return s.theme.ToastInfo
	}
}

// View renders the status bar.
func (s *StatusBar) View() string {
	width := s.Width
	if width < 20 {
		width = 20
	}
	inner := width - 2

	var left string
	switch {
	case s.toast != nil:
		left = s.toastStyle(s.toast.Kind).Render(util.TruncateWidth(util.FirstLine(s.toast.Message), inner*2/3))
	case s.State != "":
		left = s.theme.ShortcutDesc.Render(s.State)
	}

	var hints []string
	room := inner - lipgloss.Width(left) - 2
	used := 0
	for _, sc := range s.Shortcuts {
		hint := s.theme.ShortcutKey.Render(sc.Key) + " " + s.theme.ShortcutDesc.Render(sc.Desc)
		w := lipgloss.Width(hint) + 2
		if used+w > room {
			break
		}
		hints = append(hints, hint)
		used += w
	}
	right := strings.Join(hints, "  ")

	gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return s.theme.StatusBar.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}
