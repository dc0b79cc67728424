// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// Header
	Header      lipgloss.Style
	Avatar      lipgloss.Style
	HeaderName  lipgloss.Style
	HeaderBadge lipgloss.Style
	HeaderMeta  lipgloss.Style

	// Transcript
	UserLabel   lipgloss.Style
	UserContent lipgloss.Style
	MuseLabel   lipgloss.Style
	Narration   lipgloss.Style
	MuseContent lipgloss.Style
	FailedTurn  lipgloss.Style
	Thinking    lipgloss.Style
	Timestamp   lipgloss.Style
	TurnDivider lipgloss.Style

	// Input
	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	InputDisabled  lipgloss.Style

	// Status bar and toasts
	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
	ToastInfo    lipgloss.Style
	ToastSuccess lipgloss.Style
	ToastError   lipgloss.Style
	Muted        lipgloss.Style
	Playing      lipgloss.Style

	// Overlays (editor, picker, help)
	Modal              lipgloss.Style
	ModalTitle         lipgloss.Style
	FormLabel          lipgloss.Style
	FormLabelFocused   lipgloss.Style
	FormValue          lipgloss.Style
	FormHint           lipgloss.Style
	FormError          lipgloss.Style
	PickerItem         lipgloss.Style
	PickerItemSelected lipgloss.Style
	PickerMeta         lipgloss.Style
}

// NewTheme creates a theme for mode: "dark" and "light" force the palette,
// anything else asks the terminal.
func NewTheme(mode string) *Theme {
	profile := termenv.ColorProfile()
	var isDark bool
	switch strings.ToLower(mode) {
	case "dark":
		isDark = true
		lipgloss.SetHasDarkBackground(true)
	case "light":
		isDark = false
		lipgloss.SetHasDarkBackground(false)
	default:
		isDark = termenv.HasDarkBackground()
	}

	t := &Theme{IsDark: isDark, ColorProfile: profile}
	t.initStyles()
	return t
}

// GlamourStyle maps the theme onto a glamour standard style name when the
// configured style is "auto".
func (t *Theme) GlamourStyle(configured string) string {
	if configured != "" && !strings.EqualFold(configured, "auto") {
		return configured
	}
	if t.ColorProfile == termenv.Ascii {
		return "notty"
	}
	if t.IsDark {
		return "dark"
	}
	return "light"
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Violet).
		Padding(0, 1)

	t.Avatar = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextInverse).
		Background(Violet).
		Padding(0, 1)

	t.HeaderName = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextPrimary)

	t.HeaderBadge = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(VioletDeep).
		Padding(0, 1)

	t.HeaderMeta = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Sky)

	t.UserContent = lipgloss.NewStyle().
		Foreground(TextPrimary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Sky).
		PaddingLeft(1)

	t.MuseLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Violet)

	t.Narration = lipgloss.NewStyle().
		Italic(true).
		Foreground(Pink)

	t.MuseContent = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.FailedTurn = lipgloss.NewStyle().
		Foreground(Rose)

	t.Thinking = lipgloss.NewStyle().
		Italic(true).
		Foreground(TextMuted)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.TurnDivider = lipgloss.NewStyle().
		Foreground(Overlay)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Bold(true).
		Foreground(Violet)

	t.InputDisabled = lipgloss.NewStyle().
		Italic(true).
		Foreground(TextMuted)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)

	t.ShortcutKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(Violet)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	toast := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	t.ToastInfo = toast.Foreground(TextInverse).Background(Sky)
	t.ToastSuccess = toast.Foreground(TextInverse).Background(Emerald)
	t.ToastError = toast.Foreground(TextInverse).Background(Rose)

	t.Muted = lipgloss.NewStyle().Foreground(Amber)
	t.Playing = lipgloss.NewStyle().Foreground(Pink).Bold(true)

	t.Modal = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Violet).
		Padding(1, 2)

	t.ModalTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Violet).
		MarginBottom(1)

	t.FormLabel = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Width(16)

	t.FormLabelFocused = t.FormLabel.
		Bold(true).
		Foreground(Violet)

	t.FormValue = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.FormHint = lipgloss.NewStyle().
		Italic(true).
		Foreground(TextMuted)

	t.FormError = lipgloss.NewStyle().
		Foreground(Rose)

	t.PickerItem = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)

	t.PickerItemSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextInverse).
		Background(Violet).
		PaddingLeft(1).
		PaddingRight(1)

	t.PickerMeta = lipgloss.NewStyle().
		Foreground(TextMuted)
}

// SetSize updates the layout dimensions.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// LayoutMode represents the current layout mode based on terminal width.
type LayoutMode int

const (
	LayoutCompact LayoutMode = iota // < 60 columns
	LayoutNormal                    // 60-119 columns
	LayoutWide                      // >= 120 columns
)

// GetLayoutMode returns the layout mode for the current width.
func (t *Theme) GetLayoutMode() LayoutMode {
	switch {
	case t.Width < 60:
		return LayoutCompact
	case t.Width < 120:
		return LayoutNormal
	default:
		return LayoutWide
	}
}
