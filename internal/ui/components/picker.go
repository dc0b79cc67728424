// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/muse-tui/internal/persona"
	"github.com/jeranaias/muse-tui/internal/ui/styles"
	"github.com/jeranaias/muse-tui/internal/util"
)

// PickerAction is what the user asked the persona picker to do.
type PickerAction int

const (
	PickerNone PickerAction = iota
	PickerActivate
	PickerEdit
	PickerDelete
	PickerNew
	PickerClose
)

// PersonaPicker lists saved personas. Typing filters the list; enter
// activates, ctrl+e edits, ctrl+d deletes (after a y/n confirmation), ctrl+n
// creates, esc closes.
type PersonaPicker struct {
	personas []persona.Persona
	activeID string
	filter   string
	visible  []int
	cursor   int
	confirm  bool
	Width    int
	Height   int
	theme    *styles.Theme
}

// NewPersonaPicker creates a picker over personas with activeID marked.
func NewPersonaPicker(theme *styles.Theme, personas []persona.Persona, activeID string) *PersonaPicker {
	p := &PersonaPicker{theme: theme, Width: 60, Height: 20}
	p.SetPersonas(personas, activeID)
	return p
}

// SetPersonas replaces the list, keeping the filter.
func (p *PersonaPicker) SetPersonas(personas []persona.Persona, activeID string) {
	p.personas = personas
	p.activeID = activeID
	p.confirm = false
	p.refilter()
	for i, idx := range p.visible {
		if p.personas[idx].ID == activeID {
			p.cursor = i
		}
	}
}

func (p *PersonaPicker) refilter() {
	p.visible = FuzzyRank(p.filter, len(p.personas), func(i int) string {
		return p.personas[i].Name + " " + p.personas[i].Title
	})
	if p.cursor >= len(p.visible) {
		p.cursor = len(p.visible) - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
}

// Selected returns the persona under the cursor.
func (p *PersonaPicker) Selected() (persona.Persona, bool) {
	if len(p.visible) == 0 {
		return persona.Persona{}, false
	}
	return p.personas[p.visible[p.cursor]], true
}

// Filter returns the current filter text.
func (p *PersonaPicker) Filter() string {
	return p.filter
}

// Update handles a key and reports the resulting action. For Activate, Edit
// and Delete the target is Selected().
func (p *PersonaPicker) Update(msg tea.KeyMsg) PickerAction {
	if p.confirm {
		p.confirm = false
		if msg.String() == "y" || msg.String() == "Y" {
			return PickerDelete
		}
		return PickerNone
	}

	switch msg.String() {
	case "esc":
		if p.filter != "" {
			p.filter = ""
			p.refilter()
			return PickerNone
		}
		return PickerClose
	case "enter":
		if _, ok := p.Selected(); ok {
			return PickerActivate
		}
	case "up", "ctrl+k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "ctrl+j":
		if p.cursor < len(p.visible)-1 {
			p.cursor++
		}
	case "ctrl+e":
		if _, ok := p.Selected(); ok {
			return PickerEdit
		}
	case "ctrl+d", "delete":
		if _, ok := p.Selected(); ok {
			p.confirm = true
		}
	case "ctrl+n":
		return PickerNew
	case "backspace":
		if p.filter != "" {
			r := []rune(p.filter)
			p.filter = string(r[:len(r)-1])
			p.refilter()
		}
	default:
		switch msg.Type {
		case tea.KeyRunes:
			p.filter += string(msg.Runes)
		case tea.KeySpace:
			p.filter += " "
		default:
			return PickerNone
		}
		p.cursor = 0
		p.refilter()
	}
	return PickerNone
}

// View renders the picker.
func (p *PersonaPicker) View() string {
	var b strings.Builder
	b.WriteString(p.theme.ModalTitle.Render("Personas"))
	b.WriteString("\n")

	filter := p.filter
	if filter == "" {
		filter = p.theme.FormHint.Render("type to filter")
	}
	b.WriteString("› " + filter + "\n\n")

	inner := p.Width - 6
	if inner < 20 {
		inner = 20
	}

	if len(p.visible) == 0 {
		b.WriteString(p.theme.FormHint.Render("no personas match"))
		b.WriteString("\n")
	}

	rows := p.Height - 8
	if rows < 3 {
		rows = 3
	}
	start := 0
	if p.cursor >= rows {
		start = p.cursor - rows + 1
	}
	for i := start; i < len(p.visible) && i < start+rows; i++ {
		per := p.personas[p.visible[i]]
		mark := "  "
		if per.ID == p.activeID {
			mark = "● "
		}
		voice := ""
		if per.HasVoice() {
			voice = " ♪"
		}
		line := util.PadWidth(fmt.Sprintf("%s%s, %s%s", mark, per.Name, per.Title, voice), inner-2)
		if i == p.cursor {
			b.WriteString(p.theme.PickerItemSelected.Render(line))
		} else {
			b.WriteString(p.theme.PickerItem.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if p.confirm {
		sel, _ := p.Selected()
		b.WriteString(p.theme.FormError.Render(fmt.Sprintf("Delete %s? (y/n)", sel.Name)))
	} else {
		b.WriteString(p.theme.FormHint.Render("enter use · ^e edit · ^d delete · ^n new · esc close"))
	}
	return p.theme.Modal.Width(p.Width).Render(b.String())
}
