// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/muse-tui/internal/persona"
	"github.com/jeranaias/muse-tui/internal/speech"
	"github.com/jeranaias/muse-tui/internal/ui/styles"
	"github.com/jeranaias/muse-tui/internal/util"
)

// EditorAction is what the user asked the persona editor to do.
type EditorAction int

const (
	EditorNone EditorAction = iota
	EditorSave
	EditorCancel
)

type editorField int

const (
	fieldName editorField = iota
	fieldTitle
	fieldDescription
	fieldSystemPrompt
	fieldModel
	fieldTemperature
	fieldMaxTokens
	fieldNarration
	fieldVoice
	fieldAvatar
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldName:         "Name",
	fieldTitle:        "Title",
	fieldDescription:  "Description",
	fieldSystemPrompt: "System prompt",
	fieldModel:        "Model",
	fieldTemperature:  "Temperature",
	fieldMaxTokens:    "Max tokens",
	fieldNarration:    "Narration",
	fieldVoice:        "Voice",
	fieldAvatar:       "Avatar URL",
}

// TemperatureStep is the increment of the temperature stepper.
const TemperatureStep = 0.05

// PersonaEditor is the persona form. Tab and shift+tab move between fields,
// left and right change choice fields, ctrl+s saves and esc cancels.
type PersonaEditor struct {
	base     persona.Persona
	creating bool

	name         textinput.Model
	title        textinput.Model
	maxTokens    textinput.Model
	avatar       textinput.Model
	description  textarea.Model
	systemPrompt textarea.Model

	models       []persona.ModelOption
	modelIdx     int
	temperature  float64
	narrationIdx int
	voices       []speech.Voice
	voiceIdx     int
	voiceNote    string

	focus  editorField
	err    error
	result persona.Persona

	Width  int
	Height int
	now    func() time.Time
	theme  *styles.Theme
}

// NewPersonaEditor opens the form on p. When creating is set the saved
// persona is stamped as new.
func NewPersonaEditor(theme *styles.Theme, p persona.Persona, creating bool) *PersonaEditor {
	e := &PersonaEditor{
		base:        p,
		creating:    creating,
		temperature: p.Temperature,
		Width:       72,
		Height:      30,
		now:         time.Now,
		theme:       theme,
		voiceNote:   "loading voices…",
	}

	e.name = newInput("Enter muse name", p.Name, 60)
	e.title = newInput("Enter muse title", p.Title, 60)
	e.maxTokens = newInput("1000", strconv.Itoa(p.MaxTokens), 6)
	e.maxTokens.Validate = digitsOnly
	e.avatar = newInput("https://…/avatar.png", p.AvatarURL, 0)

	e.description = newArea("Describe your muse's personality and role", p.Description, 3)
	e.systemPrompt = newArea("You are…", p.SystemPrompt, 5)

	e.models = append([]persona.ModelOption(nil), persona.ModelOptions...)
	e.modelIdx = -1
	for i, m := range e.models {
		if m.ID == p.Model {
			e.modelIdx = i
		}
	}
	if e.modelIdx < 0 && p.Model != "" {
		e.models = append(e.models, persona.ModelOption{ID: p.Model, Name: p.Model, Provider: "custom"})
		e.modelIdx = len(e.models) - 1
	}
	if e.modelIdx < 0 {
		e.modelIdx = 0
	}

	for i, n := range persona.NarrationLengths {
		if n == p.NarrationLength {
			e.narrationIdx = i
		}
		if p.NarrationLength == "" && n == persona.NarrationMedium {
			e.narrationIdx = i
		}
	}

	e.setVoices(nil)
	e.SetWidth(e.Width)
	e.name.Focus()
	return e
}

func newInput(placeholder, value string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = ""
	ti.CharLimit = limit
	ti.SetValue(value)
	return ti
}

func newArea(placeholder, value string, height int) textarea.Model {
	ta := textarea.New()
	ta.Placeholder = placeholder
	ta.ShowLineNumbers = false
	ta.Prompt = ""
	ta.CharLimit = 0
	ta.SetHeight(height)
	ta.SetValue(value)
	ta.Blur()
	return ta
}

func digitsOnly(s string) error {
	for _, r := range s {
		if r < '0' || r > '9' {
			return fmt.Errorf("digits only")
		}
	}
	return nil
}

// Creating reports whether the form creates a new persona.
func (e *PersonaEditor) Creating() bool {
	return e.creating
}

// Result returns the persona built by the last successful save.
func (e *PersonaEditor) Result() persona.Persona {
	return e.result
}

// Err returns the validation error from the last save attempt.
func (e *PersonaEditor) Err() error {
	return e.err
}

// SetWidth resizes the inputs to the modal width.
func (e *PersonaEditor) SetWidth(width int) {
	e.Width = width
	// modal border + padding + label column
	field := width - 6 - 18
	if field < 20 {
		field = 20
	}
	e.name.Width = field
	e.title.Width = field
	e.avatar.Width = field
	e.maxTokens.Width = 8
	e.description.SetWidth(field)
	e.systemPrompt.SetWidth(field)
}

// SetVoices installs the voice list once it has loaded.
func (e *PersonaEditor) SetVoices(list speech.VoiceList) {
	e.setVoices(list.Voices)
	e.voiceNote = ""
	if list.Fallback {
		e.voiceNote = "voice list unavailable, showing defaults"
	}
}

func (e *PersonaEditor) setVoices(voices []speech.Voice) {
	current := ""
	if e.voiceIdx > 0 && e.voiceIdx < len(e.voices) {
		current = e.voices[e.voiceIdx].ID
	} else if e.voices == nil {
		current = e.base.VoiceID
	}

	e.voices = append([]speech.Voice{{ID: "", Name: "None"}}, voices...)
	e.voiceIdx = 0
	if current == "" {
		return
	}
	for i, v := range e.voices {
		if v.ID == current {
			e.voiceIdx = i
			return
		}
	}
	e.voices = append(e.voices, speech.Voice{ID: current, Name: "Custom", Category: "custom"})
	e.voiceIdx = len(e.voices) - 1
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles a message and reports the resulting action. On EditorSave
// the persona is available from Result.
func (e *PersonaEditor) Update(msg tea.Msg) (EditorAction, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return EditorNone, e.updateFocused(msg)
	}

	switch key.String() {
	case "esc":
		return EditorCancel, nil
	case "ctrl+s":
		p, err := e.build()
		e.err = err
		if err != nil {
			return EditorNone, nil
		}
		e.result = p
		return EditorSave, nil
	case "tab":
		return EditorNone, e.setFocus((e.focus + 1) % fieldCount)
	case "shift+tab":
		return EditorNone, e.setFocus((e.focus + fieldCount - 1) % fieldCount)
	}

	if e.isChoice(e.focus) {
		switch key.String() {
		case "left", "h":
			e.step(-1)
		case "right", "l", " ":
			e.step(1)
		case "enter", "down":
			return EditorNone, e.setFocus((e.focus + 1) % fieldCount)
		case "up":
			return EditorNone, e.setFocus((e.focus + fieldCount - 1) % fieldCount)
		}
		return EditorNone, nil
	}

	if key.String() == "enter" && !e.isArea(e.focus) {
		return EditorNone, e.setFocus((e.focus + 1) % fieldCount)
	}
	return EditorNone, e.updateFocused(msg)
}

func (e *PersonaEditor) isChoice(f editorField) bool {
	switch f {
	case fieldModel, fieldTemperature, fieldNarration, fieldVoice:
		return true
	}
	return false
}

func (e *PersonaEditor) isArea(f editorField) bool {
	return f == fieldDescription || f == fieldSystemPrompt
}

func (e *PersonaEditor) step(dir int) {
	switch e.focus {
	case fieldModel:
		e.modelIdx = wrap(e.modelIdx+dir, len(e.models))
	case fieldTemperature:
		t := e.temperature + float64(dir)*TemperatureStep
		t = math.Round(t/TemperatureStep) * TemperatureStep
		e.temperature = math.Max(0, math.Min(1, math.Round(t*100)/100))
	case fieldNarration:
		e.narrationIdx = wrap(e.narrationIdx+dir, len(persona.NarrationLengths))
	case fieldVoice:
		e.voiceIdx = wrap(e.voiceIdx+dir, len(e.voices))
	}
}

func wrap(i, n int) int {
	if n == 0 {
		return 0
	}
	return ((i % n) + n) % n
}

func (e *PersonaEditor) setFocus(f editorField) tea.Cmd {
	e.name.Blur()
	e.title.Blur()
	e.maxTokens.Blur()
	e.avatar.Blur()
	e.description.Blur()
	e.systemPrompt.Blur()
	e.focus = f

	switch f {
	case fieldName:
		return e.name.Focus()
	case fieldTitle:
		return e.title.Focus()
	case fieldDescription:
		return e.description.Focus()
	case fieldSystemPrompt:
		return e.systemPrompt.Focus()
	case fieldMaxTokens:
		return e.maxTokens.Focus()
	case fieldAvatar:
		return e.avatar.Focus()
	}
	return nil
}

func (e *PersonaEditor) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch e.focus {
	case fieldName:
		e.name, cmd = e.name.Update(msg)
	case fieldTitle:
		e.title, cmd = e.title.Update(msg)
	case fieldDescription:
		e.description, cmd = e.description.Update(msg)
	case fieldSystemPrompt:
		e.systemPrompt, cmd = e.systemPrompt.Update(msg)
	case fieldMaxTokens:
		e.maxTokens, cmd = e.maxTokens.Update(msg)
	case fieldAvatar:
		e.avatar, cmd = e.avatar.Update(msg)
	}
	return cmd
}

// build assembles the persona. Blank fields fall back to the default
// persona's values, as does an unparsable max tokens.
func (e *PersonaEditor) build() (persona.Persona, error) {
	now := e.now()
	def := persona.Default(now)

	p := e.base
	if p.ID == "" {
		p.ID = persona.NewID()
	}
	if e.creating || p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.Name = orDefault(e.name.Value(), def.Name)
	p.Title = orDefault(e.title.Value(), def.Title)
	p.Description = orDefault(e.description.Value(), def.Description)
	p.SystemPrompt = orDefault(e.systemPrompt.Value(), def.SystemPrompt)
	p.Model = e.models[e.modelIdx].ID
	p.Temperature = e.temperature
	p.MaxTokens = def.MaxTokens
	if n, err := strconv.Atoi(strings.TrimSpace(e.maxTokens.Value())); err == nil && n > 0 {
		p.MaxTokens = n
	}
	p.NarrationLength = persona.NarrationLengths[e.narrationIdx]
	p.VoiceID = e.voices[e.voiceIdx].ID
	p.AvatarURL = strings.TrimSpace(e.avatar.Value())
	p.UpdatedAt = now

	if err := p.Validate(); err != nil {
		return persona.Persona{}, err
	}
	return p, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the form.
func (e *PersonaEditor) View() string {
	var b strings.Builder
	title := "Edit Muse Configuration"
	if e.creating {
		title = "Create New Muse"
	}
	b.WriteString(e.theme.ModalTitle.Render(title))
	b.WriteString("\n")

	for f := editorField(0); f < fieldCount; f++ {
		label := e.theme.FormLabel.Render(fieldLabels[f])
		if f == e.focus {
			label = e.theme.FormLabelFocused.Render(fieldLabels[f])
		}
		b.WriteString(label + " " + e.fieldView(f) + "\n")
	}

	b.WriteString("\n")
	if e.err != nil {
		b.WriteString(e.theme.FormError.Render(e.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(e.theme.FormHint.Render("tab next · ←/→ change · ctrl+s save · esc cancel"))
	return e.theme.Modal.Width(e.Width).Render(b.String())
}

func (e *PersonaEditor) fieldView(f editorField) string {
	focused := f == e.focus
	switch f {
	case fieldName:
		return e.name.View()
	case fieldTitle:
		return e.title.View()
	case fieldMaxTokens:
		return e.maxTokens.View()
	case fieldAvatar:
		return e.avatar.View()
	case fieldDescription, fieldSystemPrompt:
		area := e.description
		if f == fieldSystemPrompt {
			area = e.systemPrompt
		}
		if focused {
			return area.View()
		}
		v := util.FirstLine(area.Value())
		if v == "" {
			return e.theme.FormHint.Render(area.Placeholder)
		}
		return e.theme.FormValue.Render(util.TruncateWidth(v, e.Width-26))
	case fieldModel:
		m := e.models[e.modelIdx]
		return e.choice(fmt.Sprintf("%s (%s)", m.Name, m.Provider), focused)
	case fieldTemperature:
		return e.choice(fmt.Sprintf("%.2f  %s", e.temperature, temperatureBar(e.temperature)), focused) +
			" " + e.theme.FormHint.Render("focused ↔ creative")
	case fieldNarration:
		return e.choice(persona.NarrationLengths[e.narrationIdx].Label(), focused)
	case fieldVoice:
		v := e.voices[e.voiceIdx]
		out := e.choice(v.Name, focused)
		if e.voiceNote != "" {
			out += " " + e.theme.FormHint.Render(e.voiceNote)
		}
		return out
	}
	return ""
}

func (e *PersonaEditor) choice(s string, focused bool) string {
	if focused {
		return e.theme.FormLabelFocused.UnsetWidth().Render("‹ " + s + " ›")
	}
	return e.theme.FormValue.Render(s)
}

func temperatureBar(t float64) string {
	const width = 10
	filled := int(math.Round(t * width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
