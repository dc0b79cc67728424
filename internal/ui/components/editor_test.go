// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/muse-tui/internal/persona"
	"github.com/jeranaias/muse-tui/internal/speech"
)

func existingPersona() persona.Persona {
	p := persona.Default(testNow.Add(-24 * time.Hour))
	p.ID = "p1"
	p.Name = "Nova"
	p.Title = "Star Guide"
	return p
}

func newTestEditor(p persona.Persona, creating bool) *PersonaEditor {
	e := NewPersonaEditor(testTheme(), p, creating)
	e.now = func() time.Time { return testNow }
	return e
}

func focusField(e *PersonaEditor, f editorField) {
	for e.focus != f {
		e.Update(key(tea.KeyTab))
	}
}

func save(t *testing.T, e *PersonaEditor) persona.Persona {
	t.Helper()
	action, _ := e.Update(key(tea.KeyCtrlS))
	require.Equal(t, EditorSave, action, "save failed: %v", e.Err())
	return e.Result()
}

func TestPersonaEditor_SaveKeepsIdentity(t *testing.T) {
	base := existingPersona()
	e := newTestEditor(base, false)

	got := save(t, e)
	assert.Equal(t, "p1", got.ID)
	assert.Equal(t, base.CreatedAt, got.CreatedAt)
	assert.Equal(t, testNow, got.UpdatedAt)
	assert.Equal(t, "Nova", got.Name)
	assert.Equal(t, "Star Guide", got.Title)
	assert.Equal(t, base.Model, got.Model)
	assert.Equal(t, base.Temperature, got.Temperature)
	assert.Equal(t, persona.NarrationMedium, got.NarrationLength)
	assert.False(t, got.HasVoice())
}

func TestPersonaEditor_CreateStampsNew(t *testing.T) {
	tmpl := persona.Template(testNow.Add(-time.Hour))
	e := newTestEditor(tmpl, true)
	assert.True(t, e.Creating())
	assert.Contains(t, e.View(), "Create New Muse")

	got := save(t, e)
	assert.Equal(t, tmpl.ID, got.ID)
	assert.NotEqual(t, persona.DefaultID, got.ID)
	assert.Equal(t, testNow, got.CreatedAt)
}

func TestPersonaEditor_TypingAndEnterAdvance(t *testing.T) {
	e := newTestEditor(existingPersona(), false)
	e.name.SetValue("")

	e.Update(runes("Luna"))
	e.Update(key(tea.KeyEnter))
	assert.Equal(t, fieldTitle, e.focus)

	got := save(t, e)
	assert.Equal(t, "Luna", got.Name)
}

func TestPersonaEditor_BlankFieldsFallBack(t *testing.T) {
	e := newTestEditor(existingPersona(), false)
	e.name.SetValue("   ")
	e.title.SetValue("")
	e.description.SetValue("")
	e.systemPrompt.SetValue("")
	e.maxTokens.SetValue("")

	got := save(t, e)
	def := persona.Default(testNow)
	assert.Equal(t, def.Name, got.Name)
	assert.Equal(t, def.Title, got.Title)
	assert.Equal(t, def.Description, got.Description)
	assert.Equal(t, def.SystemPrompt, got.SystemPrompt)
	assert.Equal(t, 1000, got.MaxTokens)
}

func TestPersonaEditor_MaxTokens(t *testing.T) {
	e := newTestEditor(existingPersona(), false)
	e.maxTokens.SetValue("0")
	assert.Equal(t, 1000, save(t, e).MaxTokens)

	e.maxTokens.SetValue("2048")
	assert.Equal(t, 2048, save(t, e).MaxTokens)
}

func TestPersonaEditor_TemperatureStepper(t *testing.T) {
	e := newTestEditor(existingPersona(), false)
	focusField(e, fieldTemperature)

	e.Update(key(tea.KeyRight))
	e.Update(key(tea.KeyRight))
	assert.InDelta(t, 0.8, e.temperature, 1e-9)

	for i := 0; i < 30; i++ {
		e.Update(key(tea.KeyLeft))
	}
	assert.Equal(t, 0.0, e.temperature)

	for i := 0; i < 30; i++ {
		e.Update(key(tea.KeyRight))
	}
	assert.Equal(t, 1.0, e.temperature)
	assert.Equal(t, 1.0, save(t, e).Temperature)
}

func TestPersonaEditor_ModelCycles(t *testing.T) {
	e := newTestEditor(existingPersona(), false)
	focusField(e, fieldModel)

	e.Update(key(tea.KeyRight))
	assert.Equal(t, "anthropic/claude-3.5-sonnet", save(t, e).Model)

	e.Update(key(tea.KeyLeft))
	e.Update(key(tea.KeyLeft))
	assert.Equal(t, "openai/gpt-4o", save(t, e).Model)

	e.Update(key(tea.KeyLeft))
	assert.Equal(t, persona.ModelOptions[len(persona.ModelOptions)-1].ID, save(t, e).Model, "wraps around")
}

func TestPersonaEditor_UnknownModelKept(t *testing.T) {
	p := existingPersona()
	p.Model = "mistralai/mistral-large"
	e := newTestEditor(p, false)

	assert.Equal(t, "mistralai/mistral-large", save(t, e).Model)
	assert.Len(t, persona.ModelOptions, 4, "the shared option list is not modified")
}

func TestPersonaEditor_NarrationCycles(t *testing.T) {
	e := newTestEditor(existingPersona(), false)
	focusField(e, fieldNarration)

	e.Update(key(tea.KeyRight))
	assert.Equal(t, persona.NarrationLong, save(t, e).NarrationLength)
	e.Update(key(tea.KeyRight))
	assert.Equal(t, persona.NarrationShort, save(t, e).NarrationLength)
}

func TestPersonaEditor_Voices(t *testing.T) {
	p := existingPersona()
	p.VoiceID = "EXAVITQu4vr4xnSDxMaL"
	e := newTestEditor(p, false)
	assert.Contains(t, e.View(), "loading voices")

	e.SetVoices(speech.VoiceList{Voices: speech.FallbackVoices, Fallback: true, Err: errors.New("401")})
	assert.Equal(t, "Bella", e.voices[e.voiceIdx].Name)
	assert.Contains(t, e.View(), "voice list unavailable")

	focusField(e, fieldVoice)
	e.Update(key(tea.KeyRight))
	assert.Equal(t, "VR6AewLTigWG4xSOukaG", save(t, e).VoiceID)

	e.Update(key(tea.KeyRight))
	got := save(t, e)
	assert.Empty(t, got.VoiceID, "cycling reaches None")
	assert.False(t, got.HasVoice())
}

func TestPersonaEditor_CustomVoiceKept(t *testing.T) {
	p := existingPersona()
	p.VoiceID = "my-cloned-voice"
	e := newTestEditor(p, false)

	e.SetVoices(speech.VoiceList{Voices: []speech.Voice{{ID: "v1", Name: "Rachel"}}})
	assert.Equal(t, "Custom", e.voices[e.voiceIdx].Name)
	assert.NotContains(t, e.View(), "voice list unavailable")
	assert.Equal(t, "my-cloned-voice", save(t, e).VoiceID)
}

func TestPersonaEditor_Cancel(t *testing.T) {
	e := newTestEditor(existingPersona(), false)
	action, _ := e.Update(key(tea.KeyEsc))
	assert.Equal(t, EditorCancel, action)
}

func TestPersonaEditor_ShiftTabWraps(t *testing.T) {
	e := newTestEditor(existingPersona(), false)
	e.Update(key(tea.KeyShiftTab))
	assert.Equal(t, fieldAvatar, e.focus)

	e.Update(runes("https://example.com/a.png"))
	assert.Equal(t, "https://example.com/a.png", save(t, e).AvatarURL)
}

func TestPersonaEditor_View(t *testing.T) {
	e := newTestEditor(existingPersona(), false)
	view := e.View()

	assert.Contains(t, view, "Edit Muse Configuration")
	for _, label := range fieldLabels {
		assert.Contains(t, view, label)
	}
	assert.Contains(t, view, "Medium (50-100 characters)")
	assert.Contains(t, view, "GPT-4o Mini (OpenAI)")
}
