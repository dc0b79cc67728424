// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/muse-tui/internal/conversation"
	"github.com/jeranaias/muse-tui/internal/persona"
	"github.com/jeranaias/muse-tui/internal/speech"
	"github.com/jeranaias/muse-tui/internal/ui/components"
)

// Update handles messages and user input.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case eventMsg:
		cmd := m.handleEvent(msg.Event)
		return m, tea.Batch(cmd, waitForMsg(m.s.msgs))

	case turnDoneMsg:
		return m, m.handleTurnDone(msg)

	case playbackDoneMsg:
		m.header.Playing = m.deps.Playback.Playing()
		if msg.Err != nil {
			m.deps.Logger.Warn().Err(msg.Err).Msg("audio playback failed")
			return m, tea.Batch(m.toast(components.ToastError, "Audio playback failed: "+msg.Err.Error()), waitForMsg(m.s.msgs))
		}
		return m, waitForMsg(m.s.msgs)

	case storeChangedMsg:
		cmd := m.reloadPersonas()
		return m, tea.Batch(cmd, waitForMsg(m.s.msgs))

	case watchFailedMsg:
		m.deps.Logger.Warn().Err(msg.Err).Msg("persona store watcher unavailable")
		return m, nil

	case voicesLoadedMsg:
		if msg.List.Err != nil {
			m.deps.Logger.Warn().Err(msg.List.Err).Msg("voice list unavailable, using fallback voices")
		}
		if m.editor != nil {
			m.editor.SetVoices(msg.List)
		}
		return m, nil

	case components.ToastExpiredMsg:
		m.statusBar.Dismiss(msg.ID)
		return m, nil

	case spinner.TickMsg:
		if !m.s.orch.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.mode == modeEditor {
		_, cmd := m.editor.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// ORCHESTRATOR EVENTS
// =============================================================================

func (m *Model) handleEvent(ev conversation.Event) tea.Cmd {
	var cmd tea.Cmd
	switch ev.Kind {
	case conversation.EventReset:
		m.rendered = make(map[string]string)
		m.header.Persona = m.s.orch.Persona()
		m.header.Playing = m.deps.Playback.Playing()
	case conversation.EventSpeechReady:
		if m.opts.Autoplay && !m.s.orch.Muted() {
			m.play(ev.Clip)
		}
	case conversation.EventSpeechFailed:
		cmd = m.toast(components.ToastInfo, "Narration audio unavailable")
	}
	m.refresh()
	return cmd
}

func (m *Model) handleTurnDone(msg turnDoneMsg) tea.Cmd {
	m.statusBar.State = ""
	m.refresh()

	switch {
	case errors.Is(msg.Err, conversation.ErrEmptyMessage):
		return nil
	case errors.Is(msg.Err, conversation.ErrTurnInFlight):
		return m.toast(components.ToastInfo, "Wait for the current reply to finish")
	case msg.Err != nil:
		return m.toast(components.ToastError, msg.Err.Error())
	}

	res := msg.Result
	switch {
	case res.Superseded:
		return nil
	case errors.Is(res.Err, context.Canceled):
		return m.toast(components.ToastInfo, "Reply cancelled")
	case res.Err != nil:
		return m.toast(components.ToastError, "Reply failed: "+res.Err.Error())
	}
	return nil
}

// play starts clip, replacing whatever is playing.
func (m *Model) play(clip *speech.Clip) {
	if clip == nil || clip.Released() {
		return
	}
	s := m.s
	m.deps.Playback.Start(clip, func(err error) {
		s.post(playbackDoneMsg{Err: err})
	})
	m.header.Playing = true
}

// reloadPersonas picks up changes written by another process.
func (m *Model) reloadPersonas() tea.Cmd {
	if m.picker != nil {
		m.picker.SetPersonas(m.deps.Store.List(), m.deps.Store.ActiveID())
	}

	current := m.s.orch.Persona()
	active := m.deps.Store.Active()
	if active.ID == current.ID && active.UpdatedAt.Equal(current.UpdatedAt) {
		return nil
	}
	m.deps.Logger.Info().Str("persona", active.ID).Msg("active persona changed on disk")
	m.switchTo(active)
	return m.toast(components.ToastInfo, fmt.Sprintf("Now talking with %s", active.Name))
}

// switchTo resets the conversation to p.
func (m *Model) switchTo(p persona.Persona) {
	m.deps.Playback.Stop()
	m.s.orch.SwitchPersona(p)
	m.header.Persona = p
	m.header.Playing = false
	m.statusBar.State = ""
	m.rendered = make(map[string]string)
	m.refresh()
}

// activate makes p the stored active persona and switches to it.
func (m *Model) activate(p persona.Persona) tea.Cmd {
	if err := m.deps.Store.SetActiveID(p.ID); err != nil {
		return m.toast(components.ToastError, err.Error())
	}
	m.switchTo(p)
	return m.toast(components.ToastSuccess, fmt.Sprintf("Now talking with %s", p.Name))
}

func (m *Model) toast(kind components.ToastKind, text string) tea.Cmd {
	t := components.NewToast(kind, text)
	m.statusBar.Show(t)
	return t.ExpireCmd()
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m.quit()
	}

	switch m.mode {
	case modePicker:
		return m.handlePickerKey(msg)
	case modeEditor:
		return m.handleEditorKey(msg)
	case modeHelp:
		m.mode = modeChat
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Send):
		return m.submit()
	case key.Matches(msg, m.keys.Cancel):
		if m.s.orch.Busy() {
			m.s.orch.Cancel()
			return m, nil
		}
		m.input.Reset()
		return m, nil
	case key.Matches(msg, m.keys.Personas):
		return m.openPicker()
	case key.Matches(msg, m.keys.Edit):
		return m.openEditor(m.s.orch.Persona(), false)
	case key.Matches(msg, m.keys.New):
		return m.openEditor(persona.Template(timeNow()), true)
	case key.Matches(msg, m.keys.Mute):
		return m, m.toggleMute()
	case key.Matches(msg, m.keys.Replay):
		return m, m.replay()
	case key.Matches(msg, m.keys.Help):
		m.mode = modeHelp
		return m, nil
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	if m.s.orch.Busy() {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.Close()
	return m, tea.Quit
}

// submit sends the input line, or runs it as a slash command.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		return m.runCommand(text)
	}
	if m.s.orch.Busy() {
		return m, nil
	}

	m.input.Reset()
	m.statusBar.State = "thinking…"
	orch, ctx := m.s.orch, m.s.ctx
	send := func() tea.Msg {
		res, err := orch.Send(ctx, text)
		return turnDoneMsg{Result: res, Err: err}
	}
	m.viewport.GotoBottom()
	return m, tea.Batch(send, m.spinner.Tick)
}

func (m *Model) toggleMute() tea.Cmd {
	muted := !m.s.orch.Muted()
	m.s.orch.SetMuted(muted)
	m.header.Muted = muted
	if muted {
		m.deps.Playback.Stop()
		m.header.Playing = false
		return m.toast(components.ToastInfo, "Voice muted")
	}
	if !m.s.orch.Persona().HasVoice() {
		return m.toast(components.ToastInfo, "Voice on (this persona has no voice set)")
	}
	return m.toast(components.ToastInfo, "Voice on")
}

func (m *Model) replay() tea.Cmd {
	clip := m.s.orch.CurrentClip()
	if clip == nil {
		return m.toast(components.ToastInfo, "No narration audio to replay")
	}
	m.play(clip)
	return nil
}

// =============================================================================
// OVERLAYS
// =============================================================================

func (m Model) openPicker() (tea.Model, tea.Cmd) {
	m.picker = components.NewPersonaPicker(m.theme, m.deps.Store.List(), m.s.orch.Persona().ID)
	m.picker.Width, m.picker.Height = m.modalSize()
	m.mode = modePicker
	return m, nil
}

func (m Model) openEditor(p persona.Persona, creating bool) (tea.Model, tea.Cmd) {
	m.editor = components.NewPersonaEditor(m.theme, p, creating)
	w, _ := m.modalSize()
	m.editor.SetWidth(w)
	m.mode = modeEditor

	voices, ctx := m.deps.Voices, m.s.ctx
	load := func() tea.Msg {
		if voices == nil {
			return voicesLoadedMsg{List: speech.VoiceList{Voices: speech.FallbackVoices, Fallback: true}}
		}
		return voicesLoadedMsg{List: voices.ListVoices(ctx)}
	}
	return m, load
}

func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action := m.picker.Update(msg)
	sel, _ := m.picker.Selected()

	switch action {
	case components.PickerClose:
		m.mode = modeChat
		m.picker = nil
	case components.PickerActivate:
		m.mode = modeChat
		m.picker = nil
		return m, m.activate(sel)
	case components.PickerEdit:
		m.picker = nil
		return m.openEditor(sel, false)
	case components.PickerNew:
		m.picker = nil
		return m.openEditor(persona.Template(timeNow()), true)
	case components.PickerDelete:
		return m, m.deletePersona(sel)
	}
	return m, nil
}

// deletePersona removes p. Deleting the active persona falls back to the
// first remaining one, or a fresh default.
func (m *Model) deletePersona(p persona.Persona) tea.Cmd {
	if err := m.deps.Store.Delete(p.ID); err != nil {
		return m.toast(components.ToastError, err.Error())
	}
	cmd := m.toast(components.ToastSuccess, fmt.Sprintf("Deleted %s", p.Name))

	if p.ID == m.s.orch.Persona().ID {
		next, err := m.deps.Store.InitializeDefault()
		if err != nil {
			cmd = m.toast(components.ToastError, err.Error())
		}
		m.switchTo(next)
	}
	if m.picker != nil {
		m.picker.SetPersonas(m.deps.Store.List(), m.deps.Store.ActiveID())
	}
	return cmd
}

func (m Model) handleEditorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action, cmd := m.editor.Update(msg)
	switch action {
	case components.EditorCancel:
		m.mode = modeChat
		m.editor = nil
		return m, nil
	case components.EditorSave:
		p := m.editor.Result()
		if err := m.deps.Store.Save(p); err != nil {
			return m, m.toast(components.ToastError, err.Error())
		}
		m.mode = modeChat
		m.editor = nil
		if err := m.deps.Store.SetActiveID(p.ID); err != nil {
			return m, m.toast(components.ToastError, err.Error())
		}
		m.switchTo(p)
		return m, m.toast(components.ToastSuccess, fmt.Sprintf("Saved %s", p.Name))
	}
	return m, cmd
}
