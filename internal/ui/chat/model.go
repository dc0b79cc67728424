// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog"

	"github.com/jeranaias/muse-tui/internal/conversation"
	"github.com/jeranaias/muse-tui/internal/persona"
	"github.com/jeranaias/muse-tui/internal/speech"
	"github.com/jeranaias/muse-tui/internal/ui/components"
	"github.com/jeranaias/muse-tui/internal/ui/styles"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// VoiceLister lists selectable voices. *speech.Client satisfies it.
type VoiceLister interface {
	ListVoices(ctx context.Context) speech.VoiceList
}

// Deps are the services the chat screen talks to. Generator and Store are
// required; the rest may be nil.
type Deps struct {
	Generator   conversation.Generator
	Synthesizer conversation.Synthesizer
	Voices      VoiceLister
	Store       *persona.Store
	Playback    *speech.Playback

	// Watch, when set, is called once to subscribe to persona changes made
	// by other processes.
	Watch func(ctx context.Context, onChange func()) error

	Logger zerolog.Logger
}

// Options tune the chat screen.
type Options struct {
	Theme        string // "auto", "dark" or "light"
	GlamourStyle string // glamour standard style, or "auto"
	Muted        bool
	Autoplay     bool
	ExportDir    string
	ClipDir      string
}

// =============================================================================
// CHAT MODEL
// =============================================================================

type mode int

const (
	modeChat mode = iota
	modePicker
	modeEditor
	modeHelp
)

// bridgeSize bounds the event channel between the orchestrator and the
// program.
const bridgeSize = 64

// session is the state shared by every copy of Model.
type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	orch   *conversation.Orchestrator
	msgs   chan tea.Msg
	once   sync.Once
}

// post delivers msg to the program, giving up when the session ends.
func (s *session) post(msg tea.Msg) {
	select {
	case s.msgs <- msg:
	case <-s.ctx.Done():
	}
}

// offer delivers msg if there is room. Used from the Update goroutine,
// which is also the channel's only reader.
func (s *session) offer(msg tea.Msg) {
	select {
	case s.msgs <- msg:
	default:
	}
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	deps  Deps
	opts  Options
	s     *session
	theme *styles.Theme
	keys  KeyMap

	header    *components.Header
	statusBar *components.StatusBar
	picker    *components.PersonaPicker
	editor    *components.PersonaEditor

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	// rendered caches glamour output of settled muse turns by turn id.
	rendered map[string]string

	mode     mode
	width    int
	height   int
	quitting bool
}

// New creates the chat model for the store's active persona and seeds the
// welcome turn.
func New(deps Deps, opts Options) Model {
	if deps.Playback == nil {
		deps.Playback = speech.NewPlayback(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{ctx: ctx, cancel: cancel, msgs: make(chan tea.Msg, bridgeSize)}

	orchOpts := []conversation.Option{
		conversation.WithLogger(deps.Logger),
		conversation.WithMuted(opts.Muted),
		conversation.WithObserver(func(ev conversation.Event) {
			switch ev.Kind {
			case conversation.EventReset, conversation.EventFragment:
				// Redraw triggers only; the transcript is re-read on every event.
				s.offer(eventMsg{Event: ev})
			default:
				s.post(eventMsg{Event: ev})
			}
		}),
	}
	if deps.Synthesizer != nil {
		orchOpts = append(orchOpts, conversation.WithSynthesizer(deps.Synthesizer))
	}
	if opts.ClipDir != "" {
		orchOpts = append(orchOpts, conversation.WithClipDir(opts.ClipDir))
	}

	active := deps.Store.Active()
	s.orch = conversation.New(deps.Generator, active, orchOpts...)
	s.orch.Start()

	theme := styles.NewTheme(opts.Theme)

	input := textinput.New()
	input.Placeholder = "Share your thoughts…"
	input.Prompt = "› "
	input.PromptStyle = theme.InputPrompt
	input.CharLimit = 4000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Thinking

	m := Model{
		deps:      deps,
		opts:      opts,
		s:         s,
		theme:     theme,
		keys:      DefaultKeyMap(),
		header:    components.NewHeader(theme, active),
		statusBar: components.NewStatusBar(theme),
		viewport:  viewport.New(80, 20),
		input:     input,
		spinner:   sp,
		rendered:  make(map[string]string),
		width:     80,
		height:    24,
	}
	m.header.Muted = opts.Muted
	m.resize(m.width, m.height)
	return m
}

// Init starts the event bridge, the cursor blink and the store watcher.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, waitForMsg(m.s.msgs)}
	if m.deps.Watch != nil {
		watch, s := m.deps.Watch, m.s
		cmds = append(cmds, func() tea.Msg {
			err := watch(s.ctx, func() { s.post(storeChangedMsg{}) })
			if err != nil {
				return watchFailedMsg{Err: err}
			}
			return nil
		})
	}
	return tea.Batch(cmds...)
}

// waitForMsg blocks until the bridge has a message for the program.
func waitForMsg(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// Orchestrator returns the conversation driving this screen.
func (m Model) Orchestrator() *conversation.Orchestrator {
	return m.s.orch
}

// Close stops playback, abandons any in-flight turn and releases audio.
// It is safe to call more than once.
func (m Model) Close() error {
	var err error
	m.s.once.Do(func() {
		m.deps.Playback.Stop()
		m.s.cancel()
		err = m.s.orch.Close()
	})
	return err
}

// resize lays out the screen for width x height.
func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.theme.SetSize(width, height)
	m.header.SetWidth(width)
	m.statusBar.SetWidth(width)
	m.input.Width = width - 6

	// header (border + line) + input (rule + line) + status bar
	vpHeight := height - 3 - 2 - 1
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = width
	m.viewport.Height = vpHeight

	if m.picker != nil {
		m.picker.Width, m.picker.Height = m.modalSize()
	}
	if m.editor != nil {
		w, _ := m.modalSize()
		m.editor.SetWidth(w)
	}

	m.renderer = m.newRenderer()
	m.rendered = make(map[string]string)
	m.refresh()
}

func (m *Model) modalSize() (int, int) {
	w := m.width - 4
	if w > 84 {
		w = 84
	}
	if w < 40 {
		w = 40
	}
	return w, m.viewport.Height + 2
}

func (m *Model) newRenderer() *glamour.TermRenderer {
	wrap := m.contentWidth()
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.theme.GlamourStyle(m.opts.GlamourStyle)),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		m.deps.Logger.Warn().Err(err).Msg("markdown renderer unavailable, showing plain text")
		return nil
	}
	return r
}

func (m Model) contentWidth() int {
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	return w
}
