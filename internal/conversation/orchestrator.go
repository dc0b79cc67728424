// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jeranaias/muse-tui/internal/model"
	"github.com/jeranaias/muse-tui/internal/persona"
	"github.com/jeranaias/muse-tui/internal/speech"
)

// Orchestrator runs one conversation with the active persona. Its methods
// are safe for concurrent use: Send normally runs on a worker goroutine while
// the UI reads Transcript. The observer is called without locks held, from
// whichever goroutine produced the change.
type Orchestrator struct {
	gen      Generator
	synth    Synthesizer
	logger   zerolog.Logger
	now      func() time.Time
	observer func(Event)
	clipDir  string

	mu         sync.Mutex
	persona    persona.Persona
	transcript model.Transcript
	history    model.History
	phase      Phase
	busy       bool
	muted      bool
	epoch      int
	cancel     context.CancelFunc
	slot       speech.Slot
	speechSeq  int
	stopSpeech context.CancelFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSynthesizer enables narration voicing.
func WithSynthesizer(s Synthesizer) Option {
	return func(o *Orchestrator) { o.synth = s }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l.With().Str("component", "conversation").Logger() }
}

// WithObserver registers the change callback.
func WithObserver(fn func(Event)) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

// WithMuted sets the initial mute state.
func WithMuted(muted bool) Option {
	return func(o *Orchestrator) { o.muted = muted }
}

// WithClock overrides the time source for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithClipDir sets where synthesized audio files are written.
func WithClipDir(dir string) Option {
	return func(o *Orchestrator) { o.clipDir = dir }
}

// New creates an orchestrator talking as p. Call Start to seed the welcome.
func New(gen Generator, p persona.Persona, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gen:     gen,
		persona: p,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// =============================================================================
// WELCOME / RESET
// =============================================================================

var lower = cases.Lower(language.Und)

// WelcomeText is the greeting shown when a session starts.
func WelcomeText(p persona.Persona) string {
	return fmt.Sprintf("Welcome to our conversation! I'm %s, your %s. %s What would you like to explore today?",
		p.Name, lower.String(p.Title), p.Description)
}

// SwitchText is the greeting shown after the persona changes.
func SwitchText(p persona.Persona) string {
	return fmt.Sprintf("Hello! I'm %s, your %s. %s How can I assist you today?",
		p.Name, lower.String(p.Title), p.Description)
}

// Start clears the session and seeds the startup welcome.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	p := o.persona
	o.mu.Unlock()
	o.reset(p, model.NewMuseTurn(WelcomeText(p), WelcomeNarration, o.now()))
}

// SwitchPersona makes p the active persona. Transcript and history are
// cleared, any in-flight turn is abandoned, and the switch greeting is seeded.
func (o *Orchestrator) SwitchPersona(p persona.Persona) {
	o.logger.Info().Str("persona", p.ID).Str("name", p.Name).Msg("switching persona")
	o.reset(p, model.NewMuseTurn(SwitchText(p), SwitchNarration, o.now()))
}

func (o *Orchestrator) reset(p persona.Persona, greeting model.Turn) {
	o.mu.Lock()
	o.epoch++
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.cancelSpeechLocked()
	o.persona = p
	o.transcript.Reset()
	o.history = nil
	o.busy = false
	o.phase = PhaseIdle
	o.transcript.Append(greeting)
	o.mu.Unlock()

	if err := o.slot.Close(); err != nil {
		o.logger.Warn().Err(err).Msg("releasing audio clip failed")
	}
	o.emit(Event{Kind: EventReset, Phase: PhaseIdle, Turn: greeting})
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Persona returns the active persona.
func (o *Orchestrator) Persona() persona.Persona {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.persona
}

// Transcript returns a copy of the on-screen turns.
func (o *Orchestrator) Transcript() []model.Turn {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transcript.Snapshot()
}

// History returns a copy of the model-facing history.
func (o *Orchestrator) History() model.History {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.history.Clone()
}

// Phase returns the current turn phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Busy reports whether a turn is in flight.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

// Muted reports whether narration voicing is off.
func (o *Orchestrator) Muted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.muted
}

// SetMuted turns narration voicing off or on for later turns.
func (o *Orchestrator) SetMuted(muted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.muted = muted
}

// CurrentClip returns the most recent narration audio, or nil.
func (o *Orchestrator) CurrentClip() *speech.Clip {
	return o.slot.Current()
}

// Cancel abandons the in-flight turn, if any. The turn settles with
// CancelledReply.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

// Close abandons any in-flight turn and releases held audio.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	o.epoch++
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.cancelSpeechLocked()
	o.busy = false
	o.mu.Unlock()
	return o.slot.Close()
}

func (o *Orchestrator) emit(ev Event) {
	if o.observer != nil {
		o.observer(ev)
	}
}

// =============================================================================
// TURN
// =============================================================================

// turn carries the state of one in-flight Send.
type turn struct {
	epoch   int
	persona persona.Persona
	text    string
	history model.History
	id      string
	muted   bool
}

// Send runs a full turn for text and returns once it has settled. Blank text
// and a second concurrent turn are rejected with ErrEmptyMessage and
// ErrTurnInFlight without touching the transcript. Generation failures are
// not returned as errors: they are reported in TurnResult.Err after the
// transcript has been repaired.
func (o *Orchestrator) Send(ctx context.Context, text string) (TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TurnResult{}, ErrEmptyMessage
	}

	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return TurnResult{}, ErrTurnInFlight
	}
	now := o.now()
	userTurn := model.NewUserTurn(text, now)
	placeholder := model.NewPlaceholder(now)
	ctx, cancel := context.WithCancel(ctx)
	t := turn{
		epoch:   o.epoch,
		persona: o.persona,
		text:    text,
		history: o.history.Clone(),
		id:      placeholder.ID,
		muted:   o.muted,
	}
	o.busy = true
	o.cancel = cancel
	o.phase = PhaseAwaitingNarration
	o.transcript.Append(userTurn)
	o.transcript.Append(placeholder)
	o.mu.Unlock()
	defer cancel()

	o.emit(Event{Kind: EventTurnAdded, Phase: PhaseAwaitingNarration, Turn: userTurn})
	o.emit(Event{Kind: EventTurnAdded, Phase: PhaseAwaitingNarration, Turn: placeholder})

	result := TurnResult{TurnID: placeholder.ID, Speech: skippedSpeech()}

	narration, err := o.gen.Narrate(ctx, t.persona, t.text, t.history)
	if err != nil {
		return o.fail(ctx, t, result, err), nil
	}
	result.Narration = narration
	o.update(t, PhaseNarrationReady, EventNarration, func(mt *model.Turn) {
		mt.Narration = narration
	})

	if ps := o.startSpeech(ctx, t, narration); ps != nil {
		result.Speech = ps
	}

	frags, err := o.gen.Respond(ctx, t.persona, t.text, t.history, narration)
	if err != nil {
		return o.fail(ctx, t, result, err), nil
	}
	defer frags.Close()

	var b strings.Builder
	for {
		s, err := frags.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result.Content = b.String()
			return o.fail(ctx, t, result, err), nil
		}
		b.WriteString(s)
		content := b.String()
		o.update(t, PhaseStreaming, EventFragment, func(mt *model.Turn) {
			mt.Content = content
		})
	}

	result.Content = b.String()
	return o.succeed(t, result), nil
}

// update mutates the placeholder unless the session moved on.
func (o *Orchestrator) update(t turn, phase Phase, kind EventKind, fn func(*model.Turn)) {
	o.mu.Lock()
	if o.epoch != t.epoch {
		o.mu.Unlock()
		return
	}
	o.phase = phase
	updated, ok := o.transcript.Update(t.id, fn)
	o.mu.Unlock()
	if ok {
		o.emit(Event{Kind: kind, Phase: phase, Turn: updated})
	}
}

// settle finalizes the placeholder and clears the busy flag. It reports
// false when the turn was superseded.
func (o *Orchestrator) settle(t turn, fn func(*model.Turn), record func()) (model.Turn, bool) {
	o.mu.Lock()
	if o.epoch != t.epoch {
		o.mu.Unlock()
		return model.Turn{}, false
	}
	updated, _ := o.transcript.Update(t.id, func(mt *model.Turn) {
		fn(mt)
		mt.Pending = false
	})
	if record != nil {
		record()
	}
	o.busy = false
	o.cancel = nil
	o.phase = PhaseSettled
	o.mu.Unlock()
	return updated, true
}

func (o *Orchestrator) succeed(t turn, result TurnResult) TurnResult {
	content := result.Content
	updated, ok := o.settle(t, func(mt *model.Turn) {
		mt.Content = content
	}, func() {
		o.history = o.history.AppendExchange(t.text, content)
	})
	if !ok {
		result.Superseded = true
		return result
	}
	o.logger.Debug().Str("turn", t.id).Int("chars", len(content)).Msg("turn settled")
	o.emit(Event{Kind: EventSettled, Phase: PhaseSettled, Turn: updated})
	return result
}

func (o *Orchestrator) fail(ctx context.Context, t turn, result TurnResult, cause error) TurnResult {
	reply := ErrorReply
	if errors.Is(ctx.Err(), context.Canceled) {
		reply = CancelledReply
		cause = fmt.Errorf("%w: %w", context.Canceled, cause)
	}
	result.Err = cause

	updated, ok := o.settle(t, func(mt *model.Turn) {
		mt.Content = reply
		mt.Narration = ErrorNarration
		mt.Failed = true
	}, nil)
	if !ok {
		result.Superseded = true
		return result
	}
	o.logger.Error().Err(cause).Str("turn", t.id).Str("persona", t.persona.ID).Msg("turn failed")
	o.emit(Event{Kind: EventSettled, Phase: PhaseSettled, Turn: updated, Err: cause})
	return result
}

// =============================================================================
// SPEECH
// =============================================================================

// startSpeech voices narration in the background when the persona has a
// voice and audio is on. It returns nil when nothing was started. Synthesis
// outlives the turn: it stops only when a later turn starts speaking or the
// session is reset.
func (o *Orchestrator) startSpeech(ctx context.Context, t turn, narration string) *PendingSpeech {
	if o.synth == nil || t.muted || !t.persona.HasVoice() || strings.TrimSpace(narration) == "" {
		return nil
	}
	o.mu.Lock()
	if o.epoch != t.epoch {
		o.mu.Unlock()
		return nil
	}
	speechCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	o.cancelSpeechLocked()
	o.speechSeq++
	seq := o.speechSeq
	o.stopSpeech = stop
	o.mu.Unlock()

	ps := newPendingSpeech()
	go func() {
		defer stop()
		ps.finish(o.voice(speechCtx, t, seq, narration))
	}()
	return ps
}

func (o *Orchestrator) cancelSpeechLocked() {
	if o.stopSpeech != nil {
		o.stopSpeech()
		o.stopSpeech = nil
	}
}

func (o *Orchestrator) voice(ctx context.Context, t turn, seq int, narration string) SpeechOutcome {
	audio, err := o.synth.Synthesize(ctx, narration, t.persona.VoiceID)
	if err == nil {
		var clip *speech.Clip
		clip, err = speech.NewClipIn(o.clipDir, audio)
		if err == nil {
			return o.storeClip(t, seq, clip)
		}
	}
	if ctx.Err() != nil {
		o.logger.Debug().Str("turn", t.id).Msg("narration speech abandoned")
		return SpeechOutcome{Skipped: true}
	}

	o.logger.Warn().Err(err).Str("voice", t.persona.VoiceID).Msg("narration speech failed")
	o.emit(Event{Kind: EventSpeechFailed, Err: err})
	return SpeechOutcome{Err: err}
}

// storeClip keeps clip unless the session or a newer turn's speech moved on.
func (o *Orchestrator) storeClip(t turn, seq int, clip *speech.Clip) SpeechOutcome {
	o.mu.Lock()
	if o.epoch != t.epoch || o.speechSeq != seq {
		o.mu.Unlock()
		clip.Release()
		return SpeechOutcome{Skipped: true}
	}
	err := o.slot.Replace(clip)
	o.mu.Unlock()
	if err != nil {
		o.logger.Warn().Err(err).Msg("releasing previous audio clip failed")
	}
	o.emit(Event{Kind: EventSpeechReady, Clip: clip})
	return SpeechOutcome{Clip: clip}
}
