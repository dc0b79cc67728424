// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"

	"github.com/jeranaias/muse-tui/internal/model"
	"github.com/jeranaias/muse-tui/internal/muse"
	"github.com/jeranaias/muse-tui/internal/persona"
	"github.com/jeranaias/muse-tui/internal/speech"
)

// Canned texts shown in the transcript.
const (
	ErrorReply       = "I apologize, but I'm having trouble connecting to the AI service right now. Please check your API key configuration and try again."
	ErrorNarration   = "*looks concerned and slightly frustrated*"
	CancelledReply   = "(response cancelled)"
	WelcomeNarration = "*settles gracefully into the conversation, eyes bright with curiosity*"
	SwitchNarration  = "*adjusts to the new configuration with renewed purpose*"
)

var (
	// ErrEmptyMessage rejects a blank submission.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrTurnInFlight rejects a submission while a reply is being produced.
	ErrTurnInFlight = errors.New("a reply is already in progress")
)

// Generator produces narration and the streamed reply. *muse.Client
// satisfies it.
type Generator interface {
	Narrate(ctx context.Context, p persona.Persona, userMessage string, history model.History) (string, error)
	Respond(ctx context.Context, p persona.Persona, userMessage string, history model.History, narration string) (muse.Fragments, error)
}

// Synthesizer voices narration. *speech.Client satisfies it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// =============================================================================
// PHASE
// =============================================================================

// Phase is the orchestrator's position in the current turn.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingNarration
	PhaseNarrationReady
	PhaseStreaming
	PhaseSettled
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingNarration:
		return "awaiting_narration"
	case PhaseNarrationReady:
		return "narration_ready"
	case PhaseStreaming:
		return "streaming_response"
	case PhaseSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// =============================================================================
// EVENTS
// =============================================================================

// EventKind identifies an observer notification.
type EventKind int

const (
	EventTurnAdded EventKind = iota
	EventNarration
	EventFragment
	EventSettled
	EventSpeechReady
	EventSpeechFailed
	EventReset
)

// Event reports a change to the transcript or audio. Turn holds a copy of
// the affected turn; Clip is set for EventSpeechReady.
type Event struct {
	Kind  EventKind
	Phase Phase
	Turn  model.Turn
	Clip  *speech.Clip
	Err   error
}

// =============================================================================
// RESULTS
// =============================================================================

// SpeechOutcome is the ignorable side of a turn: voicing never fails the
// reply. Skipped is set when no synthesis was attempted (no voice, muted, no
// synthesizer, or the turn failed before narration) or when the session moved
// on before the audio arrived.
type SpeechOutcome struct {
	Clip    *speech.Clip
	Skipped bool
	Err     error
}

// PendingSpeech is narration audio that may still be synthesizing after its
// turn settled.
type PendingSpeech struct {
	done chan struct{}
	out  SpeechOutcome
}

func newPendingSpeech() *PendingSpeech {
	return &PendingSpeech{done: make(chan struct{})}
}

func skippedSpeech() *PendingSpeech {
	ps := newPendingSpeech()
	ps.finish(SpeechOutcome{Skipped: true})
	return ps
}

func (ps *PendingSpeech) finish(out SpeechOutcome) {
	ps.out = out
	close(ps.done)
}

// Done is closed once the outcome is known.
func (ps *PendingSpeech) Done() <-chan struct{} {
	return ps.done
}

// Wait blocks until synthesis finished and returns its outcome.
func (ps *PendingSpeech) Wait() SpeechOutcome {
	<-ps.done
	return ps.out
}

// TurnResult describes how a turn settled. Err is the fatal outcome: the
// transcript shows ErrorReply (or CancelledReply) and history is unchanged.
// Superseded is set when the persona changed while the turn was in flight
// and its results were discarded. Speech is never nil and does not hold up
// the result.
type TurnResult struct {
	TurnID     string
	Narration  string
	Content    string
	Err        error
	Superseded bool
	Speech     *PendingSpeech
}

// OK reports whether the reply was produced and recorded.
func (r TurnResult) OK() bool {
	return r.Err == nil && !r.Superseded
}
