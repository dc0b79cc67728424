// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/muse-tui/internal/model"
	"github.com/jeranaias/muse-tui/internal/muse"
	"github.com/jeranaias/muse-tui/internal/persona"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeFragments struct {
	parts  []string
	failAt int // index at which Next fails; -1 never
	pos    int
	closed bool
}

func (f *fakeFragments) Next() (string, error) {
	if f.failAt >= 0 && f.pos == f.failAt {
		return "", errors.New("connection reset")
	}
	if f.pos >= len(f.parts) {
		return "", io.EOF
	}
	s := f.parts[f.pos]
	f.pos++
	return s, nil
}

func (f *fakeFragments) Close() error {
	f.closed = true
	return nil
}

type fakeGenerator struct {
	narration  string
	narrateErr error
	respondErr error
	parts      []string
	failAt     int
	block      chan struct{}

	mu        sync.Mutex
	histories []model.History
	last      *fakeFragments
}

func newFakeGenerator(parts ...string) *fakeGenerator {
	return &fakeGenerator{narration: "leans in", parts: parts, failAt: -1}
}

func (g *fakeGenerator) Narrate(ctx context.Context, _ persona.Persona, _ string, history model.History) (string, error) {
	g.mu.Lock()
	g.histories = append(g.histories, history.Clone())
	g.mu.Unlock()
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if g.narrateErr != nil {
		return "", g.narrateErr
	}
	return g.narration, nil
}

func (g *fakeGenerator) Respond(context.Context, persona.Persona, string, model.History, string) (muse.Fragments, error) {
	if g.respondErr != nil {
		return nil, g.respondErr
	}
	f := &fakeFragments{parts: g.parts, failAt: g.failAt}
	g.mu.Lock()
	g.last = f
	g.mu.Unlock()
	return f, nil
}

type fakeSynth struct {
	calls   atomic.Int32
	err     error
	release chan struct{}
}

func (s *fakeSynth) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	s.calls.Add(1)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return []byte("mp3:" + voiceID + ":" + text), nil
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) record(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) kinds(kind EventKind) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func testPersona() persona.Persona {
	p := persona.Default(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	p.Title = "Creative MUSE"
	return p
}

func voicedPersona() persona.Persona {
	p := testPersona()
	p.VoiceID = "EXAVITQu4vr4xnSDxMaL"
	return p
}

func newTestOrchestrator(t *testing.T, gen Generator, p persona.Persona, opts ...Option) (*Orchestrator, *eventLog) {
	t.Helper()
	log := &eventLog{}
	opts = append([]Option{WithObserver(log.record), WithClipDir(t.TempDir())}, opts...)
	o := New(gen, p, opts...)
	t.Cleanup(func() { o.Close() })
	o.Start()
	return o, log
}

// =============================================================================
// WELCOME
// =============================================================================

func TestStart_SeedsWelcome(t *testing.T) {
	o, log := newTestOrchestrator(t, newFakeGenerator(), testPersona())

	turns := o.Transcript()
	require.Len(t, turns, 1)
	assert.Equal(t, model.RoleMuse, turns[0].Role)
	assert.Equal(t,
		"Welcome to our conversation! I'm Aria, your creative muse. A thoughtful and inspiring creative companion What would you like to explore today?",
		turns[0].Content)
	assert.Equal(t, WelcomeNarration, turns[0].Narration)
	assert.Empty(t, o.History())
	assert.Len(t, log.kinds(EventReset), 1)
}

// =============================================================================
// SUCCESSFUL TURN
// =============================================================================

func TestSend_Success(t *testing.T) {
	gen := newFakeGenerator("The ", "tide ", "returns.")
	o, log := newTestOrchestrator(t, gen, testPersona())

	res, err := o.Send(context.Background(), "  Tell me about the sea  ")
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Equal(t, "leans in", res.Narration)
	assert.Equal(t, "The tide returns.", res.Content)
	assert.True(t, res.Speech.Wait().Skipped, "persona has no voice")

	turns := o.Transcript()
	require.Len(t, turns, 3)
	assert.Equal(t, "Tell me about the sea", turns[1].Content)
	reply := turns[2]
	assert.Equal(t, res.TurnID, reply.ID)
	assert.Equal(t, "The tide returns.", reply.Content)
	assert.Equal(t, "leans in", reply.Narration)
	assert.False(t, reply.Pending)
	assert.False(t, reply.Failed)

	assert.Equal(t, model.History{
		{Role: "user", Content: "Tell me about the sea"},
		{Role: "assistant", Content: "The tide returns."},
	}, o.History(), "narration must not enter history")

	assert.Equal(t, PhaseSettled, o.Phase())
	assert.False(t, o.Busy())
	assert.True(t, gen.last.closed)

	// Cumulative content only grows and ends at the full reply.
	frags := log.kinds(EventFragment)
	require.Len(t, frags, 3)
	prev := ""
	for _, ev := range frags {
		assert.True(t, strings.HasPrefix(ev.Turn.Content, prev))
		assert.Equal(t, PhaseStreaming, ev.Phase)
		prev = ev.Turn.Content
	}
	assert.Equal(t, res.Content, prev)

	narr := log.kinds(EventNarration)
	require.Len(t, narr, 1)
	assert.Equal(t, "", narr[0].Turn.Content, "narration arrives before any reply text")
	assert.Len(t, log.kinds(EventSettled), 1)
	assert.Len(t, log.kinds(EventTurnAdded), 2)
}

func TestSend_HistoryFedToNextTurn(t *testing.T) {
	gen := newFakeGenerator("ok")
	o, _ := newTestOrchestrator(t, gen, testPersona())

	_, err := o.Send(context.Background(), "first")
	require.NoError(t, err)
	_, err = o.Send(context.Background(), "second")
	require.NoError(t, err)

	require.Len(t, gen.histories, 2)
	assert.Empty(t, gen.histories[0])
	assert.Equal(t, model.History{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "ok"},
	}, gen.histories[1])
	assert.Len(t, o.History(), 4)
}

// =============================================================================
// FAILURES
// =============================================================================

func TestSend_StreamFailureLeavesHistoryUnchanged(t *testing.T) {
	gen := newFakeGenerator("ok")
	o, log := newTestOrchestrator(t, gen, testPersona())
	_, err := o.Send(context.Background(), "first")
	require.NoError(t, err)
	before := o.History()

	gen.parts = []string{"partial ", "reply"}
	gen.failAt = 1
	res, err := o.Send(context.Background(), "second")
	require.NoError(t, err, "generation failures are reported in the result")
	require.Error(t, res.Err)
	assert.False(t, res.OK())

	assert.Equal(t, before, o.History())

	last := o.Transcript()[len(o.Transcript())-1]
	assert.Equal(t, res.TurnID, last.ID)
	assert.Equal(t, ErrorReply, last.Content)
	assert.Equal(t, ErrorNarration, last.Narration)
	assert.True(t, last.Failed)
	assert.False(t, last.Pending)
	assert.False(t, o.Busy())

	settled := log.kinds(EventSettled)
	require.NotEmpty(t, settled)
	assert.Error(t, settled[len(settled)-1].Err)
}

func TestSend_NarrationFailure(t *testing.T) {
	gen := newFakeGenerator("unused")
	gen.narrateErr = muse.ErrGenerationFailed
	synth := &fakeSynth{}
	o, _ := newTestOrchestrator(t, gen, voicedPersona(), WithSynthesizer(synth))

	res, err := o.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, muse.ErrGenerationFailed)
	assert.Empty(t, o.History())
	assert.Equal(t, int32(0), synth.calls.Load())
	assert.True(t, res.Speech.Wait().Skipped)

	turns := o.Transcript()
	require.Len(t, turns, 3)
	assert.Equal(t, ErrorReply, turns[2].Content)
}

func TestSend_RespondStartFailure(t *testing.T) {
	gen := newFakeGenerator()
	gen.respondErr = errors.New("503")
	o, _ := newTestOrchestrator(t, gen, testPersona())

	res, err := o.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Error(t, res.Err)
	assert.Empty(t, o.History())
	assert.Equal(t, ErrorReply, o.Transcript()[2].Content)
}

// =============================================================================
// ENTRY GUARDS
// =============================================================================

func TestSend_RejectsEmpty(t *testing.T) {
	o, _ := newTestOrchestrator(t, newFakeGenerator(), testPersona())
	_, err := o.Send(context.Background(), " \n\t ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Len(t, o.Transcript(), 1)
}

func TestSend_OneTurnInFlight(t *testing.T) {
	gen := newFakeGenerator("done")
	gen.block = make(chan struct{})
	o, _ := newTestOrchestrator(t, gen, testPersona())

	results := make(chan TurnResult, 1)
	go func() {
		res, _ := o.Send(context.Background(), "first")
		results <- res
	}()
	require.Eventually(t, o.Busy, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, PhaseAwaitingNarration, o.Phase())

	turns := o.Transcript()
	require.Len(t, turns, 3)
	assert.True(t, turns[2].IsLoading())

	_, err := o.Send(context.Background(), "second")
	assert.ErrorIs(t, err, ErrTurnInFlight)
	assert.Len(t, o.Transcript(), 3, "rejected submissions leave the transcript alone")

	close(gen.block)
	res := <-results
	assert.True(t, res.OK())
	assert.Equal(t, "done", res.Content)
}

func TestCancel_SettlesWithCancelledReply(t *testing.T) {
	gen := newFakeGenerator("never")
	gen.block = make(chan struct{})
	o, _ := newTestOrchestrator(t, gen, testPersona())

	results := make(chan TurnResult, 1)
	go func() {
		res, _ := o.Send(context.Background(), "hello")
		results <- res
	}()
	require.Eventually(t, o.Busy, 5*time.Second, 5*time.Millisecond)

	o.Cancel()
	res := <-results
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, CancelledReply, o.Transcript()[2].Content)
	assert.Empty(t, o.History())
	assert.False(t, o.Busy())
}

// =============================================================================
// PERSONA SWITCH
// =============================================================================

func TestSwitchPersona_ResetsSession(t *testing.T) {
	o, log := newTestOrchestrator(t, newFakeGenerator("ok"), testPersona())
	_, err := o.Send(context.Background(), "hello")
	require.NoError(t, err)

	next := testPersona()
	next.ID = "p2"
	next.Name = "Orin"
	next.Title = "Stoic Mentor"
	next.Description = "Calm and direct."
	o.SwitchPersona(next)

	turns := o.Transcript()
	require.Len(t, turns, 1)
	assert.Equal(t, "Hello! I'm Orin, your stoic mentor. Calm and direct. How can I assist you today?", turns[0].Content)
	assert.Equal(t, SwitchNarration, turns[0].Narration)
	assert.Empty(t, o.History())
	assert.Equal(t, "p2", o.Persona().ID)
	assert.Len(t, log.kinds(EventReset), 2)
}

func TestSwitchPersona_DiscardsInFlightTurn(t *testing.T) {
	gen := newFakeGenerator("late")
	gen.block = make(chan struct{})
	o, _ := newTestOrchestrator(t, gen, testPersona())

	results := make(chan TurnResult, 1)
	go func() {
		res, _ := o.Send(context.Background(), "hello")
		results <- res
	}()
	require.Eventually(t, o.Busy, 5*time.Second, 5*time.Millisecond)

	o.SwitchPersona(testPersona())
	assert.False(t, o.Busy(), "a new persona can be used immediately")

	res := <-results
	assert.True(t, res.Superseded)
	assert.False(t, res.OK())

	turns := o.Transcript()
	require.Len(t, turns, 1, "late results must not reappear")
	assert.Equal(t, SwitchNarration, turns[0].Narration)
	assert.Empty(t, o.History())
}

// =============================================================================
// SPEECH
// =============================================================================

func TestSpeech_VoicedTurnRetainsOneClip(t *testing.T) {
	synth := &fakeSynth{}
	o, log := newTestOrchestrator(t, newFakeGenerator("ok"), voicedPersona(), WithSynthesizer(synth))

	first, err := o.Send(context.Background(), "one")
	require.NoError(t, err)
	require.NotNil(t, first.Speech.Wait().Clip)
	assert.False(t, first.Speech.Wait().Skipped)
	assert.Same(t, first.Speech.Wait().Clip, o.CurrentClip())

	second, err := o.Send(context.Background(), "two")
	require.NoError(t, err)
	require.NotNil(t, second.Speech.Wait().Clip)
	assert.True(t, first.Speech.Wait().Clip.Released(), "the previous clip is released on replacement")
	assert.False(t, second.Speech.Wait().Clip.Released())
	assert.Same(t, second.Speech.Wait().Clip, o.CurrentClip())

	assert.Equal(t, int32(2), synth.calls.Load())
	assert.Len(t, log.kinds(EventSpeechReady), 2)

	o.SwitchPersona(voicedPersona())
	assert.True(t, second.Speech.Wait().Clip.Released())
	assert.Nil(t, o.CurrentClip())
}

func TestSpeech_FailureIsIgnorable(t *testing.T) {
	synth := &fakeSynth{err: errors.New("speech provider error (HTTP 401)")}
	o, log := newTestOrchestrator(t, newFakeGenerator("still fine"), voicedPersona(), WithSynthesizer(synth))

	res, err := o.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "still fine", res.Content)
	assert.Error(t, res.Speech.Wait().Err)
	assert.Nil(t, res.Speech.Wait().Clip)
	assert.Len(t, o.History(), 2)
	assert.Len(t, log.kinds(EventSpeechFailed), 1)
}

func TestSpeech_SlowSynthesisDoesNotHoldTurn(t *testing.T) {
	synth := &fakeSynth{release: make(chan struct{})}
	o, log := newTestOrchestrator(t, newFakeGenerator("quick reply"), voicedPersona(), WithSynthesizer(synth))

	results := make(chan TurnResult, 1)
	go func() {
		res, _ := o.Send(context.Background(), "hello")
		results <- res
	}()

	var res TurnResult
	select {
	case res = <-results:
	case <-time.After(5 * time.Second):
		t.Fatal("Send waited for speech synthesis")
	}
	assert.True(t, res.OK())
	assert.False(t, o.Busy())
	assert.Len(t, log.kinds(EventSettled), 1)
	assert.Empty(t, log.kinds(EventSpeechReady))

	select {
	case <-res.Speech.Done():
		t.Fatal("speech finished before synthesis was released")
	default:
	}

	close(synth.release)
	out := res.Speech.Wait()
	require.NotNil(t, out.Clip)
	assert.Same(t, out.Clip, o.CurrentClip())
	assert.Len(t, log.kinds(EventSpeechReady), 1)
}

func TestSpeech_SwitchAbandonsPendingSynthesis(t *testing.T) {
	synth := &fakeSynth{release: make(chan struct{})}
	o, log := newTestOrchestrator(t, newFakeGenerator("ok"), voicedPersona(), WithSynthesizer(synth))

	res, err := o.Send(context.Background(), "hello")
	require.NoError(t, err)
	require.True(t, res.OK())

	o.SwitchPersona(voicedPersona())
	out := res.Speech.Wait()
	assert.True(t, out.Skipped)
	assert.Nil(t, out.Clip)
	assert.Nil(t, o.CurrentClip())
	assert.Empty(t, log.kinds(EventSpeechFailed), "abandoned speech is not a failure")
}

func TestSpeech_SkippedWhenMutedOrUnvoiced(t *testing.T) {
	synth := &fakeSynth{}

	muted, _ := newTestOrchestrator(t, newFakeGenerator("ok"), voicedPersona(), WithSynthesizer(synth), WithMuted(true))
	res, err := muted.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, res.Speech.Wait().Skipped)
	assert.True(t, muted.Muted())

	silent, _ := newTestOrchestrator(t, newFakeGenerator("ok"), testPersona(), WithSynthesizer(synth))
	res, err = silent.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, res.Speech.Wait().Skipped)

	assert.Equal(t, int32(0), synth.calls.Load())

	muted.SetMuted(false)
	res, err = muted.Send(context.Background(), "again")
	require.NoError(t, err)
	assert.NotNil(t, res.Speech.Wait().Clip)
	assert.Equal(t, int32(1), synth.calls.Load())
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "streaming_response", PhaseStreaming.String())
	assert.Equal(t, "unknown", Phase(99).String())
}
