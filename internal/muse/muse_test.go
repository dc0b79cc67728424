// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package muse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/muse-tui/internal/cloud"
	"github.com/jeranaias/muse-tui/internal/model"
	"github.com/jeranaias/muse-tui/internal/persona"
)

// =============================================================================
// PROMPT HELPERS
// =============================================================================

func TestExtractNarration(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"tagged", "[NARRATION: *leans in*]\n\n[RESPONSE: Hello]", "leans in"},
		{"no emphasis", "[NARRATION: smiles softly]", "smiles softly"},
		{"same line as response", "[NARRATION: *nods*] [RESPONSE: Sure]", "nods"},
		{"surrounding text", "Sure! [NARRATION:   *taps chin*  ] more", "taps chin"},
		{"missing tag", "Just a plain answer", FallbackNarration},
		{"empty tag", "[NARRATION: **]", FallbackNarration},
		{"empty input", "", FallbackNarration},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractNarration(tc.in))
		})
	}
}

func TestNarrationTemperature(t *testing.T) {
	assert.InDelta(t, 0.9, NarrationTemperature(0.7), 1e-9)
	assert.InDelta(t, 0.2, NarrationTemperature(0), 1e-9)
	assert.Equal(t, 1.0, NarrationTemperature(0.9))
	assert.Equal(t, 1.0, NarrationTemperature(1.0))
}

func TestSystemPrompt(t *testing.T) {
	p := persona.Default(time.Now())
	p.NarrationLength = persona.NarrationShort

	got := SystemPrompt(p, "What is a sonnet?")
	assert.True(t, strings.HasPrefix(got, p.SystemPrompt))
	assert.Contains(t, got, "max 50 characters")
	assert.Contains(t, got, "[RESPONSE:")
	assert.Contains(t, got, `reply to: "What is a sonnet?"`)

	quoted := SystemPrompt(p, "She said \"hi\"\nthen left")
	assert.True(t, strings.HasSuffix(quoted, "reply to: \"She said \"hi\"\nthen left\""),
		"the message is embedded verbatim, not escaped")
	assert.NotContains(t, quoted, `\"hi\"`)
}

// =============================================================================
// PHASES AGAINST A FAKE PROVIDER
// =============================================================================

type fakeProvider struct {
	mu       sync.Mutex
	payloads []map[string]any

	narration string
	fragments []string
	failChat  bool
	breakAt   int // close the stream abruptly after this many fragments; 0 = never
	finish    string
}

func (f *fakeProvider) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	payload := map[string]any{}
	json.Unmarshal(body, &payload)
	f.mu.Lock()
	f.payloads = append(f.payloads, payload)
	f.mu.Unlock()

	if f.failChat {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, `{"error":{"message":"upstream down","code":502}}`)
		return
	}

	if payload["stream"] != true {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"n","choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, f.narration)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	for i, frag := range f.fragments {
		if f.breakAt > 0 && i == f.breakAt {
			io.WriteString(w, "data: {not json\n\n")
			return
		}
		data, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"index": 0, "delta": map[string]any{"content": frag}}},
		})
		fmt.Fprintf(w, "data: %s\n\n", data)
	}
	if f.finish != "" {
		fmt.Fprintf(w, "data: {\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":%q}]}\n\n", f.finish)
	}
	io.WriteString(w, "data: [DONE]\n\n")
}

func (f *fakeProvider) requests() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.payloads...)
}

func newTestClient(t *testing.T, f *fakeProvider) *Client {
	return newLoggedTestClient(t, f, zerolog.Nop())
}

func newLoggedTestClient(t *testing.T, f *fakeProvider, logger zerolog.Logger) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(srv.Close)
	transport := cloud.NewOpenRouterClient("sk-or-test").WithBaseURL(srv.URL)
	return NewClient(transport, logger)
}

func collect(t *testing.T, frags Fragments) (string, error) {
	t.Helper()
	defer frags.Close()
	var b strings.Builder
	for {
		s, err := frags.Next()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(s)
	}
}

func TestNarrate_RequestShape(t *testing.T) {
	f := &fakeProvider{narration: "[NARRATION: *leans in*]\n[RESPONSE: ...]"}
	c := newTestClient(t, f)
	p := persona.Default(time.Now())
	history := model.History{}.AppendExchange("earlier question", "earlier answer")

	n, err := c.Narrate(context.Background(), p, "Tell me a story", history)
	require.NoError(t, err)
	assert.Equal(t, "leans in", n)

	reqs := f.requests()
	require.Len(t, reqs, 1)
	assert.InDelta(t, 0.9, reqs[0]["temperature"], 1e-6)
	assert.Nil(t, reqs[0]["stream"])

	msgs := reqs[0]["messages"].([]any)
	require.Len(t, msgs, 4)
	roles := make([]string, len(msgs))
	for i, m := range msgs {
		roles[i] = m.(map[string]any)["role"].(string)
	}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
	assert.Equal(t, "Tell me a story", msgs[3].(map[string]any)["content"])
}

func TestNarrate_FallbackIsNotAnError(t *testing.T) {
	c := newTestClient(t, &fakeProvider{narration: "no tag here"})
	n, err := c.Narrate(context.Background(), persona.Default(time.Now()), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, FallbackNarration, n)
}

func TestNarrate_ProviderFailure(t *testing.T) {
	c := newTestClient(t, &fakeProvider{failChat: true})
	_, err := c.Narrate(context.Background(), persona.Default(time.Now()), "hi", nil)
	require.ErrorIs(t, err, ErrGenerationFailed)

	var orErr *cloud.OpenRouterError
	require.ErrorAs(t, err, &orErr)
	assert.Equal(t, http.StatusBadGateway, orErr.Status)
}

func TestRespond_StreamsFragmentsInOrder(t *testing.T) {
	f := &fakeProvider{fragments: []string{"The ", "sea ", "remembers ", "everything."}}
	c := newTestClient(t, f)
	p := persona.Default(time.Now())

	frags, err := c.Respond(context.Background(), p, "Describe the sea", nil, "gazes out")
	require.NoError(t, err)
	text, err := collect(t, frags)
	require.NoError(t, err)
	assert.Equal(t, "The sea remembers everything.", text)

	reqs := f.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, true, reqs[0]["stream"])
	assert.InDelta(t, 0.7, reqs[0]["temperature"], 1e-6)

	msgs := reqs[0]["messages"].([]any)
	require.Len(t, msgs, 4)
	tail := msgs[2].(map[string]any)
	assert.Equal(t, "assistant", tail["role"])
	assert.Equal(t, "[NARRATION: gazes out]", tail["content"])
	last := msgs[3].(map[string]any)
	assert.Equal(t, "user", last["role"])
	assert.Equal(t, ResponseInstruction, last["content"])
}

func TestRespond_MidStreamFailure(t *testing.T) {
	f := &fakeProvider{fragments: []string{"one ", "two ", "three"}, breakAt: 2}
	c := newTestClient(t, f)

	frags, err := c.Respond(context.Background(), persona.Default(time.Now()), "hi", nil, "nods")
	require.NoError(t, err)
	text, err := collect(t, frags)
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, "one two ", text)
}

func TestRespond_LogsTruncatedReply(t *testing.T) {
	var buf bytes.Buffer
	f := &fakeProvider{fragments: []string{"cut ", "short"}, finish: "length"}
	c := newLoggedTestClient(t, f, zerolog.New(&buf))

	frags, err := c.Respond(context.Background(), persona.Default(time.Now()), "hi", nil, "nods")
	require.NoError(t, err)
	text, err := collect(t, frags)
	require.NoError(t, err)
	assert.Equal(t, "cut short", text)
	assert.Contains(t, buf.String(), "reply truncated at token limit")

	buf.Reset()
	f.finish = "stop"
	frags, err = c.Respond(context.Background(), persona.Default(time.Now()), "hi", nil, "nods")
	require.NoError(t, err)
	_, err = collect(t, frags)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "truncated")
}

func TestRespond_StartFailure(t *testing.T) {
	c := newTestClient(t, &fakeProvider{failChat: true})
	_, err := c.Respond(context.Background(), persona.Default(time.Now()), "hi", nil, "nods")
	assert.ErrorIs(t, err, ErrGenerationFailed)
}
