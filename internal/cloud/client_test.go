// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
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
)

const testKey = "sk-or-test-abcdefghijklmnopqrstuvwxyz0123456789"

// recordedRequest captures what the fake OpenRouter saw.
type recordedRequest struct {
	Path    string
	Header  http.Header
	Payload map[string]any
}

type requestLog struct {
	mu   sync.Mutex
	reqs []recordedRequest
}

func (l *requestLog) all() []recordedRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recordedRequest(nil), l.reqs...)
}

func newFakeOpenRouter(t *testing.T, handler func(w http.ResponseWriter, payload map[string]any)) (*httptest.Server, *requestLog) {
	t.Helper()
	log := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		payload := map[string]any{}
		json.Unmarshal(body, &payload)
		log.mu.Lock()
		log.reqs = append(log.reqs, recordedRequest{Path: r.URL.Path, Header: r.Header.Clone(), Payload: payload})
		log.mu.Unlock()
		handler(w, payload)
	}))
	t.Cleanup(srv.Close)
	return srv, log
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{
		"id": "gen-1",
		"model": "openai/gpt-4o-mini",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": %q}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30}
	}`, content)
}

func writeStream(w http.ResponseWriter, fragments ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	fmt.Fprint(w, ": OPENROUTER PROCESSING\n\n")
	for _, f := range fragments {
		chunk := map[string]any{
			"id":      "gen-1",
			"choices": []any{map[string]any{"index": 0, "delta": map[string]any{"content": f}}},
		}
		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}
	fmt.Fprint(w, `data: {"id":"gen-1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`+"\n\n")
	fmt.Fprint(w, "data: [DONE]\n\n")
}

// =============================================================================
// CHAT TESTS
// =============================================================================

func TestChat_SendsRequestAndHeaders(t *testing.T) {
	srv, seen := newFakeOpenRouter(t, func(w http.ResponseWriter, _ map[string]any) {
		writeCompletion(w, "[NARRATION: *smiles*]")
	})

	client := NewOpenRouterClient(testKey).
		WithBaseURL(srv.URL).
		WithSiteURL("https://muse.local").
		WithSiteName("Muse")

	resp, err := client.Chat(context.Background(), ChatRequest{
		Model:       "openai/gpt-4o-mini",
		Messages:    []ChatMessage{NewSystemMessage("sys"), NewUserMessage("hi")},
		Temperature: 0.9,
		MaxTokens:   1000,
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Content != "[NARRATION: *smiles*]" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 30 {
		t.Errorf("TotalTokens = %d, want 30", resp.Usage.TotalTokens)
	}

	reqs := seen.all()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	req := reqs[0]
	if req.Path != "/chat/completions" {
		t.Errorf("path = %q", req.Path)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer "+testKey {
		t.Errorf("Authorization = %q", got)
	}
	if got := req.Header.Get("HTTP-Referer"); got != "https://muse.local" {
		t.Errorf("HTTP-Referer = %q", got)
	}
	if got := req.Header.Get("X-Title"); got != "Muse" {
		t.Errorf("X-Title = %q", got)
	}
	if got := req.Header.Get("User-Agent"); got != DefaultUserAgent {
		t.Errorf("User-Agent = %q", got)
	}
	if req.Payload["model"] != "openai/gpt-4o-mini" {
		t.Errorf("model = %v", req.Payload["model"])
	}
	if temp, _ := req.Payload["temperature"].(float64); temp < 0.89 || temp > 0.91 {
		t.Errorf("temperature = %v, want 0.9", req.Payload["temperature"])
	}
	if req.Payload["max_tokens"] != float64(1000) {
		t.Errorf("max_tokens = %v", req.Payload["max_tokens"])
	}
	msgs, _ := req.Payload["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if first, _ := msgs[0].(map[string]any); first["role"] != "system" || first["content"] != "sys" {
		t.Errorf("first message = %v", first)
	}
}

func TestChat_NotConfigured(t *testing.T) {
	client := NewOpenRouterClient("  ")
	if client.IsConfigured() {
		t.Fatal("blank key should not count as configured")
	}
	_, err := client.Chat(context.Background(), ChatRequest{Model: "m"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}
	_, err = client.ChatStream(context.Background(), ChatRequest{Model: "m"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("stream error = %v, want ErrNotConfigured", err)
	}
}

func TestChat_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"No auth credentials found","code":401}}`, ErrAuthFailed},
		{"credits", http.StatusPaymentRequired, `{"error":{"message":"Insufficient credits","code":402}}`, ErrInsufficientCredits},
		{"model", http.StatusNotFound, `{"error":{"message":"No endpoints found","code":404}}`, ErrModelNotFound},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","code":429}}`, ErrRateLimited},
		{"server", http.StatusInternalServerError, `boom`, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newFakeOpenRouter(t, func(w http.ResponseWriter, _ map[string]any) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			})
			client := NewOpenRouterClient(testKey).WithBaseURL(srv.URL)

			_, err := client.Chat(context.Background(), ChatRequest{Model: "openai/gpt-4o"})
			if err == nil {
				t.Fatal("expected error")
			}
			var orErr *OpenRouterError
			if !errors.As(err, &orErr) {
				t.Fatalf("error %T is not *OpenRouterError: %v", err, err)
			}
			if orErr.Status != tc.status {
				t.Errorf("Status = %d, want %d", orErr.Status, tc.status)
			}
			if tc.kind != nil && !errors.Is(err, tc.kind) {
				t.Errorf("errors.Is(%v, %v) = false", err, tc.kind)
			}
			if tc.kind == nil && !strings.Contains(orErr.Message, "boom") {
				t.Errorf("Message = %q, want body text", orErr.Message)
			}
		})
	}
}

func TestChat_EmptyChoices(t *testing.T) {
	srv, _ := newFakeOpenRouter(t, func(w http.ResponseWriter, _ map[string]any) {
		io.WriteString(w, `{"id":"x","choices":[]}`)
	})
	client := NewOpenRouterClient(testKey).WithBaseURL(srv.URL)

	_, err := client.Chat(context.Background(), ChatRequest{Model: "m"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("error = %v, want ErrEmptyResponse", err)
	}
}

// =============================================================================
// STREAM TESTS
// =============================================================================

func TestChatStream_FragmentsInOrder(t *testing.T) {
	srv, seen := newFakeOpenRouter(t, func(w http.ResponseWriter, _ map[string]any) {
		writeStream(w, "Once", " upon", " a", " time.")
	})
	client := NewOpenRouterClient(testKey).WithBaseURL(srv.URL)

	stream, err := client.ChatStream(context.Background(), ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}
	defer stream.Close()

	var got []string
	for {
		f, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		got = append(got, f)
	}

	want := []string{"Once", " upon", " a", " time."}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("fragments = %q, want %q", got, want)
	}
	if stream.FinishReason() != "stop" {
		t.Errorf("FinishReason = %q, want stop", stream.FinishReason())
	}
	if _, err := stream.Next(); err != io.EOF {
		t.Errorf("Next() after end = %v, want io.EOF", err)
	}
	if seen.all()[0].Payload["stream"] != true {
		t.Errorf("stream flag not sent: %v", seen.all()[0].Payload)
	}
}

func TestChatStream_ZeroTemperatureIsSent(t *testing.T) {
	srv, seen := newFakeOpenRouter(t, func(w http.ResponseWriter, _ map[string]any) {
		writeStream(w, "ok")
	})
	client := NewOpenRouterClient(testKey).WithBaseURL(srv.URL)

	stream, err := client.ChatStream(context.Background(), ChatRequest{
		Model:       "openai/gpt-4o-mini",
		Messages:    []ChatMessage{NewUserMessage("hi")},
		Temperature: 0,
		MaxTokens:   100,
	})
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}
	stream.Close()

	temp, ok := seen.all()[0].Payload["temperature"].(float64)
	if !ok {
		t.Fatalf("temperature missing from payload: %v", seen.all()[0].Payload)
	}
	if temp < 0 || temp > 1e-6 {
		t.Errorf("temperature = %v, want effectively 0", temp)
	}
}

func TestChatStream_StartFailure(t *testing.T) {
	srv, _ := newFakeOpenRouter(t, func(w http.ResponseWriter, _ map[string]any) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"bad key","code":401}}`)
	})
	client := NewOpenRouterClient(testKey).WithBaseURL(srv.URL)

	_, err := client.ChatStream(context.Background(), ChatRequest{Model: "m"})
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("error = %v, want ErrAuthFailed", err)
	}
}

// =============================================================================
// MISC
// =============================================================================

func TestTestConnection(t *testing.T) {
	srv, seen := newFakeOpenRouter(t, func(w http.ResponseWriter, _ map[string]any) {
		writeCompletion(w, "ok")
	})
	client := NewOpenRouterClient(testKey).WithBaseURL(srv.URL)

	if err := client.TestConnection(context.Background()); err != nil {
		t.Fatalf("TestConnection() error = %v", err)
	}
	if seen.all()[0].Payload["model"] != ConnectionTestModel {
		t.Errorf("model = %v, want %s", seen.all()[0].Payload["model"], ConnectionTestModel)
	}
}

func TestKeyFingerprint(t *testing.T) {
	a := NewOpenRouterClient(testKey).KeyFingerprint()
	b := NewOpenRouterClient(testKey + "x").KeyFingerprint()
	if len(a) != 8 {
		t.Errorf("fingerprint length = %d, want 8", len(a))
	}
	if a == b {
		t.Error("different keys should have different fingerprints")
	}
	if strings.Contains(testKey, a) {
		t.Error("fingerprint must not be a key fragment")
	}
	if got := NewOpenRouterClient("").KeyFingerprint(); got != "none" {
		t.Errorf("empty fingerprint = %q", got)
	}
}
