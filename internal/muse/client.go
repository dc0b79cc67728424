// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package muse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/muse-tui/internal/cloud"
	"github.com/jeranaias/muse-tui/internal/model"
	"github.com/jeranaias/muse-tui/internal/persona"
)

// ErrGenerationFailed is the single failure reported for either phase. The
// provider error stays reachable through errors.Is/As.
var ErrGenerationFailed = errors.New("generation failed")

// Completer is the chat transport. *cloud.OpenRouterClient satisfies it.
type Completer interface {
	Chat(ctx context.Context, req cloud.ChatRequest) (*cloud.ChatResponse, error)
	ChatStream(ctx context.Context, req cloud.ChatRequest) (*cloud.Stream, error)
}

// Fragments is a single-pass sequence of reply text. Next returns io.EOF
// after the last fragment.
type Fragments interface {
	Next() (string, error)
	Close() error
}

// Client runs the narration and response phases.
type Client struct {
	completer Completer
	logger    zerolog.Logger
}

// NewClient creates a client over completer.
func NewClient(completer Completer, logger zerolog.Logger) *Client {
	return &Client{
		completer: completer,
		logger:    logger.With().Str("component", "muse").Logger(),
	}
}

func baseMessages(p persona.Persona, userMessage string, history model.History) []cloud.ChatMessage {
	msgs := make([]cloud.ChatMessage, 0, len(history)+4)
	msgs = append(msgs, cloud.NewSystemMessage(SystemPrompt(p, userMessage)))
	for _, h := range history {
		msgs = append(msgs, cloud.ChatMessage{Role: h.Role, Content: h.Content})
	}
	return append(msgs, cloud.NewUserMessage(userMessage))
}

// Narrate runs phase one and returns the extracted narration.
func (c *Client) Narrate(ctx context.Context, p persona.Persona, userMessage string, history model.History) (string, error) {
	start := time.Now()
	resp, err := c.completer.Chat(ctx, cloud.ChatRequest{
		Model:       p.Model,
		Messages:    baseMessages(p, userMessage, history),
		Temperature: NarrationTemperature(p.Temperature),
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		c.logger.Error().Err(err).Str("model", p.Model).Msg("narration request failed")
		return "", fmt.Errorf("%w: narration: %w", ErrGenerationFailed, err)
	}

	narration := ExtractNarration(resp.Content)
	if narration == FallbackNarration {
		c.logger.Debug().Str("model", p.Model).Msg("no narration tag in output, using fallback")
	}
	c.logger.Debug().Dur("elapsed", time.Since(start)).Str("narration", narration).Msg("narration ready")
	return narration, nil
}

// Respond runs phase two and returns the streamed reply.
func (c *Client) Respond(ctx context.Context, p persona.Persona, userMessage string, history model.History, narration string) (Fragments, error) {
	msgs := append(baseMessages(p, userMessage, history),
		cloud.NewAssistantMessage(NarrationTag(narration)),
		cloud.NewUserMessage(ResponseInstruction),
	)
	stream, err := c.completer.ChatStream(ctx, cloud.ChatRequest{
		Model:       p.Model,
		Messages:    msgs,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		c.logger.Error().Err(err).Str("model", p.Model).Msg("response stream failed to start")
		return nil, fmt.Errorf("%w: response: %w", ErrGenerationFailed, err)
	}
	return &fragments{src: stream, logger: c.logger, model: p.Model, maxTokens: p.MaxTokens}, nil
}

// fragments wraps the transport stream so mid-stream failures carry
// ErrGenerationFailed too.
type fragments struct {
	src       *cloud.Stream
	logger    zerolog.Logger
	model     string
	maxTokens int
	ended     bool
}

func (f *fragments) Next() (string, error) {
	s, err := f.src.Next()
	if errors.Is(err, io.EOF) {
		f.finish()
		return s, err
	}
	if err == nil {
		return s, nil
	}
	f.logger.Error().Err(err).Msg("response stream interrupted")
	return "", fmt.Errorf("%w: response: %w", ErrGenerationFailed, err)
}

// finish logs how the provider ended the reply. A "length" finish means the
// reply was cut at max_tokens.
func (f *fragments) finish() {
	if f.ended {
		return
	}
	f.ended = true
	reason := f.src.FinishReason()
	if reason == "length" {
		f.logger.Warn().Str("model", f.model).Int("max_tokens", f.maxTokens).Msg("reply truncated at token limit")
		return
	}
	f.logger.Debug().Str("model", f.model).Str("finish_reason", reason).Msg("reply complete")
}

func (f *fragments) Close() error {
	return f.src.Close()
}
