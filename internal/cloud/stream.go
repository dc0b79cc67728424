// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// Stream yields the text fragments of a streaming completion in emission
// order. It is single-pass: once Next returns an error (io.EOF at the normal
// end) every later call returns io.EOF.
type Stream struct {
	src    *openai.ChatCompletionStream
	logger zerolog.Logger

	done         bool
	fragments    int
	finishReason string
}

// Next returns the next non-empty fragment.
func (s *Stream) Next() (string, error) {
	for {
		if s.done {
			return "", io.EOF
		}
		resp, err := s.src.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			s.logger.Debug().Int("fragments", s.fragments).Str("finish_reason", s.finishReason).Msg("chat stream finished")
			return "", io.EOF
		}
		if err != nil {
			s.done = true
			return "", fmt.Errorf("stream interrupted after %d fragments: %w", s.fragments, classifyError(err))
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		if choice.FinishReason != "" {
			s.finishReason = string(choice.FinishReason)
		}
		if choice.Delta.Content == "" {
			continue
		}
		s.fragments++
		return choice.Delta.Content, nil
	}
}

// FinishReason returns the provider's finish reason once the stream ended.
func (s *Stream) FinishReason() string {
	return s.finishReason
}

// Close releases the underlying response body.
func (s *Stream) Close() error {
	s.done = true
	return s.src.Close()
}
