// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package speech voices narration through the ElevenLabs text-to-speech API
// and manages the short-lived audio files used for playback.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the ElevenLabs REST endpoint.
	DefaultBaseURL = "https://api.elevenlabs.io/v1"

	// DefaultModelID is the synthesis model.
	DefaultModelID = "eleven_multilingual_v2"

	// DefaultTimeout bounds a single API call.
	DefaultTimeout = 30 * time.Second

	// maxAudioSize caps a synthesized clip.
	maxAudioSize = 20 << 20
)

var (
	// ErrEmptyText is returned when there is nothing to synthesize.
	ErrEmptyText = errors.New("speech: text is empty")

	// ErrMissingVoice is returned when no voice id is given.
	ErrMissingVoice = errors.New("speech: voice id is required")

	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("speech: ElevenLabs API key not configured")
)

// ProviderError is a non-success response from the speech provider.
type ProviderError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("speech provider error (HTTP %d)", e.Status)
	}
	return fmt.Sprintf("speech provider error (HTTP %d): %s", e.Status, e.Body)
}

// VoiceSettings are the fixed synthesis parameters.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// DefaultVoiceSettings returns the balanced settings used for narration.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.5,
		Style:           0.5,
		UseSpeakerBoost: true,
	}
}

// synthesisRequest is the POST body of /text-to-speech/{voice}.
type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client calls the ElevenLabs REST API.
type Client struct {
	apiKey   string
	baseURL  string
	modelID  string
	settings VoiceSettings
	http     *http.Client
	logger   zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithModelID overrides the synthesis model.
func WithModelID(id string) Option {
	return func(c *Client) {
		if id != "" {
			c.modelID = id
		}
	}
}

// WithVoiceSettings overrides the synthesis parameters.
func WithVoiceSettings(s VoiceSettings) Option {
	return func(c *Client) { c.settings = s }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l.With().Str("component", "speech").Logger() }
}

// NewClient creates a client for apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:   strings.TrimSpace(apiKey),
		baseURL:  DefaultBaseURL,
		modelID:  DefaultModelID,
		settings: DefaultVoiceSettings(),
		http:     &http.Client{Timeout: DefaultTimeout},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsConfigured returns true if an API key is set.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Synthesize converts text to MPEG audio with the given voice. Empty text or
// voice id fail before any request is made.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	text = strings.TrimSpace(text)
	voiceID = strings.TrimSpace(voiceID)
	if text == "" {
		return nil, ErrEmptyText
	}
	if voiceID == "" {
		return nil, ErrMissingVoice
	}
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	body, err := sonic.Marshal(synthesisRequest{
		Text:          text,
		ModelID:       c.modelID,
		VoiceSettings: c.settings,
	})
	if err != nil {
		return nil, fmt.Errorf("encode synthesis request: %w", err)
	}

	endpoint := c.baseURL + "/text-to-speech/" + url.PathEscape(voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build synthesis request: %w", err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ProviderError{Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioSize+1))
	if err != nil {
		return nil, fmt.Errorf("read synthesized audio: %w", err)
	}
	if len(audio) > maxAudioSize {
		return nil, fmt.Errorf("synthesized audio exceeds %d bytes", maxAudioSize)
	}

	c.logger.Debug().
		Str("voice", voiceID).
		Int("bytes", len(audio)).
		Dur("elapsed", time.Since(start)).
		Msg("synthesized narration")
	return audio, nil
}

// TestConnection lists voices and reports whether the API answered. Unlike
// ListVoices it does not hide failures behind the fallback list.
func (c *Client) TestConnection(ctx context.Context) error {
	return c.ListVoices(ctx).Err
}
