// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// Configuration constants for OpenRouter API.
const (
	// DefaultOpenRouterURL is the base URL for OpenRouter API.
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

	// DefaultTimeout bounds non-streaming requests. Streams are bounded by
	// the caller's context only.
	DefaultTimeout = 60 * time.Second

	// DefaultUserAgent identifies the client to OpenRouter.
	DefaultUserAgent = "muse-tui/1.0"

	// ConnectionTestModel is the model used by TestConnection.
	ConnectionTestModel = "openai/gpt-4o-mini"
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one message of a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: content}
}

// ChatRequest is a chat completion request. Zero MaxTokens leaves the limit
// to the provider.
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
}

// Usage reports token accounting for a completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse is a non-streaming completion result.
type ChatResponse struct {
	ID           string
	Model        string
	Content      string
	FinishReason string
	Usage        Usage
}

// =============================================================================
// CLIENT
// =============================================================================

// OpenRouterClient talks to the OpenRouter chat-completion API.
type OpenRouterClient struct {
	apiKey    string
	baseURL   string
	siteURL   string
	siteName  string
	userAgent string
	timeout   time.Duration
	transport http.RoundTripper
	logger    zerolog.Logger

	api *openai.Client
}

// NewOpenRouterClient creates a client for apiKey. An empty key yields a
// client whose calls fail with ErrNotConfigured.
func NewOpenRouterClient(apiKey string) *OpenRouterClient {
	c := &OpenRouterClient{
		apiKey:    strings.TrimSpace(apiKey),
		baseURL:   DefaultOpenRouterURL,
		userAgent: DefaultUserAgent,
		timeout:   DefaultTimeout,
		logger:    zerolog.Nop(),
	}
	c.rebuild()
	return c
}

// rebuild recreates the go-openai client after a setting changed.
func (c *OpenRouterClient) rebuild() {
	cfg := openai.DefaultConfig(c.apiKey)
	cfg.BaseURL = strings.TrimRight(c.baseURL, "/")
	cfg.HTTPClient = &http.Client{
		Transport: &headerTransport{
			base:      c.transport,
			siteURL:   c.siteURL,
			siteName:  c.siteName,
			userAgent: c.userAgent,
		},
	}
	c.api = openai.NewClientWithConfig(cfg)
}

// WithBaseURL sets a custom base URL (for testing or proxies).
func (c *OpenRouterClient) WithBaseURL(url string) *OpenRouterClient {
	if url != "" {
		c.baseURL = url
		c.rebuild()
	}
	return c
}

// WithTimeout sets the timeout for non-streaming requests.
func (c *OpenRouterClient) WithTimeout(timeout time.Duration) *OpenRouterClient {
	if timeout > 0 {
		c.timeout = timeout
	}
	return c
}

// WithSiteURL sets the HTTP-Referer header value.
func (c *OpenRouterClient) WithSiteURL(url string) *OpenRouterClient {
	c.siteURL = url
	c.rebuild()
	return c
}

// WithSiteName sets the X-Title header value.
func (c *OpenRouterClient) WithSiteName(name string) *OpenRouterClient {
	c.siteName = name
	c.rebuild()
	return c
}

// WithTransport replaces the underlying round tripper.
func (c *OpenRouterClient) WithTransport(rt http.RoundTripper) *OpenRouterClient {
	c.transport = rt
	c.rebuild()
	return c
}

// WithLogger sets the logger.
func (c *OpenRouterClient) WithLogger(l zerolog.Logger) *OpenRouterClient {
	c.logger = l.With().Str("component", "openrouter").Logger()
	return c
}

// IsConfigured returns true if an API key is set.
func (c *OpenRouterClient) IsConfigured() bool {
	return c.apiKey != ""
}

// KeyFingerprint returns a short hash of the API key, safe to log or show.
func (c *OpenRouterClient) KeyFingerprint() string {
	if c.apiKey == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(c.apiKey))
	return hex.EncodeToString(h[:4])
}

func toOpenAI(req ChatRequest) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	// go-openai omits a zero temperature, which leaves the provider default.
	temp := float32(req.Temperature)
	if temp == 0 {
		temp = math.SmallestNonzeroFloat32
	}
	return openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: temp,
		MaxTokens:   req.MaxTokens,
	}
}

// Chat performs a non-streaming chat completion.
func (c *OpenRouterClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, toOpenAI(req))
	if err != nil {
		err = classifyError(err)
		c.logger.Warn().Err(err).Str("model", req.Model).Dur("elapsed", time.Since(start)).Msg("chat completion failed")
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: model %s", ErrEmptyResponse, req.Model)
	}

	choice := resp.Choices[0]
	c.logger.Debug().
		Str("model", resp.Model).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Dur("elapsed", time.Since(start)).
		Msg("chat completion")

	return &ChatResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// ChatStream starts a streaming chat completion. The caller must Close the
// returned stream.
func (c *OpenRouterClient) ChatStream(ctx context.Context, req ChatRequest) (*Stream, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	oreq := toOpenAI(req)
	oreq.Stream = true
	s, err := c.api.CreateChatCompletionStream(ctx, oreq)
	if err != nil {
		err = classifyError(err)
		c.logger.Warn().Err(err).Str("model", req.Model).Msg("chat stream failed to start")
		return nil, err
	}
	c.logger.Debug().Str("model", req.Model).Msg("chat stream started")
	return &Stream{src: s, logger: c.logger}, nil
}

// TestConnection sends a one-word completion to verify the key and network.
func (c *OpenRouterClient) TestConnection(ctx context.Context) error {
	_, err := c.Chat(ctx, ChatRequest{
		Model:     ConnectionTestModel,
		Messages:  []ChatMessage{NewUserMessage("Test")},
		MaxTokens: 5,
	})
	return err
}
