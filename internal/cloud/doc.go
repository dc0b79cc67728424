// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides the OpenRouter transport used for chat generation.
//
// OpenRouter speaks the OpenAI chat-completion protocol, so requests are sent
// with the go-openai client pointed at OpenRouter's base URL. This package
// adds OpenRouter's attribution headers, explicit request/response types and
// a mapping from provider failures to sentinel errors.
//
// # Key Types
//
//   - OpenRouterClient: configured client (API key injected by the caller)
//   - ChatRequest / ChatResponse: explicit request and response schemas
//   - Stream: single-pass iterator over streamed text fragments
//
// # Usage
//
//	client := cloud.NewOpenRouterClient(cfg.OpenRouter.APIKey).
//	    WithSiteName("muse")
//	resp, err := client.Chat(ctx, cloud.ChatRequest{
//	    Model:    "openai/gpt-4o-mini",
//	    Messages: []cloud.ChatMessage{cloud.NewUserMessage("Hello")},
//	})
//
// API keys are never logged; KeyFingerprint gives a stable identifier instead.
package cloud
