// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Error variables for common OpenRouter errors.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("OpenRouter API key not configured")

	// ErrAuthFailed indicates authentication failed (invalid or expired API key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrInsufficientCredits indicates the account has insufficient credits.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrEmptyResponse indicates a completion without any choices.
	ErrEmptyResponse = errors.New("empty completion response")
)

// OpenRouterError represents an error from the OpenRouter API. Kind holds the
// matching sentinel error when the status maps to one.
type OpenRouterError struct {
	Code    string
	Message string
	Status  int
	Kind    error
}

// Error implements the error interface.
func (e *OpenRouterError) Error() string {
	prefix := "OpenRouter error"
	if e.Kind != nil {
		prefix = e.Kind.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s [%s] (HTTP %d): %s", prefix, e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("%s (HTTP %d): %s", prefix, e.Status, e.Message)
}

// Unwrap exposes the sentinel for errors.Is.
func (e *OpenRouterError) Unwrap() error {
	return e.Kind
}

// statusKind maps an HTTP status to a sentinel error.
func statusKind(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthFailed
	case http.StatusPaymentRequired:
		return ErrInsufficientCredits
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return nil
	}
}

// classifyError converts go-openai failures into OpenRouterError values.
// Transport errors (DNS, TLS, cancellation) pass through wrapped.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if apiErr.Code != nil {
			code = fmt.Sprint(apiErr.Code)
		}
		return &OpenRouterError{
			Code:    code,
			Message: apiErr.Message,
			Status:  apiErr.HTTPStatusCode,
			Kind:    statusKind(apiErr.HTTPStatusCode),
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := strings.TrimSpace(string(reqErr.Body))
		if msg == "" && reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &OpenRouterError{
			Message: msg,
			Status:  reqErr.HTTPStatusCode,
			Kind:    statusKind(reqErr.HTTPStatusCode),
		}
	}

	return fmt.Errorf("openrouter request: %w", err)
}
