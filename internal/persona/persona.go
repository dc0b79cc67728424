// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package persona defines the configurable "muse" persona and the store that
// persists persona records and the active-persona pointer.
package persona

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// =============================================================================
// NARRATION LENGTH
// =============================================================================

// NarrationLength bounds the size of the reaction text.
type NarrationLength string

const (
	NarrationShort  NarrationLength = "short"
	NarrationMedium NarrationLength = "medium"
	NarrationLong   NarrationLength = "long"
)

// NarrationLengths lists the accepted values in display order.
var NarrationLengths = []NarrationLength{NarrationShort, NarrationMedium, NarrationLong}

// MaxChars returns the character budget. Unknown values use the medium budget.
func (n NarrationLength) MaxChars() int {
	switch n {
	case NarrationShort:
		return 50
	case NarrationLong:
		return 150
	default:
		return 100
	}
}

// Label returns a human-readable description.
func (n NarrationLength) Label() string {
	switch n {
	case NarrationShort:
		return "Short (20-50 characters)"
	case NarrationMedium:
		return "Medium (50-100 characters)"
	case NarrationLong:
		return "Long (100-150 characters)"
	default:
		return string(n)
	}
}

// Valid reports whether n is one of NarrationLengths.
func (n NarrationLength) Valid() bool {
	for _, v := range NarrationLengths {
		if n == v {
			return true
		}
	}
	return false
}

// =============================================================================
// MODEL OPTIONS
// =============================================================================

// ModelOption is a chat model offered in the persona editor.
type ModelOption struct {
	ID        string
	Name      string
	Provider  string
	MaxTokens int
}

// ModelOptions is the fixed list of selectable models.
var ModelOptions = []ModelOption{
	{ID: "openai/gpt-4o", Name: "GPT-4o", Provider: "OpenAI", MaxTokens: 4096},
	{ID: "openai/gpt-4o-mini", Name: "GPT-4o Mini", Provider: "OpenAI", MaxTokens: 4096},
	{ID: "anthropic/claude-3.5-sonnet", Name: "Claude 3.5 Sonnet", Provider: "Anthropic", MaxTokens: 4096},
	{ID: "anthropic/claude-3-haiku", Name: "Claude 3 Haiku", Provider: "Anthropic", MaxTokens: 4096},
}

// LookupModel finds a model option by id.
func LookupModel(id string) (ModelOption, bool) {
	for _, m := range ModelOptions {
		if m.ID == id {
			return m, true
		}
	}
	return ModelOption{}, false
}

// =============================================================================
// PERSONA
// =============================================================================

// DefaultID is the id of the built-in persona.
const DefaultID = "default"

// Persona is a named assistant personality bundling prompt, model and voice.
// JSON keys match the persisted record format.
type Persona struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	AvatarURL   string `json:"avatarUrl,omitempty" yaml:"avatarUrl,omitempty"`

	SystemPrompt string  `json:"systemPrompt" yaml:"systemPrompt"`
	Model        string  `json:"model" yaml:"model"`
	Temperature  float64 `json:"temperature" yaml:"temperature"`
	MaxTokens    int     `json:"maxTokens" yaml:"maxTokens"`

	// VoiceID selects the speech voice. Empty disables speech.
	VoiceID         string          `json:"elevenlabsVoiceId" yaml:"elevenlabsVoiceId"`
	NarrationLength NarrationLength `json:"narrationLength" yaml:"narrationLength"`

	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Default returns the built-in persona used when nothing else is configured.
func Default(now time.Time) Persona {
	return Persona{
		ID:              DefaultID,
		Name:            "Aria",
		Title:           "Creative Muse",
		Description:     "A thoughtful and inspiring creative companion",
		SystemPrompt:    "You are a creative and inspiring muse. Always respond with both a brief narration (action/emotion in first person) and then a thoughtful, engaging response.",
		Model:           "openai/gpt-4o-mini",
		Temperature:     0.7,
		MaxTokens:       1000,
		VoiceID:         "",
		NarrationLength: NarrationMedium,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Template returns the starting point for a newly created persona: the
// default field values under a fresh id.
func Template(now time.Time) Persona {
	p := Default(now)
	p.ID = NewID()
	return p
}

// NewID returns a fresh persona id.
func NewID() string {
	return uuid.NewString()
}

// HasVoice reports whether speech is configured.
func (p Persona) HasVoice() bool {
	return strings.TrimSpace(p.VoiceID) != ""
}

// Initial returns the upper-cased first letter of the name for avatar badges.
func (p Persona) Initial() string {
	for _, r := range p.Name {
		return string(unicode.ToUpper(r))
	}
	return "?"
}

// Validate checks the field constraints. All problems are reported together.
func (p Persona) Validate() error {
	var errs []error
	if strings.TrimSpace(p.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if strings.TrimSpace(p.Model) == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if p.Temperature < 0 || p.Temperature > 1 {
		errs = append(errs, fmt.Errorf("temperature %.2f out of range [0, 1]", p.Temperature))
	}
	if p.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("max tokens must be positive, got %d", p.MaxTokens))
	}
	if !p.NarrationLength.Valid() {
		errs = append(errs, fmt.Errorf("narration length %q is not one of short, medium, long", p.NarrationLength))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid persona %q: %w", p.Name, errors.Join(errs...))
}
