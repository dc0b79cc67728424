// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package persona

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNarrationLength_MaxChars(t *testing.T) {
	assert.Equal(t, 50, NarrationShort.MaxChars())
	assert.Equal(t, 100, NarrationMedium.MaxChars())
	assert.Equal(t, 150, NarrationLong.MaxChars())
	assert.Equal(t, 100, NarrationLength("epic").MaxChars())

	assert.True(t, NarrationLong.Valid())
	assert.False(t, NarrationLength("").Valid())
}

func TestDefault(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	d := Default(now)

	assert.Equal(t, DefaultID, d.ID)
	assert.Equal(t, "Aria", d.Name)
	assert.Equal(t, "Creative Muse", d.Title)
	assert.Equal(t, "openai/gpt-4o-mini", d.Model)
	assert.Equal(t, 0.7, d.Temperature)
	assert.Equal(t, 1000, d.MaxTokens)
	assert.Equal(t, NarrationMedium, d.NarrationLength)
	assert.False(t, d.HasVoice())
	assert.Equal(t, now, d.CreatedAt)
	require.NoError(t, d.Validate())

	_, ok := LookupModel(d.Model)
	assert.True(t, ok, "default model must be selectable")
}

func TestTemplate_FreshID(t *testing.T) {
	a := Template(time.Now())
	b := Template(time.Now())
	assert.NotEqual(t, DefaultID, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestPersona_Validate(t *testing.T) {
	p := Default(time.Now())
	p.Name = " "
	p.Temperature = 1.5
	p.MaxTokens = 0
	p.NarrationLength = "huge"

	err := p.Validate()
	require.Error(t, err)
	for _, want := range []string{"name is required", "temperature", "max tokens", "narration length"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestPersona_Initial(t *testing.T) {
	assert.Equal(t, "A", Persona{Name: "aria"}.Initial())
	assert.Equal(t, "É", Persona{Name: "élan"}.Initial())
	assert.Equal(t, "?", Persona{}.Initial())
}
