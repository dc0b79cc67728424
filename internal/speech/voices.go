// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
)

// Voice is a selectable speech voice.
type Voice struct {
	ID       string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// FallbackVoices is offered when the provider cannot be reached.
var FallbackVoices = []Voice{
	{ID: "pNInz6obpgDQGcFmaJgB", Name: "Adam", Category: "premade"},
	{ID: "EXAVITQu4vr4xnSDxMaL", Name: "Bella", Category: "premade"},
	{ID: "VR6AewLTigWG4xSOukaG", Name: "Antoni", Category: "premade"},
}

// VoiceList is the result of ListVoices. When Fallback is set, Voices holds
// FallbackVoices and Err explains why the live list was unavailable. The
// failure is ignorable: callers can always show Voices.
type VoiceList struct {
	Voices   []Voice
	Fallback bool
	Err      error
}

// Find returns the voice with the given id.
func (l VoiceList) Find(id string) (Voice, bool) {
	for _, v := range l.Voices {
		if v.ID == id {
			return v, true
		}
	}
	return Voice{}, false
}

type voicesResponse struct {
	Voices []struct {
		VoiceID  string `json:"voice_id"`
		Name     string `json:"name"`
		Category string `json:"category"`
	} `json:"voices"`
}

// ListVoices fetches the account's voices. It never fails: on any error the
// fallback list is returned with the cause attached.
func (c *Client) ListVoices(ctx context.Context) VoiceList {
	voices, err := c.fetchVoices(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("voice list unavailable, using fallback voices")
		fallback := make([]Voice, len(FallbackVoices))
		copy(fallback, FallbackVoices)
		return VoiceList{Voices: fallback, Fallback: true, Err: err}
	}
	return VoiceList{Voices: voices}
}

func (c *Client) fetchVoices(ctx context.Context) ([]Voice, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("build voices request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voices request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read voices: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{Status: resp.StatusCode, Body: string(body)}
	}

	var parsed voicesResponse
	if err := sonic.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode voices: %w", err)
	}
	if parsed.Voices == nil {
		return nil, fmt.Errorf("decode voices: missing voices field")
	}

	out := make([]Voice, 0, len(parsed.Voices))
	for _, v := range parsed.Voices {
		if v.VoiceID == "" {
			continue
		}
		cat := v.Category
		if cat == "" {
			cat = "user"
		}
		out = append(out, Voice{ID: v.VoiceID, Name: v.Name, Category: cat})
	}
	return out, nil
}
