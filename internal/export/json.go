// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"time"

	"github.com/bytedance/sonic"

	"github.com/jeranaias/muse-tui/internal/model"
)

// document is the structured form shared by the JSON and YAML exporters.
type document struct {
	Generator  string       `json:"generator" yaml:"generator"`
	ExportedAt time.Time    `json:"exportedAt" yaml:"exportedAt"`
	Persona    personaMeta  `json:"persona" yaml:"persona"`
	Turns      []model.Turn `json:"turns" yaml:"turns"`
}

type personaMeta struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Title       string  `json:"title" yaml:"title"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	VoiceID     string  `json:"voiceId,omitempty" yaml:"voiceId,omitempty"`
}

func newDocument(t *Transcript, opts *Options) document {
	turns := make([]model.Turn, len(t.Turns))
	copy(turns, t.Turns)
	if !opts.IncludeNarration {
		for i := range turns {
			turns[i].Narration = ""
		}
	}
	return document{
		Generator:  "muse-tui",
		ExportedAt: t.ExportedAt,
		Persona: personaMeta{
			ID:          t.Persona.ID,
			Name:        t.Persona.Name,
			Title:       t.Persona.Title,
			Model:       t.Persona.Model,
			Temperature: t.Persona.Temperature,
			VoiceID:     t.Persona.VoiceID,
		},
		Turns: turns,
	}
}

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports transcripts to JSON format. Metadata and timestamps
// are always included so the document stays machine-readable.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a transcript to JSON format.
func (e *JSONExporter) Export(t *Transcript) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	return sonic.ConfigStd.MarshalIndent(newDocument(t, e.options), "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
