// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/muse-tui/internal/model"
	"github.com/jeranaias/muse-tui/internal/persona"
	"github.com/jeranaias/muse-tui/internal/util"
)

// ErrEmptyTranscript is returned when there is nothing to export.
var ErrEmptyTranscript = errors.New("transcript has no turns")

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for transcript exporters.
type Exporter interface {
	// Export converts a transcript to the target format and returns the content.
	Export(t *Transcript) ([]byte, error)

	// FileExtension returns the appropriate file extension (e.g., ".md").
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// Transcript is the exportable view of one conversation.
type Transcript struct {
	Persona    persona.Persona
	Turns      []model.Turn
	ExportedAt time.Time
}

// NewTranscript snapshots turns for export. Placeholders still waiting on
// the model are left out.
func NewTranscript(p persona.Persona, turns []model.Turn, now time.Time) *Transcript {
	settled := make([]model.Turn, 0, len(turns))
	for _, t := range turns {
		if t.Pending {
			continue
		}
		settled = append(settled, t)
	}
	return &Transcript{Persona: p, Turns: settled, ExportedAt: now}
}

func (t *Transcript) validate() error {
	if t == nil {
		return fmt.Errorf("transcript is nil")
	}
	if len(t.Turns) == 0 {
		return ErrEmptyTranscript
	}
	return nil
}

// speaker returns the heading used for a turn.
func (t *Transcript) speaker(role model.Role) string {
	if role == model.RoleMuse && t.Persona.Name != "" {
		return t.Persona.Name
	}
	return role.DisplayName()
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is the directory where files will be saved.
	// Default: current working directory
	OutputDir string

	// IncludeMetadata includes the persona/model header.
	IncludeMetadata bool

	// IncludeTimestamps includes per-turn timestamps.
	IncludeTimestamps bool

	// IncludeNarration writes each muse turn's narration above its content.
	IncludeNarration bool
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		IncludeNarration:  true,
	}
}

// ForFormat returns the exporter for a format name: "md"/"markdown",
// "json", or "yaml"/"yml". Empty selects Markdown.
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	case "yaml", "yml":
		return NewYAMLExporter(opts), nil
	default:
		return nil, fmt.Errorf("unknown export format %q (want md, json or yaml)", format)
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// FileName returns muse_<persona>_<timestamp><ext> for t.
func FileName(t *Transcript, ext string) string {
	return fmt.Sprintf("muse_%s_%s%s",
		util.SanitizeFilename(t.Persona.Name, 50, "muse"),
		t.ExportedAt.Format("20060102_150405"),
		ext,
	)
}

// ToFile exports t with exporter into opts.OutputDir and returns the path
// written.
func ToFile(t *Transcript, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	content, err := exporter.Export(t)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	outputPath := filepath.Join(dir, FileName(t, exporter.FileExtension()))
	if err := util.AtomicWriteFile(outputPath, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// formatShortTimestamp formats a timestamp for inline display.
func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
