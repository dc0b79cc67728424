// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/muse-tui/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports transcripts to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a transcript to Markdown format.
func (e *MarkdownExporter) Export(t *Transcript) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	p := t.Persona

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "persona: %s\n", escapeYAML(p.Name))
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(p.Title))
		fmt.Fprintf(&sb, "model: %s\n", escapeYAML(p.Model))
		if p.HasVoice() {
			fmt.Fprintf(&sb, "voice: %s\n", escapeYAML(p.VoiceID))
		}
		fmt.Fprintf(&sb, "turns: %d\n", len(t.Turns))
		fmt.Fprintf(&sb, "exported: %s\n", t.ExportedAt.Format(time.RFC3339))
		sb.WriteString("generator: muse-tui\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# Conversation with %s\n\n", escapeMarkdown(t.speaker(model.RoleMuse)))

	if e.options.IncludeMetadata {
		sb.WriteString("## Session Information\n\n")
		fmt.Fprintf(&sb, "- **Persona**: %s, %s\n", escapeMarkdown(p.Name), escapeMarkdown(p.Title))
		fmt.Fprintf(&sb, "- **Model**: %s\n", p.Model)
		fmt.Fprintf(&sb, "- **Temperature**: %.2f\n", p.Temperature)
		fmt.Fprintf(&sb, "- **Started**: %s\n", formatTimestamp(t.Turns[0].Timestamp))
		fmt.Fprintf(&sb, "- **Turns**: %d\n", len(t.Turns))
		sb.WriteString("\n---\n\n")
	}

	sb.WriteString("## Conversation\n\n")

	for i, turn := range t.Turns {
		label := escapeMarkdown(t.speaker(turn.Role))
		if e.options.IncludeTimestamps {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, formatShortTimestamp(turn.Timestamp))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}

		if e.options.IncludeNarration && turn.IsMuse() {
			if n := formatNarration(turn.Narration); n != "" {
				sb.WriteString(n)
				sb.WriteString("\n\n")
			}
		}

		sb.WriteString(strings.TrimSpace(turn.Content))
		sb.WriteString("\n\n")

		if i < len(t.Turns)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	fmt.Fprintf(&sb, "*Exported from muse on %s*\n",
		t.ExportedAt.Format("January 2, 2006 at 3:04 PM"))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// formatNarration renders narration as a single italic line. Narration
// usually arrives already wrapped in asterisks.
func formatNarration(n string) string {
	n = strings.TrimSpace(strings.ReplaceAll(n, "\n", " "))
	n = strings.Trim(n, "*_ ")
	if n == "" {
		return ""
	}
	return "*" + n + "*"
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeYAML quotes frontmatter values that would otherwise break the block.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
