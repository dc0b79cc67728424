// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes the in-memory conversation transcript to a file.
//
// # Formats
//
//   - Markdown (.md): frontmatter, session information and one section per turn
//   - JSON (.json): the full transcript document
//   - YAML (.yaml): the same document as YAML
//
// # Usage
//
//	t := export.NewTranscript(o.Persona(), o.Transcript(), time.Now())
//	exporter, err := export.ForFormat("md", nil)
//	path, err := export.ToFile(t, exporter, nil)
package export
