// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package persona

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

// Format selects the persona exchange encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat accepts a format name or a file name with a known extension.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if ext := filepath.Ext(s); ext != "" {
		s = strings.TrimPrefix(ext, ".")
	}
	switch s {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown persona format %q (want yaml or json)", s)
	}
}

// bundle is the exchange document.
type bundle struct {
	Version  int       `json:"version" yaml:"version"`
	Personas []Persona `json:"personas" yaml:"personas"`
}

const bundleVersion = 1

// Export writes the selected personas (all when ids is empty) to w and
// returns how many were written.
func (s *Store) Export(w io.Writer, format Format, ids ...string) (int, error) {
	list := s.List()
	if len(ids) > 0 {
		selected := make([]Persona, 0, len(ids))
		for _, id := range ids {
			p, err := s.Resolve(id)
			if err != nil {
				return 0, err
			}
			selected = append(selected, p)
		}
		list = selected
	}

	doc := bundle{Version: bundleVersion, Personas: list}
	switch format {
	case FormatJSON:
		data, err := sonic.ConfigStd.MarshalIndent(doc, "", "  ")
		if err != nil {
			return 0, fmt.Errorf("encode personas: %w", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return 0, err
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return 0, fmt.Errorf("encode personas: %w", err)
		}
		if err := enc.Close(); err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("unknown persona format %q", format)
	}
	return len(list), nil
}

// Import reads a persona bundle from r and saves every persona in it. With
// fresh set, each imported persona gets a new id so nothing is overwritten.
func (s *Store) Import(r io.Reader, format Format, fresh bool) ([]Persona, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read personas: %w", err)
	}

	var doc bundle
	switch format {
	case FormatJSON:
		err = sonic.Unmarshal(data, &doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("unknown persona format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode personas: %w", err)
	}

	now := s.now()
	saved := make([]Persona, 0, len(doc.Personas))
	for _, p := range doc.Personas {
		if fresh || p.ID == "" {
			p.ID = NewID()
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		if p.NarrationLength == "" {
			p.NarrationLength = NarrationMedium
		}
		if err := s.Save(p); err != nil {
			return saved, err
		}
		saved = append(saved, p)
	}
	return saved, nil
}
