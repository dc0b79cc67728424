// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/muse-tui/internal/storage"
	"github.com/jeranaias/muse-tui/internal/ui/chat"
)

// runTUI starts the full-screen chat.
func runTUI(ctx context.Context, g *globalOptions) error {
	a, err := openApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	clipDir, err := os.MkdirTemp("", "muse-clips-")
	if err != nil {
		return fmt.Errorf("create audio directory: %w", err)
	}
	defer os.RemoveAll(clipDir)

	deps := chat.Deps{
		Generator:   a.muse,
		Synthesizer: a.synthesizer(),
		Store:       a.store,
		Playback:    a.playback,
		Logger:      a.log.Logger,
	}
	if a.speech.IsConfigured() {
		deps.Voices = a.speech
	}
	if fb, ok := a.backend.(*storage.FileBackend); ok {
		deps.Watch = fb.Watch
	}

	m := chat.New(deps, chat.Options{
		Theme:        a.cfg.UI.Theme,
		GlamourStyle: a.cfg.UI.GlamourStyle,
		Muted:        a.cfg.Audio.Muted,
		Autoplay:     a.cfg.Audio.Autoplay,
		ClipDir:      clipDir,
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run chat: %w", err)
	}
	return nil
}
