// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/muse-tui/internal/export"
	"github.com/jeranaias/muse-tui/internal/ui/components"
)

var timeNow = time.Now

// Command is a slash command available in the input line.
type Command struct {
	Name  string
	Args  string
	Usage string
}

// Commands lists the slash commands in help order.
var Commands = []Command{
	{Name: "/help", Usage: "show keys and commands"},
	{Name: "/personas", Usage: "open the persona picker"},
	{Name: "/use", Args: "<name|id>", Usage: "switch persona"},
	{Name: "/mute", Usage: "toggle narration voice"},
	{Name: "/export", Args: "[md|json|yaml]", Usage: "save the transcript"},
	{Name: "/clear", Usage: "start the conversation over"},
	{Name: "/quit", Usage: "exit"},
}

// runCommand executes a slash command line.
func (m Model) runCommand(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(line)
	name, args := strings.ToLower(fields[0]), strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch name {
	case "/help", "/?":
		m.mode = modeHelp
		return m, nil
	case "/personas", "/persona":
		return m.openPicker()
	case "/use":
		if args == "" {
			return m, m.toast(components.ToastError, "Usage: /use <name|id>")
		}
		p, err := m.deps.Store.Resolve(args)
		if err != nil {
			return m, m.toast(components.ToastError, fmt.Sprintf("No persona named %q", args))
		}
		return m, m.activate(p)
	case "/mute":
		return m, m.toggleMute()
	case "/export":
		return m, m.exportTranscript(args)
	case "/clear":
		m.deps.Playback.Stop()
		m.s.orch.Start()
		m.rendered = make(map[string]string)
		m.statusBar.State = ""
		m.refresh()
		return m, m.toast(components.ToastInfo, "Conversation cleared")
	case "/quit", "/exit":
		return m.quit()
	default:
		return m, m.toast(components.ToastError, fmt.Sprintf("Unknown command %s (try /help)", name))
	}
}

// exportTranscript writes the settled turns in format.
func (m *Model) exportTranscript(format string) tea.Cmd {
	opts := export.DefaultOptions()
	if m.opts.ExportDir != "" {
		opts.OutputDir = m.opts.ExportDir
	}
	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		return m.toast(components.ToastError, err.Error())
	}

	t := export.NewTranscript(m.s.orch.Persona(), m.s.orch.Transcript(), timeNow())
	path, err := export.ToFile(t, exporter, opts)
	if err != nil {
		m.deps.Logger.Error().Err(err).Msg("export failed")
		return m.toast(components.ToastError, err.Error())
	}
	m.deps.Logger.Info().Str("path", path).Msg("transcript exported")
	return m.toast(components.ToastSuccess, "Exported to "+path)
}
