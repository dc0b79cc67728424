// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/muse-tui/internal/config"
)

func TestNew_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "muse.log")
	l, err := New(config.LogConfig{Level: "warn"}, Options{Path: path})
	require.NoError(t, err)

	l.Info().Msg("dropped")
	l.Warn().Str("voice", "abc").Msg("speech failed")
	require.NoError(t, l.Close())
	assert.Equal(t, path, l.Path())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, sonic.UnmarshalString(lines[0], &rec))
	assert.Equal(t, "warn", rec["level"])
	assert.Equal(t, "speech failed", rec["message"])
	assert.Equal(t, "abc", rec["voice"])
	assert.Equal(t, "muse", rec["app"])

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestNew_AppendsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "muse.log")
	for i := 0; i < 2; i++ {
		l, err := New(config.LogConfig{Level: "info"}, Options{Path: path})
		require.NoError(t, err)
		l.Info().Int("run", i).Msg("start")
		require.NoError(t, l.Close())
	}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestNew_VerboseConsole(t *testing.T) {
	var console bytes.Buffer
	l, err := New(config.LogConfig{Level: "error"}, Options{Verbose: true, Console: &console})
	require.NoError(t, err)

	l.Debug().Msg("visible in verbose mode")
	assert.Contains(t, console.String(), "visible in verbose mode")
	assert.Empty(t, l.Path())
	assert.NoError(t, l.Close())
}

func TestNew_NoSinksIsNop(t *testing.T) {
	l, err := New(config.LogConfig{Level: "nonsense"}, Options{})
	require.NoError(t, err)
	l.Error().Msg("goes nowhere")
	assert.NoError(t, l.Close())
}
