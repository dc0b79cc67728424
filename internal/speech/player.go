// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Player plays a clip to completion or until ctx is cancelled.
type Player interface {
	Play(ctx context.Context, clip *Clip) error
	Name() string
}

// CommandPlayer runs an external audio player. Args may contain "{file}";
// otherwise the clip path is appended.
type CommandPlayer struct {
	Command string
	Args    []string
}

// knownPlayers are tried in order by DetectPlayer.
var knownPlayers = []CommandPlayer{
	{Command: "afplay"},
	{Command: "mpv", Args: []string{"--no-video", "--really-quiet"}},
	{Command: "ffplay", Args: []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
	{Command: "mpg123", Args: []string{"-q"}},
}

// Name returns the player command.
func (p CommandPlayer) Name() string {
	return p.Command
}

func (p CommandPlayer) args(path string) []string {
	out := make([]string, 0, len(p.Args)+1)
	substituted := false
	for _, a := range p.Args {
		if strings.Contains(a, "{file}") {
			a = strings.ReplaceAll(a, "{file}", path)
			substituted = true
		}
		out = append(out, a)
	}
	if !substituted {
		out = append(out, path)
	}
	return out
}

// Play implements Player.
func (p CommandPlayer) Play(ctx context.Context, clip *Clip) error {
	if clip == nil || clip.Released() {
		return ErrClipReleased
	}
	cmd := exec.CommandContext(ctx, p.Command, p.args(clip.Path())...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w", p.Command, err)
	}
	return nil
}

// NopPlayer discards audio. It is used when no player is installed.
type NopPlayer struct{}

// Name implements Player.
func (NopPlayer) Name() string { return "none" }

// Play implements Player.
func (NopPlayer) Play(context.Context, *Clip) error { return nil }

// DetectPlayer returns the configured player command, or the first known
// player found on PATH, or NopPlayer.
func DetectPlayer(configured string) Player {
	if fields := strings.Fields(configured); len(fields) > 0 {
		return CommandPlayer{Command: fields[0], Args: fields[1:]}
	}
	for _, p := range knownPlayers {
		if _, err := exec.LookPath(p.Command); err == nil {
			return p
		}
	}
	return NopPlayer{}
}

// =============================================================================
// PLAYBACK
// =============================================================================

// Playback runs at most one clip at a time in the background. Starting a clip
// stops the one already playing.
type Playback struct {
	player Player

	mu      sync.Mutex
	cancel  context.CancelFunc
	playing int // generation of the running clip, 0 when idle
	gen     int
}

// NewPlayback wraps player.
func NewPlayback(player Player) *Playback {
	if player == nil {
		player = NopPlayer{}
	}
	return &Playback{player: player}
}

// Player returns the wrapped player.
func (p *Playback) Player() Player {
	return p.player
}

// Start plays clip in the background. done, when non-nil, is called with the
// outcome; a clip stopped by Stop or by a newer Start reports nil.
func (p *Playback) Start(clip *Clip, done func(error)) {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.gen++
	gen := p.gen
	p.cancel = cancel
	p.playing = gen
	p.mu.Unlock()

	go func() {
		err := p.player.Play(ctx, clip)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		p.mu.Lock()
		if p.playing == gen {
			p.playing = 0
			p.cancel = nil
		}
		p.mu.Unlock()
		cancel()
		if done != nil {
			done(err)
		}
	}()
}

// Stop interrupts the running clip, if any.
func (p *Playback) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.playing = 0
}

// Playing reports whether a clip is running.
func (p *Playback) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing != 0
}
