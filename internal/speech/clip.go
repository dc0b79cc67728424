// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrClipReleased is returned by Release on an already released clip.
var ErrClipReleased = errors.New("speech: clip already released")

// Clip is a playable audio resource backed by a temporary MPEG file. It must
// be released once it is no longer needed.
type Clip struct {
	path string
	size int

	mu       sync.Mutex
	released bool
}

// NewClip writes audio to a temporary file in the system temp directory.
func NewClip(audio []byte) (*Clip, error) {
	return NewClipIn("", audio)
}

// NewClipIn writes audio to a temporary file in dir.
func NewClipIn(dir string, audio []byte) (*Clip, error) {
	if len(audio) == 0 {
		return nil, errors.New("speech: no audio data")
	}
	f, err := os.CreateTemp(dir, "muse-narration-*.mp3")
	if err != nil {
		return nil, fmt.Errorf("create clip: %w", err)
	}
	if _, err := f.Write(audio); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("write clip: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("write clip: %w", err)
	}
	return &Clip{path: f.Name(), size: len(audio)}, nil
}

// Path returns the audio file location.
func (c *Clip) Path() string {
	return c.path
}

// Size returns the audio length in bytes.
func (c *Clip) Size() int {
	return c.size
}

// Released reports whether Release has been called.
func (c *Clip) Released() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

// Release deletes the backing file. Only the first call does anything; later
// calls return ErrClipReleased.
func (c *Clip) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return ErrClipReleased
	}
	c.released = true
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release clip: %w", err)
	}
	return nil
}

// =============================================================================
// SLOT
// =============================================================================

// Slot retains at most one clip. Storing a new clip releases the old one.
type Slot struct {
	mu  sync.Mutex
	cur *Clip
}

// Replace stores c, releasing the previously held clip first. A nil c just
// empties the slot.
func (s *Slot) Replace(c *Clip) error {
	s.mu.Lock()
	prev := s.cur
	s.cur = c
	s.mu.Unlock()

	if prev == nil || prev == c {
		return nil
	}
	if err := prev.Release(); err != nil && !errors.Is(err, ErrClipReleased) {
		return err
	}
	return nil
}

// Current returns the held clip, or nil.
func (s *Slot) Current() *Clip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Close releases the held clip.
func (s *Slot) Close() error {
	return s.Replace(nil)
}
