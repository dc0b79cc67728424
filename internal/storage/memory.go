// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import "sync"

// MemoryBackend keeps values in a map for the life of the process.
type MemoryBackend struct {
	mu     sync.Mutex
	data   map[string]string
	closed bool
	opts   options
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend(opts ...Option) *MemoryBackend {
	return &MemoryBackend{
		data: make(map[string]string),
		opts: buildOptions(opts),
	}
}

// Get implements Backend.
func (m *MemoryBackend) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.data[key]
	return v, ok, nil
}

// Set implements Backend.
func (m *MemoryBackend) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	var total int64
	for k, v := range m.data {
		if k != key {
			total += entrySize(k, v)
		}
	}
	if err := m.opts.checkQuota(total + entrySize(key, value)); err != nil {
		return err
	}
	m.data[key] = value
	return nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.data, key)
	return nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
