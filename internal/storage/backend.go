// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultQuota matches the per-origin budget browsers give local storage.
const DefaultQuota int64 = 5 << 20

// Backend names accepted by Open.
const (
	KindFile   = "file"
	KindSQLite = "sqlite"
	KindMemory = "memory"
)

var (
	// ErrQuotaExceeded is returned by Set when the write would exceed the
	// backend's byte budget. It is recoverable: nothing was written.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrClosed is returned by operations on a closed backend.
	ErrClosed = errors.New("storage closed")

	// ErrCorrupt reports stored data that could not be decoded.
	ErrCorrupt = errors.New("storage data corrupt")
)

// Backend is a string key/value store.
type Backend interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(key string) (value string, ok bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
	// Close releases the backend's resources.
	Close() error
}

// =============================================================================
// OPTIONS
// =============================================================================

type options struct {
	quota  int64
	logger zerolog.Logger
}

// Option configures a backend.
type Option func(*options)

// WithQuota sets the byte budget. Zero or negative disables the check.
func WithQuota(bytes int64) Option {
	return func(o *options) { o.quota = bytes }
}

// WithLogger sets the logger used for recoverable problems.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// checkQuota reports ErrQuotaExceeded when total bytes exceed the budget.
func (o options) checkQuota(total int64) error {
	if o.quota > 0 && total > o.quota {
		return fmt.Errorf("%w: %d bytes needed, budget is %d", ErrQuotaExceeded, total, o.quota)
	}
	return nil
}

func entrySize(key, value string) int64 {
	return int64(len(key) + len(value))
}

// =============================================================================
// FACTORY
// =============================================================================

// Open creates the backend named by kind. dir is the directory for on-disk
// backends; path may override the file name and is resolved against dir when
// relative.
func Open(kind, dir, path string, opts ...Option) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindFile:
		return NewFileBackend(resolvePath(dir, path, "store.json"), opts...)
	case KindSQLite:
		return OpenSQLite(resolvePath(dir, path, "store.db"), opts...)
	case KindMemory:
		return NewMemoryBackend(opts...), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want %s, %s or %s)", kind, KindFile, KindSQLite, KindMemory)
	}
}

func resolvePath(dir, path, fallback string) string {
	if path == "" {
		return filepath.Join(dir, fallback)
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
