// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/muse-tui/internal/util"
)

// FileBackend stores every key in one JSON object on disk.
//
// Each Set or Delete rewrites the whole document atomically, so a crash never
// leaves a half-written file behind. The document is small (a handful of
// persona records) which keeps the rewrite cheap.
type FileBackend struct {
	path string
	opts options

	mu        sync.Mutex
	lastWrite []byte
	closed    bool
}

// NewFileBackend opens (or lazily creates) the document at path.
func NewFileBackend(path string, opts ...Option) (*FileBackend, error) {
	if path == "" {
		return nil, errors.New("file backend: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("file backend: %w", err)
	}
	return &FileBackend{path: path, opts: buildOptions(opts)}, nil
}

// Path returns the document location.
func (f *FileBackend) Path() string {
	return f.path
}

// load reads the document. A missing file is an empty document.
func (f *FileBackend) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]string{}, nil
	}
	doc := map[string]string{}
	if err := sonic.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, f.path, err)
	}
	return doc, nil
}

func (f *FileBackend) store(doc map[string]string) error {
	data, err := sonic.ConfigStd.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}
	if err := util.AtomicWriteFile(f.path, data, 0o600); err != nil {
		return err
	}
	f.lastWrite = data
	return nil
}

// loadForWrite returns the document to modify. An undecodable document is
// replaced rather than blocking every later write.
func (f *FileBackend) loadForWrite() (map[string]string, error) {
	doc, err := f.load()
	if errors.Is(err, ErrCorrupt) {
		f.opts.logger.Warn().Err(err).Str("path", f.path).Msg("discarding corrupt store document")
		return map[string]string{}, nil
	}
	return doc, err
}

// Get implements Backend.
func (f *FileBackend) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return "", false, ErrClosed
	}
	doc, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := doc[key]
	return v, ok, nil
}

// Set implements Backend.
func (f *FileBackend) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	doc, err := f.loadForWrite()
	if err != nil {
		return err
	}

	var total int64
	for k, v := range doc {
		if k != key {
			total += entrySize(k, v)
		}
	}
	if err := f.opts.checkQuota(total + entrySize(key, value)); err != nil {
		return err
	}

	doc[key] = value
	return f.store(doc)
}

// Delete implements Backend.
func (f *FileBackend) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	doc, err := f.loadForWrite()
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return f.store(doc)
}

// Close implements Backend.
func (f *FileBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// =============================================================================
// WATCHING
// =============================================================================

// Watch calls onChange whenever another process rewrites the document, until
// ctx is cancelled. Writes made through this backend are not reported.
func (f *FileBackend) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", f.path, err)
	}
	// The directory is watched because atomic renames replace the inode.
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", f.path, err)
	}

	target := filepath.Clean(f.path)
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) &&
					!ev.Op.Has(fsnotify.Rename) && !ev.Op.Has(fsnotify.Remove) {
					continue
				}
				if f.ownWrite() {
					continue
				}
				onChange()
			case werr, ok := <-w.Errors:
				if !ok {
					return
				}
				f.opts.logger.Warn().Err(werr).Str("path", f.path).Msg("store watcher error")
			}
		}
	}()
	return nil
}

// ownWrite reports whether the file on disk is what this backend last wrote.
func (f *FileBackend) ownWrite() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path)
	if err != nil {
		return false
	}
	return f.lastWrite != nil && bytes.Equal(data, f.lastWrite)
}
