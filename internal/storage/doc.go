// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the key/value persistence used for persona
// records and the active-persona pointer.
//
// Three backends implement Backend:
//
//   - MemoryBackend: process-local map, used by tests and throwaway sessions
//   - FileBackend: one JSON document on disk, rewritten atomically
//   - SQLiteBackend: a single kv table in a SQLite database
//
// Every backend enforces an optional byte budget. A Set that would exceed it
// fails with ErrQuotaExceeded and leaves the previous value untouched.
package storage
