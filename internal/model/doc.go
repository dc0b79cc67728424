// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the in-memory conversation types.
//
// # Key Types
//
//   - Turn: one entry of the on-screen transcript (user or muse)
//   - Transcript: ordered turns owned by the conversation orchestrator
//   - HistoryEntry: model-facing {role, content} pair fed back to the LLM
//
// Nothing in this package is persisted. A transcript lives for one session
// and is reset whenever the active persona changes.
package model
