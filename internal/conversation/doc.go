// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation drives a chat session with the active persona.
//
// The Orchestrator owns the on-screen transcript and the model-facing
// history. Each user turn moves through
//
//	idle -> awaiting narration -> narration ready -> streaming -> settled
//
// A placeholder muse turn is added as soon as the user sends, filled with the
// narration once phase one returns, then grown fragment by fragment while the
// reply streams. Speech for the narration runs beside the stream and neither
// delays nor fails the turn. A failed turn replaces the placeholder with an
// apology and leaves the history as if the exchange never happened.
//
// Switching persona resets both transcript and history. Results of a turn
// that was in flight at that moment are discarded.
package conversation
