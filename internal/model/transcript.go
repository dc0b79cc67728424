// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is the ordered list of turns shown to the user.
// It is not safe for concurrent use; the owner serializes access.
type Transcript struct {
	turns []Turn
}

// Append adds a turn to the end of the transcript.
func (t *Transcript) Append(turn Turn) {
	t.turns = append(t.turns, turn)
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	return len(t.turns)
}

// Update applies fn to the turn with the given id and returns the result.
// A missing id (for example after Reset) is a no-op that reports false.
func (t *Transcript) Update(id string, fn func(*Turn)) (Turn, bool) {
	for i := range t.turns {
		if t.turns[i].ID == id {
			fn(&t.turns[i])
			return t.turns[i], true
		}
	}
	return Turn{}, false
}

// Last returns the most recent turn.
func (t *Transcript) Last() (Turn, bool) {
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1], true
}

// Reset drops every turn.
func (t *Transcript) Reset() {
	t.turns = nil
}

// Snapshot returns a copy of the turns that callers may keep.
func (t *Transcript) Snapshot() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}
