// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// Model-facing roles.
const (
	HistoryUser      = "user"
	HistoryAssistant = "assistant"
)

// HistoryEntry is the {role, content} pair sent back to the language model.
// Narration never appears here.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// History is the model-facing conversation context.
type History []HistoryEntry

// AppendExchange records a completed user/assistant exchange.
func (h History) AppendExchange(user, assistant string) History {
	return append(h,
		HistoryEntry{Role: HistoryUser, Content: user},
		HistoryEntry{Role: HistoryAssistant, Content: assistant},
	)
}

// Clone returns an independent copy.
func (h History) Clone() History {
	if h == nil {
		return nil
	}
	out := make(History, len(h))
	copy(out, h)
	return out
}
